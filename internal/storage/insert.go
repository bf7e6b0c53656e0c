package storage

// insertEntry adds key (with child for interior levels) at the position
// recorded in path. Nodes with a reserved sibling are split, the new left
// half going to the sibling, and the divider moves up a level. allocate
// must have been called on the same path first.
func (s *Store) insertEntry(path *treePath, key uint64, child int64) error {
	for i := len(path.slots) - 1; i >= 0; i-- {
		ps := &path.slots[i]

		if ps.sibOff == 0 {
			if ps.full() {
				return s.corrupt("insertEntry", ErrCorruptTree, "node %d is full", ps.off)
			}
			ps.insertEntry(ps.iEntry, key, child)
			return s.storeNode(ps.node)
		}

		div, err := s.split(ps, key, child)
		if err != nil {
			return err
		}
		key, child = div, ps.sibOff
	}

	return s.growRoot(path, key, child)
}

// growRoot puts a new root above the old one. The old root becomes the
// right child, the divider's child the left one.
func (s *Store) growRoot(path *treePath, key uint64, child int64) error {
	if path.rootOff == 0 {
		return s.corrupt("growRoot", ErrCorruptTree, "no slot reserved for a new root")
	}

	h := path.slots[0].height() + 1
	root := newNode(path.rootOff, nodeOffset(h, 1), h)
	root.setCount(1)
	root.setRightChild(s.hdr.freeSlot)
	root.setEntry(0, key, child)

	if err := s.storeNode(root); err != nil {
		return err
	}
	s.hdr.freeSlot = path.rootOff
	return nil
}
