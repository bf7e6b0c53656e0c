package storage

// deleteKey removes entry iEntry from the last node of slots. A node left
// empty is merged with or borrows from a sibling. The parent is always the
// previous element of slots.
func (s *Store) deleteKey(slots []pathSlot) error {
	ps := &slots[len(slots)-1]

	if ps.count() > 1 {
		ps.removeEntry(ps.iEntry)
		return s.storeNode(ps.node)
	}

	// Last entry of the root
	if len(slots) == 1 {
		if ps.height() == 1 {
			s.hdr.freeSlot = 0
			return nil
		}
		s.hdr.freeSlot = ps.rightChild()
		return s.markAsUnused(ps.off, len(ps.payload))
	}

	return s.rebalance(slots)
}

// markAsUnused clears the used bit of the key for the slot at off. The key
// may already be gone, in which case nothing happens.
func (s *Store) markAsUnused(off int64, size int) error {
	path, found, err := s.seek(encodeKey(size, off), 1)
	if err != nil || !found {
		return err
	}

	ps := path.leaf()
	ps.setKey(ps.iEntry, ps.key(ps.iEntry)&keyMask)
	return s.storeKey(ps.node, ps.iEntry)
}
