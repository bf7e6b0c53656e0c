package storage

// One node on the way from the root to a key. iEntry is the entry that
// matched or the first one larger than the key sought. sibOff and
// sibPayload describe a free slot reserved for splitting this node.
type pathSlot struct {
	*node
	iEntry     int
	sibOff     int64
	sibPayload int
}

// treePath holds every node visited by seek, root first. The nodes are
// private copies and are kept up to date by the operations that change
// them, so an insert or delete can write them back in one piece.
type treePath struct {
	slots       []pathSlot
	rootOff     int64
	rootPayload int
}

func (p *treePath) leaf() *pathSlot {
	return &p.slots[len(p.slots)-1]
}

func (p *treePath) cached(off int64) *node {
	if p == nil {
		return nil
	}
	for i := range p.slots {
		if p.slots[i].off == off {
			return p.slots[i].node
		}
	}
	return nil
}

// seek descends from the root looking for key, which must have the used
// bit clear. It stops at the first node holding the key or at the first
// node of height stop.
func (s *Store) seek(key uint64, stop int) (*treePath, bool, error) {
	path := &treePath{}
	off := s.hdr.freeSlot

	for off != 0 {
		if len(path.slots) >= maxDepth {
			return nil, false, s.corrupt("seek", ErrCorruptTree, "depth exceeds %d", maxDepth)
		}

		n, err := s.loadNode(off)
		if err != nil {
			return nil, false, err
		}

		h, cnt := n.height(), n.count()
		if len(path.slots) > 0 && h != path.leaf().height()-1 {
			return nil, false, s.corrupt("seek", ErrCorruptTree, "node %d height %d under height %d", off, h, path.leaf().height())
		}

		i := 0
		for ; i < cnt; i++ {
			k := n.key(i) & keyMask
			if k == key {
				path.slots = append(path.slots, pathSlot{node: n, iEntry: i})
				return path, true, nil
			}
			if k > key {
				break
			}
		}
		path.slots = append(path.slots, pathSlot{node: n, iEntry: i})

		if h <= stop {
			break
		}
		if i == cnt {
			off = n.rightChild()
		} else {
			off = n.child(i)
		}
		if off == 0 {
			return nil, false, s.corrupt("seek", ErrCorruptTree, "node %d has a null child", n.off)
		}
	}
	return path, false, nil
}
