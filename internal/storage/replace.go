package storage

// replaceSlot moves the tree node stored at off into another free slot so
// that off can be handed out. Entries that do not fit the new slot are
// inserted again at the node's height. Nothing happens when off no longer
// holds a live node.
func (s *Store) replaceSlot(off int64) error {
	n, err := s.loadNode(off)
	if err != nil {
		return err
	}
	h, cnt := n.height(), n.count()

	path, _, err := s.seek(n.key(0)&keyMask, 1)
	if err != nil {
		return err
	}
	if len(path.slots) == 0 || path.leaf().off != off {
		return nil
	}

	ref, err := s.allocOne(path, nil, 0, nil)
	if err != nil {
		return err
	}

	if len(path.slots) == 1 {
		s.hdr.freeSlot = ref.off
	} else {
		parent := &path.slots[len(path.slots)-2]
		ptr := parent.off + slotHeaderSize + 4
		if parent.iEntry < parent.count() {
			ptr = parent.off + slotHeaderSize + int64(nodeOffset(2, parent.iEntry)) + 8
		}
		b := make([]byte, 5)
		putU40(b, ref.off)
		if err := s.storeData(ptr, b); err != nil {
			return err
		}
	}

	// The cached copy has any used bits set by allocOne
	old := &node{payload: append([]byte(nil), path.leaf().payload...)}

	nNew := min(cnt, (ref.size-nodeOffset(h, 0))/entrySize(h))
	fresh := newNode(ref.off, ref.size, h)
	fresh.setCount(nNew)
	if h > 1 {
		fresh.setRightChild(old.rightChild())
	}
	copy(fresh.payload[nodeOffset(h, 0):], old.payload[nodeOffset(h, 0):nodeOffset(h, nNew)])
	if err := s.storeNode(fresh); err != nil {
		return err
	}

	for i := nNew; i < cnt; i++ {
		key := old.key(i)
		var child int64
		if h > 1 {
			child = old.child(i)
		}

		ins, _, err := s.seek(key&keyMask, h)
		if err != nil {
			return err
		}
		if err := s.allocate(ins, 0, i, old); err != nil {
			return err
		}

		// allocate may have taken this very slot for the tree
		key = old.key(i)
		if err := s.insertEntry(ins, key, child); err != nil {
			return err
		}
	}

	s.log.Debugf("replaceSlot: node %d moved to %d, %d of %d entries reinserted", off, ref.off, cnt-nNew, cnt)
	return nil
}
