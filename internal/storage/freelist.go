package storage

import "fmt"

// Free-slot b-tree. Every free slot in the data area has one key here,
// ordered by (payload size, offset). The tree's nodes live inside free
// slots, so adding or removing a key may also claim or release slots for
// nodes.

// freelistAdd records the slot at off as free
func (s *Store) freelistAdd(off int64, size int) error {
	if off == 0 {
		return nil
	}
	if err := s.treeCheck(); err != nil {
		return err
	}
	s.hdr.nFreeSlot++
	s.hdr.nFreeByte += int64(size)

	key := encodeKey(size, off)

	if s.hdr.freeSlot == 0 {
		root := newNode(off, nodeOffset(1, 1), 1)
		root.setCount(1)
		root.setKey(0, key|keyUsed)
		if err := s.storeNode(root); err != nil {
			return err
		}
		s.hdr.freeSlot = off
		return s.treeCheck()
	}

	path, found, err := s.seek(key, 1)
	if err != nil {
		return err
	}
	if found {
		return s.corrupt("freelistAdd", ErrCorruptTree, "slot %d (%d bytes) is already free", off, size)
	}

	if err := s.allocate(path, key, 0, nil); err != nil {
		return err
	}
	// A full leaf takes the new slot for its sibling first
	if path.leaf().sibOff != 0 {
		key |= keyUsed
	}
	if err := s.insertEntry(path, key, 0); err != nil {
		return err
	}
	return s.treeCheck()
}

// freelistTest looks up the key for the slot at off
func (s *Store) freelistTest(off int64, size int) (present, used bool, err error) {
	if s.hdr.freeSlot == 0 {
		return false, false, nil
	}
	path, found, err := s.seek(encodeKey(size, off), 1)
	if err != nil || !found {
		return false, false, err
	}
	ps := path.leaf()
	return true, ps.key(ps.iEntry)&keyUsed != 0, nil
}

// bestFit takes the smallest free slot of at least size bytes and at most
// size+maxFrag. With exact set only a slot of exactly size bytes will do.
// A zero slotRef means nothing suitable was found.
func (s *Store) bestFit(exact bool, size int) (slotRef, error) {
	return s.extractEntry(exact, size, 0)
}

// freelistRemove takes the slot at off out of the tree. The key has to be
// there.
func (s *Store) freelistRemove(off int64, size int) error {
	ref, err := s.extractEntry(true, size, off)
	if err != nil {
		return err
	}
	if ref.off != off {
		return s.corrupt("freelistRemove", ErrCorruptTree, "slot %d (%d bytes) not in the free list", off, size)
	}
	return nil
}

func (s *Store) extractEntry(exact bool, size int, extractOff int64) (slotRef, error) {
	if err := s.treeCheck(); err != nil {
		return slotRef{}, err
	}
	if s.hdr.freeSlot == 0 {
		return slotRef{}, nil
	}

	// Offset 0 never holds a slot, so the key is never found and the path
	// ends on a leaf
	seekOff := int64(0)
	if extractOff != 0 {
		seekOff = extractOff - 1
	}
	path, _, err := s.seek(encodeKey(size, seekOff), 1)
	if err != nil {
		return slotRef{}, err
	}

	leaf := path.leaf()
	var (
		ref  slotRef
		used bool
		hit  bool
	)
	for i := len(path.slots) - 1; i >= 0; i-- {
		ps := &path.slots[i]
		if ps.iEntry >= ps.count() {
			continue
		}

		fSize, fOff, fUsed := decodeKey(ps.key(ps.iEntry))
		if extractOff != 0 && fOff != extractOff {
			continue
		}
		if fSize > size+s.maxFrag || (exact && fSize != size) {
			return slotRef{}, nil
		}
		ref, used, hit = slotRef{off: fOff, size: fSize}, fUsed, true

		// Keys leave the tree from a leaf. An interior key is overwritten
		// by its predecessor, which is then removed instead.
		if ps != leaf {
			if leaf.iEntry == 0 {
				return slotRef{}, s.corrupt("extractEntry", ErrCorruptTree, "no predecessor for key in node %d", ps.off)
			}
			ps.setKey(ps.iEntry, leaf.key(leaf.iEntry-1))
			if err := s.storeKey(ps.node, ps.iEntry); err != nil {
				return slotRef{}, err
			}
			leaf.iEntry--
		}
		break
	}
	if !hit {
		return slotRef{}, nil
	}

	if err := s.deleteKey(path.slots); err != nil {
		return slotRef{}, err
	}
	if s.hdr.freeSlot != 0 && used {
		if err := s.replaceSlot(ref.off); err != nil {
			return slotRef{}, err
		}
	}
	s.hdr.nFreeSlot--
	s.hdr.nFreeByte -= int64(ref.size)

	if err := s.treeCheck(); err != nil {
		return slotRef{}, err
	}
	return ref, nil
}

// walkFreeList calls fn for every key in order
func (s *Store) walkFreeList(fn func(off int64, size int, used bool) error) error {
	if s.hdr.freeSlot == 0 {
		return nil
	}
	return s.walkNode(s.hdr.freeSlot, 0, fn)
}

func (s *Store) walkNode(off int64, depth int, fn func(off int64, size int, used bool) error) error {
	if depth >= maxDepth {
		return s.corrupt("walkNode", ErrCorruptTree, "depth exceeds %d", maxDepth)
	}

	n, err := s.loadNode(off)
	if err != nil {
		return err
	}
	h := n.height()

	for i := 0; i < n.count(); i++ {
		if h > 1 {
			if err := s.walkNode(n.child(i), depth+1, fn); err != nil {
				return err
			}
		}
		size, slot, used := decodeKey(n.key(i))
		if err := fn(slot, size, used); err != nil {
			return fmt.Errorf("walkFreeList: %w", err)
		}
	}
	if h > 1 {
		return s.walkNode(n.rightChild(), depth+1, fn)
	}
	return nil
}
