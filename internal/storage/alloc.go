package storage

// Nodes of the free-slot tree are stored in free slots that are themselves
// keys in the tree. Taking a slot for a node sets the used bit of its key.

// allocFromNode claims the first unused slot found in n or below it.
// Entries before first are skipped, as is the right child unless first is
// zero. Nodes already cached in path are updated in place.
func (s *Store) allocFromNode(path *treePath, n *node, first int) (slotRef, bool, error) {
	h, cnt := n.height(), n.count()

	if h > 1 {
		if first == 0 {
			ref, ok, err := s.allocFromOff(path, n.rightChild())
			if ok || err != nil {
				return ref, ok, err
			}
		}
		for i := first; i < cnt; i++ {
			ref, ok, err := s.allocFromOff(path, n.child(i))
			if ok || err != nil {
				return ref, ok, err
			}
		}
	}

	for i := first; i < cnt; i++ {
		k := n.key(i)
		if k&keyUsed != 0 {
			continue
		}
		size, off, _ := decodeKey(k)
		n.setKey(i, k|keyUsed)
		if err := s.storeKey(n, i); err != nil {
			return slotRef{}, false, err
		}
		return slotRef{off: off, size: size}, true, nil
	}
	return slotRef{}, false, nil
}

func (s *Store) allocFromOff(path *treePath, off int64) (slotRef, bool, error) {
	n := path.cached(off)
	if n == nil {
		var err error
		if n, err = s.loadNode(off); err != nil {
			return slotRef{}, false, err
		}
	}
	return s.allocFromNode(path, n, 0)
}

// allocOne finds a slot for a new node. A just freed key is preferred,
// then the entries of the detached node from first on, then the tree.
func (s *Store) allocOne(path *treePath, newKey *uint64, first int, detached *node) (slotRef, error) {
	if newKey != nil && *newKey != 0 {
		size, off, _ := decodeKey(*newKey)
		*newKey = 0
		return slotRef{off: off, size: size}, nil
	}

	if detached != nil {
		ref, ok, err := s.allocFromNode(nil, detached, first)
		if ok || err != nil {
			return ref, err
		}
	}

	ref, ok, err := s.allocFromOff(path, s.hdr.freeSlot)
	if err != nil {
		return slotRef{}, err
	}
	if !ok {
		return slotRef{}, s.corrupt("allocOne", ErrCorruptTree, "no free slot for a node")
	}
	return ref, nil
}

// allocate reserves a sibling for every full node on path, and a new root
// when every node is full
func (s *Store) allocate(path *treePath, newKey uint64, first int, detached *node) error {
	for i := len(path.slots) - 1; i >= 0; i-- {
		ps := &path.slots[i]
		if !ps.full() {
			return nil
		}
		ref, err := s.allocOne(path, &newKey, first, detached)
		if err != nil {
			return err
		}
		ps.sibOff, ps.sibPayload = ref.off, ref.size
	}

	ref, err := s.allocOne(path, &newKey, first, detached)
	if err != nil {
		return err
	}
	path.rootOff, path.rootPayload = ref.off, ref.size
	return nil
}
