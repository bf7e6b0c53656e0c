package storage

// IntegrityCheck walks the whole file: the free-slot tree, every slot in
// the data area and every page map entry. Counters in the header must
// match what is found.
func (s *Store) IntegrityCheck() error {
	if err := s.checkRead("IntegrityCheck"); err != nil {
		return err
	}
	return s.checkAll()
}

// integrityCheck runs the full check only when it is switched on
func (s *Store) integrityCheck() error {
	if !s.integrity {
		return nil
	}
	return s.checkAll()
}

func (s *Store) treeCheck() error {
	if !s.integrity {
		return nil
	}
	return s.checkTree()
}

func (s *Store) checkAll() error {
	if err := s.checkTree(); err != nil {
		return err
	}
	if err := s.checkFreeKeys(); err != nil {
		return err
	}
	if err := s.checkDataArea(); err != nil {
		return err
	}
	return s.checkPageMap()
}

// checkFreeKeys makes sure every key names a free slot of its size and
// that the keys add up to the header's free-list counters
func (s *Store) checkFreeKeys() error {
	var nKey, nByte int64
	err := s.walkFreeList(func(off int64, size int, used bool) error {
		pg, payload, _, err := s.slotOwner(off)
		if err != nil {
			return err
		}
		if pg != 0 || payload != size {
			return s.corrupt("checkFreeKeys", ErrCorruptTree, "key (%d, %d) does not name a free slot", off, size)
		}
		nKey++
		nByte += int64(size)
		return nil
	})
	if err != nil {
		return err
	}
	if nKey != s.hdr.nFreeSlot || nByte != s.hdr.nFreeByte {
		return s.corrupt("checkFreeKeys", ErrCorruptHeader,
			"free list holds %d slots, %d bytes; header says %d, %d",
			nKey, nByte, s.hdr.nFreeSlot, s.hdr.nFreeByte)
	}
	return nil
}

// checkTree verifies key order and that every node's own slot is a key
// with the used bit set, and no other key has it
func (s *Store) checkTree() error {
	if s.hdr.freeSlot == 0 {
		return nil
	}

	var nNode, nFlag int64
	if err := s.checkSubtree(s.hdr.freeSlot, 0, 0, 0, &nNode, &nFlag); err != nil {
		return err
	}
	if nNode != nFlag {
		return s.corrupt("checkTree", ErrCorruptTree, "%d nodes but %d keys marked used", nNode, nFlag)
	}
	return nil
}

func (s *Store) checkSubtree(off int64, above, below uint64, depth int, nNode, nFlag *int64) error {
	if depth >= maxDepth {
		return s.corrupt("checkTree", ErrCorruptTree, "depth exceeds %d", maxDepth)
	}

	n, err := s.loadNode(off)
	if err != nil {
		return err
	}
	*nNode++

	present, used, err := s.freelistTest(off, len(n.payload))
	if err != nil {
		return err
	}
	if !present || !used {
		return s.corrupt("checkTree", ErrCorruptTree, "node %d has no used key", off)
	}

	h := n.height()
	prev := above
	for i := 0; i < n.count(); i++ {
		k := n.key(i)
		size, _, u := decodeKey(k)
		if u {
			*nFlag++
		}

		switch {
		case size < MinPayload:
			return s.corrupt("checkTree", ErrCorruptTree, "node %d key %d size %d", off, i, size)
		case prev != 0 && k <= prev:
			return s.corrupt("checkTree", ErrCorruptTree, "node %d key %d out of order", off, i)
		case below != 0 && k >= below:
			return s.corrupt("checkTree", ErrCorruptTree, "node %d key %d above its parent", off, i)
		}

		if h > 1 {
			if err := s.checkSubtree(n.child(i), prev, k, depth+1, nNode, nFlag); err != nil {
				return err
			}
		}
		prev = k
	}

	if h > 1 {
		return s.checkSubtree(n.rightChild(), prev, below, depth+1, nNode, nFlag)
	}
	return nil
}

// checkDataArea visits every slot: free ones must be in the tree, page
// slots must decompress
func (s *Store) checkDataArea() error {
	var nFreeSlot, nFreeByte, nFreeFrag int64
	out := make([]byte, s.pageSize)

	for off := s.hdr.dataStart; off < s.hdr.dataEnd; {
		if off == s.hdr.gapStart {
			off = s.hdr.gapEnd
			if off >= s.hdr.dataEnd {
				break
			}
		}

		pg, payload, loc, err := s.slotOwner(off)
		if err != nil {
			return err
		}

		if pg == 0 {
			nFreeSlot++
			nFreeByte += int64(payload)
			present, _, err := s.freelistTest(off, payload)
			if err != nil {
				return err
			}
			if !present {
				return s.corrupt("checkDataArea", ErrCorruptTree, "free slot %d (%d bytes) not in the free list", off, payload)
			}
		} else {
			if loc.Size+loc.Padding != payload {
				return s.corrupt("checkDataArea", ErrCorruptSlot, "page %d at %d: %d+%d bytes in a %d byte slot", pg, off, loc.Size, loc.Padding, payload)
			}
			nFreeFrag += int64(loc.Padding)
			if _, err := s.loadPage(pg, loc, out); err != nil {
				return err
			}
		}

		off += slotHeaderSize + int64(payload)
		if off > s.hdr.dataEnd {
			return s.corrupt("checkDataArea", ErrCorruptSlot, "slot runs past the end of data at %d", s.hdr.dataEnd)
		}
	}

	if nFreeSlot != s.hdr.nFreeSlot || nFreeByte != s.hdr.nFreeByte || nFreeFrag != s.hdr.nFreeFragment {
		return s.corrupt("checkDataArea", ErrCorruptHeader,
			"found %d free slots, %d free bytes, %d fragment bytes; header says %d, %d, %d",
			nFreeSlot, nFreeByte, nFreeFrag, s.hdr.nFreeSlot, s.hdr.nFreeByte, s.hdr.nFreeFragment)
	}
	return nil
}

// checkPageMap makes sure every mapped page points at a slot naming it
func (s *Store) checkPageMap() error {
	nPage := uint32(s.hdr.size / int64(s.pageSize))
	for pg := uint32(1); pg <= nPage; pg++ {
		loc, err := s.findPage(pg)
		if err != nil {
			return err
		}
		if loc.Offset == 0 {
			continue
		}

		owner, payload, err := s.readSlotHeader(loc.Offset)
		if err != nil {
			return err
		}
		if owner != pg || loc.Size+loc.Padding != payload {
			return s.corrupt("checkPageMap", ErrCorruptSlot, "page %d maps to slot %d owned by page %d", pg, loc.Offset, owner)
		}
	}
	return nil
}
