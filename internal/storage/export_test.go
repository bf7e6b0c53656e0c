package storage

// TakeFreeSlot removes a free slot of exactly size bytes from the free
// list, as a page write would. The slot is left unaccounted for. A zero
// offset means none was found.
func (s *Store) TakeFreeSlot(size int) (int64, error) {
	if err := s.checkWrite("TakeFreeSlot"); err != nil {
		return 0, err
	}
	ref, err := s.bestFit(true, size)
	if err != nil {
		return 0, s.fail(err)
	}
	return ref.off, nil
}

// BestFit is the lookup a page write makes for a compressed image of size
// bytes. The slot found is removed from the free list and returned with
// its payload size.
func (s *Store) BestFit(size int) (off int64, payload int, err error) {
	if err := s.checkWrite("BestFit"); err != nil {
		return 0, 0, err
	}
	ref, err := s.bestFit(s.hdr.nFreeSlot < int64(s.maxFree), size)
	if err != nil {
		return 0, 0, s.fail(err)
	}
	return ref.off, ref.size, nil
}
