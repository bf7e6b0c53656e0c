package storage

import "fmt"

// SlotInfo describes one slot of the data area. Page is 0 for a free slot;
// InUse is set when a free slot currently holds a node of the free-slot
// tree.
type SlotInfo struct {
	Page    uint32
	Offset  int64
	Size    int
	Padding int
	InUse   bool
}

// Structure calls fn for every stored page in page order, then for every
// free slot in free-list order
func (s *Store) Structure(fn func(SlotInfo) error) error {
	if err := s.checkRead("Structure"); err != nil {
		return err
	}

	nPage := uint32(s.hdr.size / int64(s.pageSize))
	for pg := uint32(1); pg <= nPage; pg++ {
		loc, err := s.findPage(pg)
		if err != nil {
			return err
		}
		if loc.Offset == 0 {
			continue
		}
		if err := fn(SlotInfo{Page: pg, Offset: loc.Offset, Size: loc.Size, Padding: loc.Padding}); err != nil {
			return err
		}
	}

	return s.walkFreeList(func(off int64, size int, used bool) error {
		return fn(SlotInfo{Offset: off, Size: size, InUse: used})
	})
}

// AppendFreeSlot adds a free slot of size payload bytes at the end of the
// data area
func (s *Store) AppendFreeSlot(size int) (int64, error) {
	if err := s.checkWrite("AppendFreeSlot"); err != nil {
		return 0, err
	}
	if size < MinPayload || size > MaxPayload {
		return 0, fmt.Errorf("AppendFreeSlot: %w (size %d)", ErrMisuse, size)
	}

	off := s.hdr.dataEnd
	slot := make([]byte, slotHeaderSize+size)
	copy(slot, encodeSlotHeader(0, size))
	if err := s.storeData(off, slot); err != nil {
		return 0, s.fail(err)
	}
	s.hdr.dataEnd = off + int64(len(slot))

	if err := s.freelistAdd(off, size); err != nil {
		return 0, s.fail(err)
	}
	return off, nil
}
