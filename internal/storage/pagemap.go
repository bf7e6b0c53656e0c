package storage

// Page map entry, 8 bytes per logical page starting with page 1:
//
//	offset(40) | size(17) | padding(7)
//
// A padding of 0x7F means "127 or more", the real value is then taken from
// the slot header.

func pageMapEntry(pg uint32) int64 {
	return pageMapOffset + int64(pg-1)*pageMapEntrySize
}

// mapped reports whether the page map currently has an entry for pg
func (s *Store) mapped(pg uint32) bool {
	return pg != 0 && pageMapEntry(pg)+pageMapEntrySize <= s.hdr.dataStart
}

func (s *Store) findPage(pg uint32) (PageLocation, error) {
	if !s.mapped(pg) {
		return PageLocation{}, nil
	}

	e, err := s.loadData(pageMapEntry(pg), pageMapEntrySize)
	if err != nil {
		return PageLocation{}, err
	}

	loc := PageLocation{
		Offset:  getU40(e),
		Size:    int(e[5])<<9 | int(e[6])<<1 | int(e[7]>>7),
		Padding: int(e[7] & paddingSentinel),
	}
	if loc.Offset == 0 {
		return PageLocation{}, nil
	}

	if loc.Padding == paddingSentinel {
		_, payload, err := s.readSlotHeader(loc.Offset)
		if err != nil {
			return PageLocation{}, err
		}
		loc.Padding = payload - loc.Size
		if loc.Padding < paddingSentinel {
			return PageLocation{}, s.corrupt("findPage", ErrCorruptSlot, "page %d padding %d", pg, loc.Padding)
		}
	}
	return loc, nil
}

func (s *Store) putPageMapEntry(pg uint32, off int64, size, padding int) error {
	e := make([]byte, pageMapEntrySize)
	putU40(e, off)
	e[5] = byte(size >> 9)
	e[6] = byte(size >> 1)
	e[7] = byte(size<<7) | byte(min(padding, paddingSentinel))
	return s.storeData(pageMapEntry(pg), e)
}

// slotOwner returns the page stored in the slot at off, or 0 when the slot
// is free
func (s *Store) slotOwner(off int64) (pg uint32, payload int, loc PageLocation, err error) {
	pg, payload, err = s.readSlotHeader(off)
	if err != nil {
		return 0, 0, PageLocation{}, err
	}
	loc, err = s.findPage(pg)
	if err != nil {
		return 0, 0, PageLocation{}, err
	}
	if loc.Offset != off {
		return 0, payload, PageLocation{}, nil
	}
	return pg, payload, loc, nil
}
