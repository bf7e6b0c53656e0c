package storage

// Raw byte access to the store image. Byte ranges are split into host page
// reads and writes; nothing here knows about slots beyond their 6 byte
// header.

func (s *Store) loadData(off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	size := int64(s.hostPageSize)

	for done := 0; done < n; {
		at := off + int64(done)
		page, err := s.pager.Acquire(uint32(at / size))
		if err != nil {
			return nil, ioErr("loadData", err)
		}
		done += copy(buf[done:], page[at%size:])
	}
	return buf, nil
}

func (s *Store) storeData(off int64, data []byte) error {
	size := int64(s.hostPageSize)

	for done := 0; done < len(data); {
		at := off + int64(done)
		pg := uint32(at / size)
		within := int(at % size)

		// Whole pages need no read
		if within == 0 && len(data)-done >= s.hostPageSize {
			if err := s.pager.Write(pg, data[done:done+s.hostPageSize]); err != nil {
				return ioErr("storeData", err)
			}
			done += s.hostPageSize
			continue
		}

		cur, err := s.pager.Acquire(pg)
		if err != nil {
			return ioErr("storeData", err)
		}
		page := append([]byte(nil), cur...)
		done += copy(page[within:], data[done:])
		if err := s.pager.Write(pg, page); err != nil {
			return ioErr("storeData", err)
		}
	}
	return nil
}

func (s *Store) storeZero(off int64, n int64) error {
	if n <= 0 {
		return nil
	}
	return s.storeData(off, make([]byte, n))
}

// Slot header: page number (31 bits) then payload size (17 bits)
func (s *Store) readSlotHeader(off int64) (pg uint32, payload int, err error) {
	h, err := s.loadData(off, slotHeaderSize)
	if err != nil {
		return 0, 0, err
	}

	pg = uint32(h[0])<<23 | uint32(h[1])<<15 | uint32(h[2])<<7 | uint32(h[3])>>1
	payload = int(h[3]&1)<<16 | int(h[4])<<8 | int(h[5])

	if payload < MinPayload {
		return 0, 0, s.corrupt("readSlotHeader", ErrCorruptSlot, "payload %d at %d", payload, off)
	}
	return pg, payload, nil
}

func encodeSlotHeader(pg uint32, payload int) []byte {
	return []byte{
		byte(pg >> 23),
		byte(pg >> 15),
		byte(pg >> 7),
		byte(pg<<1) | byte(payload>>16)&1,
		byte(payload >> 8),
		byte(payload),
	}
}

func (s *Store) writeSlotHeader(off int64, pg uint32, payload int) error {
	return s.storeData(off, encodeSlotHeader(pg, payload))
}

// truncateImage shrinks the host file to nPage host pages
func (s *Store) truncateImage(nPage uint32) error {
	if err := s.pager.Truncate(nPage); err != nil {
		return ioErr("truncateImage", err)
	}
	return nil
}
