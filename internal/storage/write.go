package storage

import "fmt"

// WritePage stores one logical page. Pages are numbered from 1.
func (s *Store) WritePage(pg uint32, data []byte) error {
	if err := s.checkWrite("WritePage"); err != nil {
		return err
	}
	if pg == 0 || pg > 0x7FFFFFFF {
		return fmt.Errorf("WritePage: %w (page %d)", ErrMisuse, pg)
	}
	if len(data) != s.pageSize {
		return fmt.Errorf("WritePage: %w (%d bytes, page size %d)", ErrMisuse, len(data), s.pageSize)
	}
	return s.fail(s.writePageData(pg, data))
}

func (s *Store) writePageData(pg uint32, data []byte) error {
	if err := s.integrityCheck(); err != nil {
		return err
	}
	if err := s.growPageMap(pg); err != nil {
		return err
	}
	if err := s.writeIdentity(); err != nil {
		return err
	}

	z, err := s.compress(data)
	if err != nil {
		return err
	}
	if err := s.writePage(pg, z, false); err != nil {
		return err
	}

	if end := int64(pg) * int64(s.pageSize); end > s.hdr.size {
		s.hdr.size = end
	}
	return s.integrityCheck()
}

// compress returns the stored image of a page. Data that does not shrink
// is kept as is, which a size equal to the page size marks on read.
func (s *Store) compress(data []byte) ([]byte, error) {
	z, err := s.codec.Compress(s.zbuf[:0], data)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if len(z) >= s.pageSize {
		z = data
	}
	if len(z) > MaxPayload {
		return nil, fmt.Errorf("compress: %w (%d bytes)", ErrPayloadTooLarge, len(z))
	}
	return z, nil
}

// growPageMap moves the start of the data area up until page pg has a map
// entry. Space comes from the gap left by a partial compaction when it
// starts there, otherwise the first slot is moved out of the way.
func (s *Store) growPageMap(pg uint32) error {
	for pageMapEntry(pg+1) > s.hdr.dataStart {
		var n int64

		switch {
		case s.hdr.dataStart == s.hdr.gapStart:
			n = s.hdr.gapEnd - s.hdr.gapStart
			if n > gapConsumeSize {
				n = gapConsumeSize
				s.hdr.gapStart += n
			} else {
				s.hdr.gapStart, s.hdr.gapEnd = 0, 0
			}

		case s.hdr.dataStart >= s.hdr.dataEnd:
			// No slots at all
			n = gapConsumeSize
			s.hdr.dataEnd = s.hdr.dataStart + n

		default:
			owner, payload, loc, err := s.slotOwner(s.hdr.dataStart)
			if err != nil {
				return err
			}
			if owner != 0 {
				z, err := s.loadData(loc.Offset+slotHeaderSize, loc.Size)
				if err != nil {
					return err
				}
				s.log.Debugf("growPageMap: moving page %d from %d to the end", owner, loc.Offset)
				if err := s.writePage(owner, z, true); err != nil {
					return err
				}
			}
			if err := s.freelistRemove(s.hdr.dataStart, payload); err != nil {
				return err
			}
			n = int64(payload) + slotHeaderSize
		}

		if err := s.storeZero(s.hdr.dataStart, n); err != nil {
			return err
		}
		s.hdr.dataStart += n
	}
	return nil
}

// writePage places a compressed page image, releasing the slot of any
// older version first. appendOnly skips the free list.
func (s *Store) writePage(pg uint32, z []byte, appendOnly bool) error {
	if s.hdr.size > int64(pg-1)*int64(s.pageSize) {
		old, err := s.findPage(pg)
		if err != nil {
			return err
		}
		if old.Offset != 0 {
			if err := s.freelistAdd(old.Offset, old.Size+old.Padding); err != nil {
				return err
			}
			s.hdr.nFreeFragment -= int64(old.Padding)
		}
	}

	var ref slotRef
	if !appendOnly {
		var err error
		ref, err = s.bestFit(s.hdr.nFreeSlot < int64(s.maxFree), len(z))
		if err != nil {
			return err
		}
	}
	if ref.off == 0 {
		ref = slotRef{off: s.hdr.dataEnd, size: max(len(z), MinPayload)}
	}

	end, err := s.writePageTo(pg, ref.off, z, ref.size-len(z))
	if err != nil {
		return err
	}
	if end > s.hdr.dataEnd {
		s.hdr.dataEnd = end
	}
	s.hdr.nFreeFragment += int64(ref.size - len(z))
	return nil
}

// writePageTo writes the slot and map entry for pg at off and returns the
// offset just past the slot
func (s *Store) writePageTo(pg uint32, off int64, z []byte, padding int) (int64, error) {
	payload := len(z) + padding
	end := off + slotHeaderSize + int64(payload)
	if end > maxOffset {
		return 0, fmt.Errorf("writePageTo: %w (file would exceed %d bytes)", ErrNoMem, int64(maxOffset))
	}

	if err := s.putPageMapEntry(pg, off, len(z), padding); err != nil {
		return 0, err
	}

	slot := make([]byte, slotHeaderSize+payload)
	copy(slot, encodeSlotHeader(pg, payload))
	copy(slot[slotHeaderSize:], z)
	if err := s.storeData(off, slot); err != nil {
		return 0, err
	}
	return end, nil
}

// Truncate drops every page at or past nBytes, which must be a multiple of
// the page size
func (s *Store) Truncate(nBytes int64) error {
	if err := s.checkWrite("Truncate"); err != nil {
		return err
	}
	if nBytes < 0 || nBytes%int64(s.pageSize) != 0 {
		return fmt.Errorf("Truncate: %w (%d is not a multiple of %d)", ErrMisuse, nBytes, s.pageSize)
	}
	if nBytes >= s.hdr.size {
		return nil
	}
	return s.fail(s.truncate(nBytes))
}

func (s *Store) truncate(nBytes int64) error {
	first := uint32(nBytes/int64(s.pageSize)) + 1
	last := uint32(s.hdr.size / int64(s.pageSize))

	for pg := first; pg <= last; pg++ {
		loc, err := s.findPage(pg)
		if err != nil {
			return err
		}
		if loc.Offset == 0 {
			continue
		}
		if err := s.freelistAdd(loc.Offset, loc.Size+loc.Padding); err != nil {
			return err
		}
		s.hdr.nFreeFragment -= int64(loc.Padding)
	}

	if err := s.storeZero(pageMapEntry(first), pageMapEntry(last+1)-pageMapEntry(first)); err != nil {
		return err
	}
	s.hdr.size = nBytes
	return s.integrityCheck()
}
