package storage

import "fmt"

// ReadPage returns page pg. Pages that were never written, or lie past the
// end of the store, read as zeros.
func (s *Store) ReadPage(pg uint32) ([]byte, error) {
	if err := s.checkRead("ReadPage"); err != nil {
		return nil, err
	}
	if pg == 0 {
		return nil, fmt.Errorf("ReadPage: %w (page 0)", ErrMisuse)
	}

	out := make([]byte, s.pageSize)
	if int64(pg)*int64(s.pageSize) > s.hdr.size {
		return out, nil
	}

	loc, err := s.findPage(pg)
	if err != nil {
		return nil, err
	}
	if loc.Offset == 0 {
		return out, nil
	}
	return s.loadPage(pg, loc, out)
}

func (s *Store) loadPage(pg uint32, loc PageLocation, out []byte) ([]byte, error) {
	z, err := s.loadData(loc.Offset+slotHeaderSize, loc.Size)
	if err != nil {
		return nil, err
	}

	if loc.Size == s.pageSize {
		copy(out, z)
		return out, nil
	}

	page, err := s.codec.Decompress(out[:0], z, s.pageSize)
	if err != nil {
		return nil, s.corrupt("loadPage", ErrCorruptSlot, "page %d at %d: %v", pg, loc.Offset, err)
	}
	if len(page) != s.pageSize {
		return nil, s.corrupt("loadPage", ErrCorruptSlot, "page %d at %d decompressed to %d bytes", pg, loc.Offset, len(page))
	}
	return page, nil
}

// PageLocation reports where page pg is stored. A zero Offset means the
// page has no slot.
func (s *Store) PageLocation(pg uint32) (PageLocation, error) {
	if err := s.checkRead("PageLocation"); err != nil {
		return PageLocation{}, err
	}
	if pg == 0 || int64(pg)*int64(s.pageSize) > s.hdr.size {
		return PageLocation{}, nil
	}
	return s.findPage(pg)
}

// PageCount is the number of logical pages
func (s *Store) PageCount() (uint32, error) {
	if err := s.checkRead("PageCount"); err != nil {
		return 0, err
	}
	return uint32(s.hdr.size / int64(s.pageSize)), nil
}
