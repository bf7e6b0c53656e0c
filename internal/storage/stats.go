package storage

import "fmt"

// A Stat describes space use in the file
type Stat struct {
	Pages         uint32
	PageSize      int
	Codec         string
	FreeSlots     int64
	FreeBytes     int64
	FragmentBytes int64
	GapBytes      int64
	FileBytes     int64
	ContentBytes  int64
}

func (s *Store) Stats() (Stat, error) {
	if err := s.checkRead("Stats"); err != nil {
		return Stat{}, err
	}

	h := s.hdr
	st := Stat{
		Pages:         uint32(h.size / int64(s.pageSize)),
		PageSize:      s.pageSize,
		Codec:         s.codec.Name(),
		FreeSlots:     h.nFreeSlot,
		FreeBytes:     h.nFreeByte,
		FragmentBytes: h.nFreeFragment,
		GapBytes:      h.gapEnd - h.gapStart,
		FileBytes:     h.dataEnd,
	}
	nSlot := h.nFreeSlot + int64(st.Pages)
	st.ContentBytes = h.dataEnd - h.dataStart - h.nFreeByte - h.nFreeFragment - st.GapBytes - slotHeaderSize*nSlot
	return st, nil
}

func (st Stat) String() string {
	return fmt.Sprintf("pages=%d free=%d/%d frag=%d gap=%d file=%d content=%d",
		st.Pages, st.FreeSlots, st.FreeBytes, st.FragmentBytes, st.GapBytes, st.FileBytes, st.ContentBytes)
}
