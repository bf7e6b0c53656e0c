package storage

import (
	"encoding/binary"
	"fmt"
)

// The header lives at byte 100 of the file, all fields big-endian
const (
	freeSlotOffset      = 0
	dataStartOffset     = 8
	dataEndOffset       = 16
	gapStartOffset      = 24
	gapEndOffset        = 32
	sizeOffset          = 40
	nFreeSlotOffset     = 48
	nFreeByteOffset     = 56
	nFreeFragmentOffset = 64
	pageSizeOffset      = 72
	versionOffset       = 76
)

const (
	VersionRollback = 1
	VersionWAL      = 2
)

type header struct {
	freeSlot      int64
	dataStart     int64
	dataEnd       int64
	gapStart      int64
	gapEnd        int64
	size          int64
	nFreeSlot     int64
	nFreeByte     int64
	nFreeFragment int64
	pageSize      uint32
	version       uint32
}

func (h *header) decode(b []byte) {
	get := func(at int) int64 { return int64(binary.BigEndian.Uint64(b[at:])) }

	h.freeSlot = get(freeSlotOffset)
	h.dataStart = get(dataStartOffset)
	h.dataEnd = get(dataEndOffset)
	h.gapStart = get(gapStartOffset)
	h.gapEnd = get(gapEndOffset)
	h.size = get(sizeOffset)
	h.nFreeSlot = get(nFreeSlotOffset)
	h.nFreeByte = get(nFreeByteOffset)
	h.nFreeFragment = get(nFreeFragmentOffset)
	h.pageSize = binary.BigEndian.Uint32(b[pageSizeOffset:])
	h.version = binary.BigEndian.Uint32(b[versionOffset:])

	// A new file
	if h.dataEnd == 0 {
		h.dataStart = pageMapOffset + initialPageMapSize
		h.dataEnd = h.dataStart
	}
}

func (h *header) encode() []byte {
	b := make([]byte, headerSize)
	put := func(at int, v int64) { binary.BigEndian.PutUint64(b[at:], uint64(v)) }

	put(freeSlotOffset, h.freeSlot)
	put(dataStartOffset, h.dataStart)
	put(dataEndOffset, h.dataEnd)
	put(gapStartOffset, h.gapStart)
	put(gapEndOffset, h.gapEnd)
	put(sizeOffset, h.size)
	put(nFreeSlotOffset, h.nFreeSlot)
	put(nFreeByteOffset, h.nFreeByte)
	put(nFreeFragmentOffset, h.nFreeFragment)
	binary.BigEndian.PutUint32(b[pageSizeOffset:], h.pageSize)
	binary.BigEndian.PutUint32(b[versionOffset:], h.version)
	return b
}

func (s *Store) loadHeader() error {
	b, err := s.loadData(headerOffset, headerSize)
	if err != nil {
		return err
	}

	var h header
	h.decode(b)

	if h.version > VersionWAL {
		return fmt.Errorf("loadHeader: %w (%d)", ErrVersion, h.version)
	}
	if h.size > 0 && !validPageSize(int(h.pageSize)) {
		return s.corrupt("loadHeader", ErrBadPageSize, "page size %d", h.pageSize)
	}
	if h.dataStart < pageMapOffset || h.dataEnd < h.dataStart || h.dataEnd > maxOffset {
		return s.corrupt("loadHeader", ErrCorruptHeader, "data area [%d,%d)", h.dataStart, h.dataEnd)
	}
	if h.gapStart != 0 && (h.gapStart < h.dataStart || h.gapEnd < h.gapStart || h.gapEnd > h.dataEnd) {
		return s.corrupt("loadHeader", ErrCorruptHeader, "gap [%d,%d)", h.gapStart, h.gapEnd)
	}

	s.hdr = h
	return nil
}

func (s *Store) storeHeader() error {
	return s.storeData(headerOffset, s.hdr.encode())
}
