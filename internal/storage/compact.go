package storage

import (
	"context"
	"fmt"
)

// Compact slides pages towards the start of the data area, squeezing out
// free slots and padding. At most maxBytes of the data area are scanned
// per call, zero or less meaning all of it. Progress between calls is kept
// as a gap in the data area. Compact runs its own transaction and returns
// the number of bytes still to scan.
//
// A cancelled ctx stops the scan between slots; the work done so far is
// committed and ctx.Err() returned.
func (s *Store) Compact(ctx context.Context, maxBytes int64) (int64, error) {
	if s.inWrite {
		return 0, fmt.Errorf("Compact: %w (write transaction open)", ErrMisuse)
	}
	if err := s.Begin(); err != nil {
		return 0, err
	}

	err := s.compact(ctx, maxBytes)
	stopped := err != nil && err == ctx.Err()
	if err != nil && !stopped {
		if rErr := s.Rollback(); rErr != nil {
			s.log.Errorf("Compact: rollback: %v", rErr)
		}
		return 0, err
	}

	var remaining int64
	switch {
	case s.hdr.gapStart != 0:
		remaining = s.hdr.dataEnd - s.hdr.gapEnd
	case stopped:
		remaining = s.hdr.dataEnd - s.hdr.dataStart
	}
	if cErr := s.Commit(); cErr != nil {
		return 0, cErr
	}
	if stopped {
		return remaining, err
	}
	return remaining, s.integrityCheck()
}

func (s *Store) compact(ctx context.Context, maxBytes int64) error {
	h := &s.hdr
	if h.nFreeByte == 0 && h.gapStart == 0 {
		done, err := s.padOnly()
		if err != nil || done {
			return err
		}
	}

	read, write := h.dataStart, h.dataStart
	if h.gapStart != 0 {
		read, write = h.gapEnd, h.gapStart
	}

	for {
		from, err := s.compactPass(ctx, read, write, maxBytes)
		if err != nil || h.gapStart != 0 {
			return err
		}

		// Pages rewritten below the gap since an earlier call leave free
		// slots there. Scan again from the start of the data area.
		if from == h.dataStart || h.nFreeSlot == 0 {
			break
		}
		s.log.Infof("Compact: %d free slots below the old gap, starting over", h.nFreeSlot)
		if maxBytes > 0 {
			h.gapStart, h.gapEnd = h.dataStart, h.dataStart
			return nil
		}
		read, write = h.dataStart, h.dataStart
	}

	if h.freeSlot != 0 || h.nFreeByte != 0 || h.nFreeSlot != 0 || h.nFreeFragment < 0 {
		return s.corrupt("Compact", ErrCorrupt, "free list not empty after compaction: %d slots, %d bytes", h.nFreeSlot, h.nFreeByte)
	}
	s.log.Infof("Compact: done, %d bytes in use", h.dataEnd)
	return nil
}

// compactPass moves slots from read down to write, scanning at most
// maxBytes. Reaching the end of data closes the gap and shrinks the file.
// It returns the offset the pass started writing at.
func (s *Store) compactPass(ctx context.Context, read, write, maxBytes int64) (int64, error) {
	h := &s.hdr
	from := write

	end := h.dataEnd
	if maxBytes > 0 && read+maxBytes < h.dataEnd {
		end = read + maxBytes
	}

	start := read
	for read < end {
		if err := ctx.Err(); err != nil {
			s.log.Infof("Compact: stopped after %d bytes: %v", read-start, err)
			return from, err
		}
		if err := s.integrityCheck(); err != nil {
			return from, err
		}

		pg, payload, loc, err := s.slotOwner(read)
		if err != nil {
			return from, err
		}

		if pg != 0 {
			pad := max(0, MinPayload-loc.Size)
			z, err := s.loadData(read+slotHeaderSize, loc.Size)
			if err != nil {
				return from, err
			}
			if write, err = s.writePageTo(pg, write, z, pad); err != nil {
				return from, err
			}
			h.nFreeFragment -= int64(payload - loc.Size - pad)
		} else if err := s.freelistRemove(read, payload); err != nil {
			return from, err
		}

		read += slotHeaderSize + int64(payload)
		h.gapStart, h.gapEnd = write, read
	}

	if read < h.dataEnd {
		return from, nil
	}
	h.dataEnd = write
	h.gapStart, h.gapEnd = 0, 0
	return from, s.truncateImage(uint32(write/int64(s.hostPageSize)) + 1)
}

// padOnly reports whether all fragment bytes are the padding compaction
// gives short pages, so a pass would leave the file as it is
func (s *Store) padOnly() (bool, error) {
	var pad int64
	nPage := uint32(s.hdr.size / int64(s.pageSize))
	for pg := uint32(1); pg <= nPage; pg++ {
		loc, err := s.findPage(pg)
		if err != nil {
			return false, err
		}
		if loc.Offset != 0 {
			pad += int64(max(0, MinPayload-loc.Size))
		}
	}
	return pad == s.hdr.nFreeFragment, nil
}
