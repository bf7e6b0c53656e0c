package storage

import "encoding/binary"

// split inserts key into the full node ps and divides the result between
// ps and its reserved sibling. The sibling takes the smaller keys, as many
// as fit up to half. The divider between the two is returned.
func (s *Store) split(ps *pathSlot, key uint64, child int64) (uint64, error) {
	h, cnt := ps.height(), ps.count()
	sz := entrySize(h)

	ins := make([]byte, sz)
	binary.BigEndian.PutUint64(ins, key)
	if h > 1 {
		putU40(ins[8:], child)
	}

	old := ps.entries()
	merged := make([]byte, 0, (cnt+1)*sz)
	merged = append(merged, old[:ps.iEntry*sz]...)
	merged = append(merged, ins...)
	merged = append(merged, old[ps.iEntry*sz:]...)

	nNew := (cnt + 1) / 2
	if avail := (ps.sibPayload - nodeOffset(h, 0)) / sz; avail < nNew {
		nNew = avail
	}
	if nNew < 1 {
		return 0, s.corrupt("split", ErrCorruptTree, "sibling %d too small (%d bytes)", ps.sibOff, ps.sibPayload)
	}
	nOld := cnt - nNew
	div := merged[nNew*sz : (nNew+1)*sz]

	left := newNode(ps.sibOff, nodeOffset(h, nNew), h)
	left.setCount(nNew)
	if h > 1 {
		left.setRightChild(getU40(div[8:]))
	}
	copy(left.payload[nodeOffset(h, 0):], merged[:nNew*sz])

	ps.setCount(nOld)
	copy(ps.payload[nodeOffset(h, 0):], merged[(nNew+1)*sz:])

	if err := s.storeNode(left); err != nil {
		return 0, err
	}
	if err := s.storeData(ps.off+slotHeaderSize, ps.payload[:ps.used()]); err != nil {
		return 0, err
	}

	s.log.Debugf("split: node %d height %d into %d/%d, new sibling %d", ps.off, h, nNew, nOld, ps.sibOff)
	return binary.BigEndian.Uint64(div), nil
}
