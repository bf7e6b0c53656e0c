package storage

// Free-slot keys sort by payload size, then offset. The low bit is set
// while the slot holds a node of the tree itself.
//
//	size(17) | offset(40) | 0 | used(1)

const (
	keyUsed uint64 = 1
	keyMask        = ^keyUsed
)

func encodeKey(size int, off int64) uint64 {
	return uint64(size)<<41 | uint64(off)<<1
}

func decodeKey(k uint64) (size int, off int64, used bool) {
	size = int(k >> 41)
	off = int64(k>>1) & maxOffset
	used = k&keyUsed != 0
	return
}
