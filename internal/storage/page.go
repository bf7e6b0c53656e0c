package storage

// File layout
//
//	[0,16)              "ZV-" + codec name
//	[16,100)            host pager
//	[100,200)           header
//	[200,dataStart)     page map, 8 bytes per logical page
//	[dataStart,dataEnd) slots, possibly with a gap [gapStart,gapEnd)
//
// Every slot is a 6 byte header followed by its payload. A slot either
// holds a compressed page or is free. Free slots are indexed by a b-tree
// that lives in the payloads of free slots.

const (
	identitySize       = 16
	identityPrefix     = "ZV-"
	headerOffset       = 100
	headerSize         = 100
	pageMapOffset      = 200
	initialPageMapSize = 256
	pageMapEntrySize   = 8
	slotHeaderSize     = 6
	gapConsumeSize     = 128

	MinPayload = 37
	MaxPayload = 131071

	paddingSentinel = 0x7F
	maxDepth        = 64

	MinPageSize = 512
	MaxPageSize = 65536
	maxOffset   = 1<<40 - 1
)

// A slot in the data area
type slotRef struct {
	off  int64
	size int
}

// Location of a stored page as recorded in the page map
type PageLocation struct {
	Offset  int64
	Size    int
	Padding int
}

func validPageSize(n int) bool {
	return n >= MinPageSize && n <= MaxPageSize && n&(n-1) == 0
}
