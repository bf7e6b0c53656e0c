package storage

import "encoding/binary"

// A free-slot tree node is the payload of a free slot.
//
//	height u16 | count u16 | right child u40 (interior only) | entries
//
// Leaf entries are a bare 8 byte key. Interior entries are a key followed
// by the u40 offset of the child holding the smaller keys.

type node struct {
	off     int64
	payload []byte
}

func nodeHeaderSize(h int) int {
	if h > 1 {
		return 9
	}
	return 4
}

func entrySize(h int) int {
	if h > 1 {
		return 13
	}
	return 8
}

func nodeOffset(h, i int) int {
	return nodeHeaderSize(h) + i*entrySize(h)
}

func newNode(off int64, size, height int) *node {
	n := &node{off: off, payload: make([]byte, size)}
	n.setHeight(height)
	return n
}

// GETTERS
func (n *node) height() int {
	return int(binary.BigEndian.Uint16(n.payload[0:2]))
}

func (n *node) count() int {
	return int(binary.BigEndian.Uint16(n.payload[2:4]))
}

func (n *node) rightChild() int64 {
	return getU40(n.payload[4:9])
}

func (n *node) key(i int) uint64 {
	at := nodeOffset(n.height(), i)
	return binary.BigEndian.Uint64(n.payload[at : at+8])
}

func (n *node) child(i int) int64 {
	at := nodeOffset(n.height(), i) + 8
	return getU40(n.payload[at : at+5])
}

// full reports whether another entry would not fit
func (n *node) full() bool {
	return nodeOffset(n.height(), n.count()+1) > len(n.payload)
}

// used is the number of payload bytes holding live data
func (n *node) used() int {
	return nodeOffset(n.height(), n.count())
}

func (n *node) entries() []byte {
	h := n.height()
	return n.payload[nodeOffset(h, 0):n.used()]
}

// SETTERS
func (n *node) setHeight(h int) {
	binary.BigEndian.PutUint16(n.payload[0:2], uint16(h))
}

func (n *node) setCount(c int) {
	binary.BigEndian.PutUint16(n.payload[2:4], uint16(c))
}

func (n *node) setRightChild(off int64) {
	putU40(n.payload[4:9], off)
}

func (n *node) setKey(i int, k uint64) {
	at := nodeOffset(n.height(), i)
	binary.BigEndian.PutUint64(n.payload[at:at+8], k)
}

func (n *node) setChild(i int, off int64) {
	at := nodeOffset(n.height(), i) + 8
	putU40(n.payload[at:at+5], off)
}

func (n *node) setEntry(i int, k uint64, child int64) {
	n.setKey(i, k)
	if n.height() > 1 {
		n.setChild(i, child)
	}
}

// insertEntry shifts entries i and up one place to the right
func (n *node) insertEntry(i int, k uint64, child int64) {
	h, cnt := n.height(), n.count()
	at, end, sz := nodeOffset(h, i), nodeOffset(h, cnt), entrySize(h)

	copy(n.payload[at+sz:end+sz], n.payload[at:end])
	n.setCount(cnt + 1)
	n.setEntry(i, k, child)
}

func (n *node) removeEntry(i int) {
	h, cnt := n.height(), n.count()
	at, end, sz := nodeOffset(h, i), nodeOffset(h, cnt), entrySize(h)

	copy(n.payload[at:], n.payload[at+sz:end])
	n.setCount(cnt - 1)
}

// keyBytes returns the on-disk bytes of key i
func (n *node) keyBytes(i int) []byte {
	at := nodeOffset(n.height(), i)
	return n.payload[at : at+8]
}

func (s *Store) loadNode(off int64) (*node, error) {
	_, payload, err := s.readSlotHeader(off)
	if err != nil {
		return nil, err
	}
	data, err := s.loadData(off+slotHeaderSize, payload)
	if err != nil {
		return nil, err
	}

	n := &node{off: off, payload: data}
	h, cnt := n.height(), n.count()
	if h < 1 || cnt < 1 || nodeOffset(h, cnt) > payload {
		return nil, s.corrupt("loadNode", ErrCorruptTree, "node %d height %d count %d payload %d", off, h, cnt, payload)
	}
	return n, nil
}

func (s *Store) storeNode(n *node) error {
	return s.storeData(n.off+slotHeaderSize, n.payload)
}

// storeKey writes back the single key i of n
func (s *Store) storeKey(n *node, i int) error {
	if n.off == 0 {
		return nil
	}
	at := nodeOffset(n.height(), i)
	return s.storeData(n.off+slotHeaderSize+int64(at), n.payload[at:at+8])
}
