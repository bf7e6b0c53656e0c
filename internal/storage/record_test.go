package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyEncoding(t *testing.T) {
	tests := []struct {
		size int
		off  int64
	}{
		{MinPayload, 456},
		{MaxPayload, 1},
		{1000, maxOffset},
		{4096, 1 << 33},
	}

	for _, tt := range tests {
		k := encodeKey(tt.size, tt.off)
		size, off, used := decodeKey(k)
		assert.Equal(t, tt.size, size)
		assert.Equal(t, tt.off, off)
		assert.False(t, used)

		_, _, used = decodeKey(k | keyUsed)
		assert.True(t, used)
		assert.Equal(t, k, (k|keyUsed)&keyMask)
	}
}

func TestKeyOrder(t *testing.T) {
	// Size first, then offset
	assert.Less(t, encodeKey(50, maxOffset), encodeKey(51, 1))
	assert.Less(t, encodeKey(50, 1000), encodeKey(50, 1001))
	assert.Less(t, encodeKey(50, 1000)|keyUsed, encodeKey(50, 1001))
}

func TestSlotHeaderEncoding(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 1024})

	tests := []struct {
		pg      uint32
		payload int
	}{
		{0, MinPayload},
		{1, 1000},
		{0x7FFFFFFF, MaxPayload},
		{12345, 65536},
	}

	require.NoError(t, s.Begin())
	defer s.Rollback()

	off := int64(1000)
	for _, tt := range tests {
		require.NoError(t, s.writeSlotHeader(off, tt.pg, tt.payload))
		pg, payload, err := s.readSlotHeader(off)
		require.NoError(t, err)
		assert.Equal(t, tt.pg, pg)
		assert.Equal(t, tt.payload, payload)
	}

	require.NoError(t, s.writeSlotHeader(off, 1, MinPayload-1))
	_, _, err := s.readSlotHeader(off)
	assert.ErrorIs(t, err, ErrCorruptSlot)
	assert.True(t, IsCorrupt(err))
}

func TestPageMapEntry(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 1024})
	require.NoError(t, s.Begin())
	defer s.Rollback()

	assert.Equal(t, int64(200), pageMapEntry(1))
	assert.Equal(t, int64(448), pageMapEntry(32))
	assert.True(t, s.mapped(32))
	assert.False(t, s.mapped(33))

	require.NoError(t, s.putPageMapEntry(3, 1<<39, 4095, 100))
	loc, err := s.findPage(3)
	require.NoError(t, err)
	assert.Equal(t, PageLocation{Offset: 1 << 39, Size: 4095, Padding: 100}, loc)

	// Large padding is read back from the slot header
	require.NoError(t, s.writeSlotHeader(2000, 4, 700))
	require.NoError(t, s.putPageMapEntry(4, 2000, 500, 200))
	loc, err = s.findPage(4)
	require.NoError(t, err)
	assert.Equal(t, PageLocation{Offset: 2000, Size: 500, Padding: 200}, loc)

	loc, err = s.findPage(5)
	require.NoError(t, err)
	assert.Zero(t, loc.Offset)
}

func TestNodeLayout(t *testing.T) {
	assert.Equal(t, 4, nodeOffset(1, 0))
	assert.Equal(t, 12, nodeOffset(1, 1))
	assert.Equal(t, 9, nodeOffset(2, 0))
	assert.Equal(t, 35, nodeOffset(3, 2))

	// The smallest slot holds four leaf keys or two interior entries
	leaf := newNode(0, MinPayload, 1)
	leaf.setCount(4)
	assert.True(t, leaf.full())
	inner := newNode(0, MinPayload, 2)
	inner.setCount(2)
	assert.True(t, inner.full())

	n := newNode(0, 100, 2)
	n.setCount(1)
	n.setRightChild(999)
	n.setEntry(0, encodeKey(50, 10), 20)
	n.insertEntry(0, encodeKey(40, 10), 30)
	n.insertEntry(2, encodeKey(60, 10), 40)

	require.Equal(t, 3, n.count())
	assert.Equal(t, encodeKey(40, 10), n.key(0))
	assert.Equal(t, int64(30), n.child(0))
	assert.Equal(t, int64(40), n.child(2))
	assert.Equal(t, int64(999), n.rightChild())

	n.removeEntry(0)
	assert.Equal(t, 2, n.count())
	assert.Equal(t, encodeKey(50, 10), n.key(0))
	assert.Equal(t, int64(20), n.child(0))
}
