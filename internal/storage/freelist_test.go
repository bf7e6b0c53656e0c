package storage

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendFreeSlots(t *testing.T, s *Store, sizes ...int) []int64 {
	t.Helper()
	offs := make([]int64, len(sizes))
	for i, size := range sizes {
		off, err := s.AppendFreeSlot(size)
		require.NoError(t, err)
		offs[i] = off
	}
	return offs
}

func TestExactAndBestFit(t *testing.T) {
	t.Run("exact", func(t *testing.T) {
		s, _ := openTestStore(t, Options{PageSize: 1024, MaxFree: 2})
		require.NoError(t, s.Begin())
		defer s.Rollback()

		offs := appendFreeSlots(t, s, 50, 80, 120)
		off, err := s.TakeFreeSlot(80)
		require.NoError(t, err)
		assert.Equal(t, offs[1], off)

		off, err = s.TakeFreeSlot(60)
		require.NoError(t, err)
		assert.Zero(t, off)
		assert.Equal(t, []slotRef{{off: offs[0], size: 50}, {off: offs[2], size: 120}}, freeSlots(t, s))
	})

	t.Run("best fit", func(t *testing.T) {
		s, _ := openTestStore(t, Options{PageSize: 1024, MaxFree: 2, MaxFrag: 30})
		require.NoError(t, s.Begin())
		defer s.Rollback()

		offs := appendFreeSlots(t, s, 50, 80, 120)
		off, size, err := s.BestFit(60)
		require.NoError(t, err)
		assert.Equal(t, offs[1], off)
		assert.Equal(t, 80, size)

		// 120 is more than 30 bytes too big
		off, _, err = s.BestFit(60)
		require.NoError(t, err)
		assert.Zero(t, off)

		off, size, err = s.BestFit(100)
		require.NoError(t, err)
		assert.Equal(t, offs[2], off)
		assert.Equal(t, 120, size)
	})
}

func TestAppendFreeSlotLimits(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 1024})
	_, err := s.AppendFreeSlot(100)
	assert.ErrorIs(t, err, ErrNoTransaction)

	require.NoError(t, s.Begin())
	defer s.Rollback()
	_, err = s.AppendFreeSlot(MinPayload - 1)
	assert.ErrorIs(t, err, ErrMisuse)
	_, err = s.AppendFreeSlot(MaxPayload + 1)
	assert.ErrorIs(t, err, ErrMisuse)
}

// The tree lives in the slots it indexes. Fill it with small slots so it
// grows several levels, then take it apart in random order.
func TestFreeListSelfHosting(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 1024, IntegrityCheck: true})
	require.NoError(t, s.Begin())
	defer s.Rollback()

	rng := rand.New(rand.NewSource(7))
	var live []slotRef
	for i := 0; i < 400; i++ {
		size := MinPayload + rng.Intn(24)
		off, err := s.AppendFreeSlot(size)
		require.NoError(t, err)
		live = append(live, slotRef{off: off, size: size})
	}
	checkFreeList(t, s, live)

	root, err := s.loadNode(s.hdr.freeSlot)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, root.height(), 3)

	var removed []slotRef
	for round := 0; round < 4; round++ {
		rng.Shuffle(len(live), func(i, j int) { live[i], live[j] = live[j], live[i] })

		// Drop most of what is left, then put some back
		n := len(live) * 3 / 4
		for _, ref := range live[:n] {
			require.NoError(t, s.freelistRemove(ref.off, ref.size))
		}
		removed = append(removed, live[:n]...)
		live = live[n:]
		checkFreeList(t, s, live)

		back := removed[:len(removed)/2]
		for _, ref := range back {
			require.NoError(t, s.freelistAdd(ref.off, ref.size))
		}
		live = append(live, back...)
		removed = removed[len(back):]
		checkFreeList(t, s, live)
	}

	for _, ref := range live {
		require.NoError(t, s.freelistRemove(ref.off, ref.size))
	}
	assert.Zero(t, s.hdr.freeSlot)
	assert.Zero(t, s.hdr.nFreeSlot)
	assert.Zero(t, s.hdr.nFreeByte)
}

func TestFreeListBestFitDrain(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 1024, IntegrityCheck: true, MaxFree: 1, MaxFrag: MaxPayload})
	require.NoError(t, s.Begin())
	defer s.Rollback()

	rng := rand.New(rand.NewSource(11))
	var live []slotRef
	for i := 0; i < 200; i++ {
		size := MinPayload + rng.Intn(200)
		off, err := s.AppendFreeSlot(size)
		require.NoError(t, err)
		live = append(live, slotRef{off: off, size: size})
	}

	// Every request gets the smallest slot that is big enough
	for len(live) > 0 {
		want := MinPayload + rng.Intn(200)
		sortSlots(live)
		i := sort.Search(len(live), func(i int) bool { return live[i].size >= want })

		off, size, err := s.BestFit(want)
		require.NoError(t, err)
		if i == len(live) {
			assert.Zero(t, off)
			continue
		}
		assert.Equal(t, live[i], slotRef{off: off, size: size})
		live = append(live[:i], live[i+1:]...)
	}
	assert.Zero(t, s.hdr.freeSlot)
}

func TestFreeListMissingKey(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 1024})
	require.NoError(t, s.Begin())
	defer s.Rollback()

	offs := appendFreeSlots(t, s, 50, 60)
	err := s.freelistRemove(offs[0], 51)
	assert.ErrorIs(t, err, ErrCorruptTree)

	err = s.freelistAdd(offs[1], 60)
	assert.ErrorIs(t, err, ErrCorruptTree)
}

func TestIntegrityCheckStrayKey(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 4096})
	update(t, s, func() error {
		if err := s.WritePage(1, sizedPage(4096, 200, 1)); err != nil {
			return err
		}
		_, err := s.AppendFreeSlot(100)
		return err
	})
	require.NoError(t, s.IntegrityCheck())

	require.NoError(t, s.Begin())
	defer s.Rollback()

	// A key naming the slot of page 1, with the counters left as they were
	loc, err := s.PageLocation(1)
	require.NoError(t, err)
	size := loc.Size + loc.Padding
	require.NoError(t, s.freelistAdd(loc.Offset, size))
	s.hdr.nFreeSlot--
	s.hdr.nFreeByte -= int64(size)

	assert.ErrorIs(t, s.IntegrityCheck(), ErrCorruptTree)
}

func sortSlots(refs []slotRef) {
	sort.Slice(refs, func(i, j int) bool {
		return encodeKey(refs[i].size, refs[i].off) < encodeKey(refs[j].size, refs[j].off)
	})
}

// checkFreeList compares a walk of the tree with the slots expected there
func checkFreeList(t *testing.T, s *Store, want []slotRef) {
	t.Helper()
	require.NoError(t, s.checkTree())

	want = append([]slotRef(nil), want...)
	sortSlots(want)
	got := freeSlots(t, s)
	if len(want) == 0 {
		assert.Empty(t, got)
	} else {
		assert.Equal(t, want, got)
	}

	var nByte int64
	for _, ref := range want {
		nByte += int64(ref.size)
	}
	assert.Equal(t, int64(len(want)), s.hdr.nFreeSlot)
	assert.Equal(t, nByte, s.hdr.nFreeByte)
}
