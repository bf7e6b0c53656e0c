package storage

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario leaves page 1 at the end of the file behind a free 1000
// byte slot, with the incompressible page 2 in between
func writeScenario(t *testing.T, s *Store) map[uint32][]byte {
	t.Helper()
	pages := map[uint32][]byte{
		1: sizedPage(4096, 1200, 1),
		2: sizedPage(4096, 5000, 2),
	}
	update(t, s, func() error {
		if err := s.WritePage(1, sizedPage(4096, 1000, 9)); err != nil {
			return err
		}
		return s.WritePage(2, pages[2])
	})
	update(t, s, func() error { return s.WritePage(1, pages[1]) })
	return pages
}

func checkPages(t *testing.T, s *Store, pages map[uint32][]byte) {
	t.Helper()
	for pg, want := range pages {
		got, err := s.ReadPage(pg)
		require.NoError(t, err)
		assert.Equal(t, want, got, "page %d", pg)
	}
}

func TestCompact(t *testing.T) {
	s, p := openTestStore(t, Options{PageSize: 4096, IntegrityCheck: true})
	pages := writeScenario(t, s)

	remaining, err := s.Compact(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	loc, err := s.PageLocation(2)
	require.NoError(t, err)
	assert.Equal(t, int64(456), loc.Offset)
	loc, err = s.PageLocation(1)
	require.NoError(t, err)
	assert.Equal(t, int64(456+6+4096), loc.Offset)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.FreeSlots)
	assert.Zero(t, st.FreeBytes)
	assert.Zero(t, st.FragmentBytes)
	assert.Zero(t, st.GapBytes)
	assert.Equal(t, int64(456+6+4096+6+1200), st.FileBytes)

	// The host file keeps one page past the end of data
	assert.Equal(t, uint32(5764/testHostPageSize+1), p.PageCount())
	checkPages(t, s, pages)

	// Nothing left to do the second time
	remaining, err = s.Compact(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, remaining)
	again, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, st, again)
	assert.Equal(t, uint32(6), p.PageCount())
}

func TestCompactInSteps(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 4096, IntegrityCheck: true})
	pages := writeScenario(t, s)

	// One slot per call at most
	remaining, err := s.Compact(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6770-1462), remaining)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1462-456), st.GapBytes)
	assert.Zero(t, st.FreeSlots)
	require.NoError(t, s.IntegrityCheck())
	checkPages(t, s, pages)

	remaining, err = s.Compact(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6770-5564), remaining)
	checkPages(t, s, pages)

	remaining, err = s.Compact(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	st, err = s.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.GapBytes)
	assert.Equal(t, int64(5764), st.FileBytes)
	checkPages(t, s, pages)
}

func TestCompactCancelled(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 4096, IntegrityCheck: true})
	pages := writeScenario(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	remaining, err := s.Compact(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(6770-456), remaining)
	assert.False(t, s.InWrite())
	checkPages(t, s, pages)

	remaining, err = s.Compact(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, remaining)
	checkPages(t, s, pages)
}

// gapWithFreeSlotBelow compacts part of the file, then rewrites the page
// that was moved below the gap so its old slot is freed there
func gapWithFreeSlotBelow(t *testing.T, s *Store) map[uint32][]byte {
	t.Helper()
	pages := map[uint32][]byte{}
	update(t, s, func() error {
		for pg := uint32(1); pg <= 4; pg++ {
			pages[pg] = sizedPage(4096, 300, byte(pg))
			if err := s.WritePage(pg, pages[pg]); err != nil {
				return err
			}
		}
		return nil
	})
	pages[1] = sizedPage(4096, 400, 11)
	update(t, s, func() error { return s.WritePage(1, pages[1]) })

	// Drops the free slot of page 1 and moves page 2 down
	_, err := s.Compact(context.Background(), 400)
	require.NoError(t, err)
	loc, err := s.PageLocation(2)
	require.NoError(t, err)
	require.Less(t, loc.Offset, s.hdr.gapStart)

	pages[2] = sizedPage(4096, 200, 12)
	update(t, s, func() error { return s.WritePage(2, pages[2]) })

	st, err := s.Stats()
	require.NoError(t, err)
	require.Equal(t, int64(1), st.FreeSlots)
	require.Positive(t, st.GapBytes)
	require.NoError(t, s.IntegrityCheck())
	return pages
}

func requireCompacted(t *testing.T, s *Store, pages map[uint32][]byte) {
	t.Helper()
	st, err := s.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.FreeSlots)
	assert.Zero(t, st.FreeBytes)
	assert.Zero(t, st.GapBytes)
	require.NoError(t, s.IntegrityCheck())
	checkPages(t, s, pages)
}

func TestCompactAfterWriteBelowGap(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 4096, IntegrityCheck: true})
	pages := gapWithFreeSlotBelow(t, s)

	remaining, err := s.Compact(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, remaining)
	requireCompacted(t, s, pages)

	remaining, err = s.Compact(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestCompactInStepsAfterWriteBelowGap(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 4096, IntegrityCheck: true})
	pages := gapWithFreeSlotBelow(t, s)

	var remaining int64
	var err error
	for i := 0; i < 20; i++ {
		remaining, err = s.Compact(context.Background(), 1)
		require.NoError(t, err)
		checkPages(t, s, pages)
		if remaining == 0 {
			break
		}
	}
	assert.Zero(t, remaining)
	requireCompacted(t, s, pages)
}

// Short pages keep their padding, which is no reason to compact again
func TestCompactPaddedPagesIsNoop(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 4096, IntegrityCheck: true})
	pages := map[uint32][]byte{
		1: sizedPage(4096, 10, 1),
		2: sizedPage(4096, 300, 2),
	}
	update(t, s, func() error {
		for pg, data := range pages {
			if err := s.WritePage(pg, data); err != nil {
				return err
			}
		}
		return nil
	})
	_, err := s.Compact(context.Background(), 0)
	require.NoError(t, err)

	st, err := s.Stats()
	require.NoError(t, err)
	require.Equal(t, int64(MinPayload-10), st.FragmentBytes)

	// A pass would notice the cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	remaining, err := s.Compact(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, remaining)
	checkPages(t, s, pages)
}

func TestCompactInsideTransaction(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 4096})
	require.NoError(t, s.Begin())
	defer s.Rollback()

	_, err := s.Compact(context.Background(), 0)
	assert.ErrorIs(t, err, ErrMisuse)
}

// A gap left by a partial compaction is where the page map grows first
func TestGapFeedsPageMap(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 1024, IntegrityCheck: true})

	pages := map[uint32][]byte{}
	update(t, s, func() error {
		for pg := uint32(1); pg <= 32; pg++ {
			pages[pg] = sizedPage(1024, 200, byte(pg))
			if err := s.WritePage(pg, pages[pg]); err != nil {
				return err
			}
		}
		return s.Truncate(16 * 1024)
	})
	for pg := uint32(17); pg <= 32; pg++ {
		delete(pages, pg)
	}

	// Page 17 onwards are now free, squeeze out the first few
	rng := rand.New(rand.NewSource(3))
	update(t, s, func() error {
		for pg := uint32(1); pg <= 4; pg++ {
			pages[pg] = sizedPage(1024, 100+rng.Intn(50), byte(pg))
			if err := s.WritePage(pg, pages[pg]); err != nil {
				return err
			}
		}
		return nil
	})
	_, err := s.Compact(context.Background(), 500)
	require.NoError(t, err)
	st, err := s.Stats()
	require.NoError(t, err)
	require.Positive(t, st.GapBytes)
	require.Equal(t, int64(456), s.hdr.gapStart)

	update(t, s, func() error {
		for pg := uint32(33); pg <= 40; pg++ {
			pages[pg] = sizedPage(1024, 80, byte(pg))
			if err := s.WritePage(pg, pages[pg]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, s.IntegrityCheck())
	checkPages(t, s, pages)

	_, err = s.Compact(context.Background(), 0)
	require.NoError(t, err)
	checkPages(t, s, pages)
}

func TestStructure(t *testing.T) {
	s, _ := openTestStore(t, Options{PageSize: 4096})
	writeScenario(t, s)

	var slots []SlotInfo
	require.NoError(t, s.Structure(func(si SlotInfo) error {
		slots = append(slots, si)
		return nil
	}))

	assert.Equal(t, []SlotInfo{
		{Page: 1, Offset: 5564, Size: 1200},
		{Page: 2, Offset: 1462, Size: 4096},
		{Offset: 456, Size: 1000, InUse: true},
	}, slots)
}
