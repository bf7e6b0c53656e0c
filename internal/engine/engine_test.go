package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.zipstore/internal/config"
	"go.zipstore/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	home := t.TempDir()
	cfg := &config.Config{
		Home:     home,
		DataDir:  filepath.Join(home, "data"),
		LogDir:   filepath.Join(home, "log"),
		LogLevel: "debug",
		Store:    config.DefaultStore(),
	}
	cfg.Store.HostPageSize = 1024
	cfg.Store.IntegrityCheck = true
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o755))
	require.NoError(t, os.MkdirAll(cfg.LogDir, 0o755))
	return cfg
}

func openNew(t *testing.T, cfg *config.Config, name string) *Database {
	t.Helper()
	require.NoError(t, Create(name, cfg))
	db, err := Open(name, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func page(size int, seed byte) []byte {
	p := make([]byte, size)
	for i := range p {
		p[i] = seed + byte(i%7)
	}
	return p
}

func TestCreateOpenDrop(t *testing.T) {
	cfg := testConfig(t)

	_, err := Open("missing", cfg)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, Create("pages", cfg))
	assert.ErrorIs(t, Create("pages", cfg), ErrExists)
	assert.ErrorIs(t, Create("../x", cfg), ErrBadName)

	names, err := List(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"pages"}, names)

	db, err := Open("pages", cfg)
	require.NoError(t, err)
	n, err := db.PageCount()
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err = db.ReadPage(1)
	assert.Error(t, err)

	_, err = os.Stat(cfg.LogPath("pages"))
	assert.NoError(t, err)

	require.NoError(t, Drop("pages", cfg))
	assert.ErrorIs(t, Drop("pages", cfg), ErrNotFound)
	_, err = os.Stat(cfg.LogPath("pages"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestPagesSurviveReopen(t *testing.T) {
	cfg := testConfig(t)
	db := openNew(t, cfg, "reopen")

	for pg := uint32(1); pg <= 10; pg++ {
		require.NoError(t, db.WritePage(pg, page(4096, byte(pg))))
	}
	require.NoError(t, db.Truncate(8))
	require.NoError(t, db.Close())

	db, err := Open("reopen", cfg)
	require.NoError(t, err)
	defer db.Close()

	n, err := db.PageCount()
	require.NoError(t, err)
	assert.Equal(t, uint32(8), n)
	for pg := uint32(1); pg <= 8; pg++ {
		got, err := db.ReadPage(pg)
		require.NoError(t, err)
		assert.Equal(t, page(4096, byte(pg)), got, "page %d", pg)
	}
	require.NoError(t, db.Check())
}

func TestUpdateRollsBack(t *testing.T) {
	cfg := testConfig(t)
	db := openNew(t, cfg, "tx")
	require.NoError(t, db.WritePage(1, page(4096, 1)))

	boom := errors.New("boom")
	err := db.Update(func(s *storage.Store) error {
		if err := s.WritePage(1, page(4096, 2)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := db.ReadPage(1)
	require.NoError(t, err)
	assert.Equal(t, page(4096, 1), got)
}

func TestDigest(t *testing.T) {
	cfg := testConfig(t)
	a := openNew(t, cfg, "a")

	cfg.Store.Codec = "xz"
	b := openNew(t, cfg, "b")

	for _, db := range []*Database{a, b} {
		require.NoError(t, db.WritePage(1, page(4096, 10)))
		require.NoError(t, db.WritePage(3, page(4096, 30)))
	}

	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)
	assert.Len(t, da, 32)
	assert.Equal(t, da, db)

	// Compaction moves slots around but not content
	require.NoError(t, a.WritePage(1, page(4096, 11)))
	require.NoError(t, a.WritePage(1, page(4096, 10)))
	_, err = a.Compact(context.Background(), 0)
	require.NoError(t, err)
	da, err = a.Digest()
	require.NoError(t, err)
	assert.Equal(t, da, db)

	require.NoError(t, b.WritePage(2, bytes.Repeat([]byte{1}, 4096)))
	db, err = b.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}

func TestJournalModeIsPersistent(t *testing.T) {
	cfg := testConfig(t)
	db := openNew(t, cfg, "wal")
	assert.Equal(t, "rollback", db.JournalMode())

	require.NoError(t, db.WritePage(1, page(4096, 1)))
	require.NoError(t, db.SetJournalMode("wal"))
	assert.Equal(t, "wal", db.JournalMode())

	require.NoError(t, db.WritePage(2, page(4096, 2)))
	require.NoError(t, db.Checkpoint())
	require.NoError(t, db.WritePage(3, page(4096, 3)))
	require.NoError(t, db.Close())

	// The configured mode is still rollback
	db, err := Open("wal", cfg)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, "wal", db.JournalMode())

	for pg := uint32(1); pg <= 3; pg++ {
		got, err := db.ReadPage(pg)
		require.NoError(t, err)
		assert.Equal(t, page(4096, byte(pg)), got)
	}

	require.NoError(t, db.SetJournalMode("rollback"))
	assert.Equal(t, "rollback", db.JournalMode())
	assert.Error(t, db.SetJournalMode("memory"))
}

func TestNewDatabaseInWALMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.JournalMode = config.JournalWAL
	db := openNew(t, cfg, "fresh")
	assert.Equal(t, "wal", db.JournalMode())

	require.NoError(t, db.WritePage(1, page(4096, 5)))
	st, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), st.Pages)
	assert.Equal(t, "zlib", st.Codec)
}

func TestStructureThroughDatabase(t *testing.T) {
	cfg := testConfig(t)
	db := openNew(t, cfg, "layout")
	require.NoError(t, db.WritePage(1, page(4096, 1)))
	require.NoError(t, db.WritePage(2, page(4096, 2)))

	var pages []uint32
	require.NoError(t, db.Structure(func(si storage.SlotInfo) error {
		pages = append(pages, si.Page)
		return nil
	}))
	assert.Equal(t, []uint32{1, 2}, pages)
}
