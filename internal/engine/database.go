package engine

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.zipstore/internal/config"
	"go.zipstore/internal/logger"
	"go.zipstore/internal/pager"
	"go.zipstore/internal/storage"
)

// Database is an open zipstore file. Every method is safe for concurrent
// use; calls are serialized.
type Database struct {
	name    string
	path    string
	cfg     config.StoreConfig
	opts    storage.Options
	log     *logger.Logger
	logFile *os.File

	mu    sync.Mutex
	pager *pager.Pager
	store *storage.Store
}

func (db *Database) Name() string {
	return db.name
}

func (db *Database) Path() string {
	return db.path
}

func (db *Database) PageSize() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.store == nil {
		return 0
	}
	return db.store.PageSize()
}

func (db *Database) check() error {
	if db.store == nil {
		return fmt.Errorf("%s: %w", db.name, pager.ErrClosed)
	}
	return nil
}

func (db *Database) ReadPage(pg uint32) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.check(); err != nil {
		return nil, err
	}
	return db.store.ReadPage(pg)
}

// WritePage stores one page in a transaction of its own
func (db *Database) WritePage(pg uint32, data []byte) error {
	return db.Update(func(s *storage.Store) error {
		return s.WritePage(pg, data)
	})
}

// Truncate drops every page after the first nPage
func (db *Database) Truncate(nPage uint32) error {
	return db.Update(func(s *storage.Store) error {
		return s.Truncate(int64(nPage) * int64(s.PageSize()))
	})
}

func (db *Database) PageCount() (uint32, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.check(); err != nil {
		return 0, err
	}
	return db.store.PageCount()
}

// Update runs fn inside a write transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
func (db *Database) Update(fn func(*storage.Store) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.check(); err != nil {
		return err
	}
	return db.update(fn)
}

func (db *Database) update(fn func(*storage.Store) error) error {
	if err := db.store.Begin(); err != nil {
		return err
	}

	if err := fn(db.store); err != nil {
		if rErr := db.store.Rollback(); rErr != nil {
			db.log.Errorf("Update: rollback: %v", rErr)
		}
		return err
	}
	return db.store.Commit()
}

// Compact runs the compactor; see storage.Store.Compact
func (db *Database) Compact(ctx context.Context, maxBytes int64) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.check(); err != nil {
		return 0, err
	}

	remaining, err := db.store.Compact(ctx, maxBytes)
	if err != nil {
		db.log.Warnf("Compact: %v", err)
		return remaining, err
	}
	db.log.Infof("Compact: %d bytes left to scan", remaining)
	return remaining, nil
}

func (db *Database) Stats() (storage.Stat, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.check(); err != nil {
		return storage.Stat{}, err
	}
	return db.store.Stats()
}

// Check runs the full integrity check
func (db *Database) Check() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.check(); err != nil {
		return err
	}
	return db.store.IntegrityCheck()
}

func (db *Database) Structure(fn func(storage.SlotInfo) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.check(); err != nil {
		return err
	}
	return db.store.Structure(fn)
}

func (db *Database) JournalMode() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.pager == nil {
		return ""
	}
	return db.pager.Mode().String()
}

// SetJournalMode records the new mode in the file and reopens it with that
// mode. Leaving WAL checkpoints the log first.
func (db *Database) SetJournalMode(name string) error {
	mode, err := pager.ParseJournalMode(name)
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.check(); err != nil {
		return err
	}
	if db.pager.Mode() == mode {
		return nil
	}

	if err := db.setVersion(versionOf(mode)); err != nil {
		return err
	}
	if err := db.closeStore(); err != nil {
		return err
	}
	if err := db.open(mode); err != nil {
		return err
	}
	db.log.Infof("SetJournalMode: %s", mode)
	return nil
}

func (db *Database) setVersion(v uint32) error {
	return db.update(func(s *storage.Store) error {
		return s.SetVersion(v)
	})
}

// Checkpoint copies the write-ahead log into the database file. It does
// nothing in rollback mode.
func (db *Database) Checkpoint() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.check(); err != nil {
		return err
	}
	return db.pager.Checkpoint()
}

func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	err := db.closeStore()
	if db.logFile != nil {
		db.log.Infof("Close: %s", db.name)
		if cErr := db.logFile.Close(); err == nil {
			err = cErr
		}
		db.logFile = nil
	}
	return err
}
