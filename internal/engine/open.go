package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.zipstore/internal/codec"
	"go.zipstore/internal/config"
	"go.zipstore/internal/logger"
	"go.zipstore/internal/pager"
	"go.zipstore/internal/storage"
)

var (
	ErrNotFound = errors.New("database does not exist")
	ErrExists   = errors.New("database already exists")
	ErrBadName  = errors.New("invalid database name")
)

// Open opens the named database under cfg.DataDir with its own log file in
// cfg.LogDir. The database must have been created first.
func Open(name string, cfg *config.Config) (*Database, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}

	dbPath := cfg.DatabasePath(name)
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Open: %w: %s", ErrNotFound, name)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	logFile, lErr := os.OpenFile(cfg.LogPath(name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o666)
	if lErr != nil {
		return nil, fmt.Errorf("failed to open log file: %w", lErr)
	}

	log := logger.New(logFile, level)

	db, err := OpenPath(dbPath, cfg.Store, log)
	if err != nil {
		log.Errorf("Open %s: %v", name, err)
		logFile.Close()
		return nil, err
	}

	db.name = name
	db.logFile = logFile
	return db, nil
}

// OpenPath opens or creates the database file at path. A nil log discards
// everything.
func OpenPath(path string, sc config.StoreConfig, log *logger.Logger) (*Database, error) {
	if log == nil {
		log = logger.Discard()
	}

	// An existing file names its own codec
	var c codec.Codec
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		if c, err = codec.Lookup(sc.Codec); err != nil {
			return nil, err
		}
	}

	mode, err := pager.ParseJournalMode(sc.JournalMode)
	if err != nil {
		return nil, err
	}

	db := &Database{
		name: filepath.Base(path),
		path: path,
		cfg:  sc,
		log:  log,
	}
	db.opts = storage.Options{
		PageSize:       sc.PageSize,
		Codec:          c,
		MaxFree:        sc.MaxFree,
		MaxFrag:        sc.MaxFrag,
		IntegrityCheck: sc.IntegrityCheck,
	}

	if err := db.open(mode); err != nil {
		return nil, err
	}

	// The journal mode recorded in the file wins over the configured one
	stored := modeOf(db.store.Version())
	switch {
	case db.store.Version() == 0 && mode == pager.WAL:
		if err := db.setVersion(storage.VersionWAL); err != nil {
			db.closeStore()
			return nil, err
		}
	case db.store.Version() != 0 && stored != mode:
		log.Infof("OpenPath: %s uses journal mode %s", path, stored)
		db.closeStore()
		if err := db.open(stored); err != nil {
			return nil, err
		}
	}

	log.Infof("OpenPath: opened %s (codec %s, page size %d, %s journal)",
		path, db.store.Codec().Name(), db.store.PageSize(), db.pager.Mode())
	return db, nil
}

func (db *Database) open(mode pager.JournalMode) error {
	p, err := pager.Open(db.path, pager.Options{
		PageSize:       db.cfg.HostPageSize,
		Mode:           mode,
		Sync:           db.cfg.Sync,
		AutoCheckpoint: db.cfg.WALAutoCheckpoint,
	}, db.log)
	if err != nil {
		return err
	}

	s, err := storage.Open(p, db.opts, db.log)
	if err != nil {
		p.Close()
		return err
	}

	db.pager = p
	db.store = s
	return nil
}

func (db *Database) closeStore() error {
	if db.pager == nil {
		return nil
	}
	err := db.pager.Close()
	db.pager, db.store = nil, nil
	return err
}

func modeOf(version uint32) pager.JournalMode {
	if version == storage.VersionWAL {
		return pager.WAL
	}
	return pager.Rollback
}

func versionOf(mode pager.JournalMode) uint32 {
	if mode == pager.WAL {
		return storage.VersionWAL
	}
	return storage.VersionRollback
}

// Create makes the directory and an empty database file for name
func Create(name string, cfg *config.Config) error {
	if err := checkName(name); err != nil {
		return err
	}

	dbPath := cfg.DatabasePath(name)
	if _, err := os.Stat(dbPath); err == nil {
		return fmt.Errorf("Create: %w: %s", ErrExists, name)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return err
	}

	db, err := OpenPath(dbPath, cfg.Store, nil)
	if err != nil {
		return err
	}

	// Commit once so the header and codec identity are on disk
	if err := db.Update(func(*storage.Store) error { return nil }); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}

// Drop removes the database directory and its log file
func Drop(name string, cfg *config.Config) error {
	if err := checkName(name); err != nil {
		return err
	}

	dbDir := filepath.Dir(cfg.DatabasePath(name))
	if _, err := os.Stat(dbDir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("Drop: %w: %s", ErrNotFound, name)
	}

	if err := os.RemoveAll(dbDir); err != nil {
		return err
	}

	_ = os.Remove(cfg.LogPath(name))
	return nil
}

// List returns the names of all databases in cfg.DataDir
func List(cfg *config.Config) ([]string, error) {
	entries, err := os.ReadDir(cfg.DataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(cfg.DatabasePath(e.Name())); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}
