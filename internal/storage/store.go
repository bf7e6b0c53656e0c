package storage

import (
	"bytes"
	"errors"
	"fmt"

	"go.zipstore/internal/codec"
	"go.zipstore/internal/logger"
)

const (
	DefaultMaxFree = 100
	DefaultMaxFrag = 200
)

type Options struct {
	// Logical page size of a new store. An existing store keeps its own.
	PageSize int
	// nil selects the codec recorded in the file, or zlib for a new one
	Codec          codec.Codec
	MaxFree        int
	MaxFrag        int
	IntegrityCheck bool
}

// Store keeps fixed size logical pages compressed in variable sized slots
// of a host pager file. It is not safe for concurrent use.
type Store struct {
	pager        Pager
	log          *logger.Logger
	codec        codec.Codec
	hostPageSize int
	pageSize     int

	maxFree   int
	maxFrag   int
	integrity bool

	hdr         header
	inWrite     bool
	hasIdentity bool
	errState    error

	zbuf []byte
}

func Open(pager Pager, opts Options, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Discard()
	}

	s := &Store{
		pager:        pager,
		log:          log,
		hostPageSize: pager.PageSize(),
		maxFree:      opts.MaxFree,
		maxFrag:      opts.MaxFrag,
		integrity:    opts.IntegrityCheck,
	}
	if s.maxFree == 0 {
		s.maxFree = DefaultMaxFree
	}
	if s.maxFrag == 0 {
		s.maxFrag = DefaultMaxFrag
	}
	if s.hostPageSize < headerOffset+headerSize {
		return nil, fmt.Errorf("Open: %w (host page size %d)", ErrBadPageSize, s.hostPageSize)
	}

	if err := s.loadHeader(); err != nil {
		return nil, err
	}

	s.pageSize = int(s.hdr.pageSize)
	if s.pageSize == 0 {
		s.pageSize = opts.PageSize
		if s.pageSize == 0 {
			s.pageSize = 4096
		}
	}
	if !validPageSize(s.pageSize) {
		return nil, fmt.Errorf("Open: %w (%d)", ErrBadPageSize, s.pageSize)
	}
	if opts.PageSize != 0 && opts.PageSize != s.pageSize {
		log.Warnf("Open: using the stored page size %d, not %d", s.pageSize, opts.PageSize)
	}

	if err := s.selectCodec(opts.Codec); err != nil {
		return nil, err
	}
	s.zbuf = make([]byte, 0, s.codec.Bound(s.pageSize))

	log.Debugf("Open: codec %s, page size %d, %d pages, data [%d,%d)",
		s.codec.Name(), s.pageSize, s.hdr.size/int64(s.pageSize), s.hdr.dataStart, s.hdr.dataEnd)
	return s, nil
}

// readIdentity returns the codec name stored in the first 16 bytes, or ""
// for a file that has never been written
func (s *Store) readIdentity() (string, error) {
	b, err := s.loadData(0, identitySize)
	if err != nil {
		return "", err
	}
	if !bytes.HasPrefix(b, []byte(identityPrefix)) {
		if bytes.Count(b, []byte{0}) == identitySize {
			return "", nil
		}
		return "", s.corrupt("readIdentity", ErrCorruptHeader, "bad identity %q", b)
	}
	return string(bytes.TrimRight(b[len(identityPrefix):], "\x00")), nil
}

func (s *Store) selectCodec(want codec.Codec) error {
	name, err := s.readIdentity()
	if err != nil {
		return err
	}
	s.hasIdentity = name != ""

	switch {
	case name == "" && want != nil:
		s.codec = want
	case name == "":
		s.codec, err = codec.Lookup("zlib")
	case want != nil && want.Name() != name:
		return fmt.Errorf("Open: %w (file uses %q, asked for %q)", ErrCodecMismatch, name, want.Name())
	case want != nil:
		s.codec = want
	default:
		s.codec, err = codec.Lookup(name)
	}
	return err
}

func (s *Store) writeIdentity() error {
	if s.hasIdentity {
		return nil
	}
	b := make([]byte, identitySize)
	copy(b, identityPrefix+s.codec.Name())
	if err := s.storeData(0, b); err != nil {
		return err
	}
	s.hasIdentity = true
	return nil
}

func (s *Store) PageSize() int {
	return s.pageSize
}

func (s *Store) Codec() codec.Codec {
	return s.codec
}

func (s *Store) InWrite() bool {
	return s.inWrite
}

// Err returns the failure that put the store into the error state
func (s *Store) Err() error {
	return s.errState
}

func (s *Store) SetMaxFree(n int) {
	s.maxFree = n
}

func (s *Store) SetMaxFrag(n int) {
	s.maxFrag = n
}

func (s *Store) SetIntegrityCheck(on bool) {
	s.integrity = on
}

// Begin opens the write transaction and loads the header
func (s *Store) Begin() error {
	if s.inWrite {
		return fmt.Errorf("Begin: %w (transaction already open)", ErrMisuse)
	}
	if err := s.pager.Begin(); err != nil {
		return ioErr("Begin", err)
	}
	if err := s.refresh(); err != nil {
		_ = s.pager.Rollback()
		return err
	}
	s.inWrite = true
	return nil
}

// Commit writes the header back and commits the host pager
func (s *Store) Commit() error {
	if !s.inWrite {
		return fmt.Errorf("Commit: %w", ErrNoTransaction)
	}
	if s.errState != nil {
		return fmt.Errorf("Commit: %w: %w", ErrErrorState, s.errState)
	}

	if err := s.writeIdentity(); err != nil {
		return s.fail(err)
	}
	s.hdr.pageSize = uint32(s.pageSize)
	if s.hdr.version == 0 {
		s.hdr.version = VersionRollback
	}
	if err := s.storeHeader(); err != nil {
		return s.fail(err)
	}
	s.inWrite = false

	// The pager restores the old image itself when a commit fails
	if err := s.pager.Commit(); err != nil {
		if rErr := s.refresh(); rErr != nil {
			s.log.Errorf("Commit: reloading header: %v", rErr)
		}
		return ioErr("Commit", err)
	}
	return nil
}

// Rollback drops the transaction and clears the error state
func (s *Store) Rollback() error {
	if !s.inWrite {
		return fmt.Errorf("Rollback: %w", ErrNoTransaction)
	}
	s.inWrite = false
	s.errState = nil

	if err := s.pager.Rollback(); err != nil {
		return ioErr("Rollback", err)
	}
	return s.refresh()
}

func (s *Store) refresh() error {
	if err := s.loadHeader(); err != nil {
		return err
	}
	name, err := s.readIdentity()
	if err != nil {
		return err
	}
	s.hasIdentity = name != ""
	return nil
}

// fail puts the store into the error state
func (s *Store) fail(err error) error {
	if err == nil {
		return nil
	}
	if s.errState == nil {
		s.errState = err
		s.log.Errorf("entering error state: %v", err)
	}
	return err
}

func (s *Store) checkWrite(op string) error {
	if s.errState != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrErrorState, s.errState)
	}
	if !s.inWrite {
		return fmt.Errorf("%s: %w", op, ErrNoTransaction)
	}
	return nil
}

// checkRead refreshes the header when no transaction owns it
func (s *Store) checkRead(op string) error {
	if s.errState != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrErrorState, s.errState)
	}
	if !s.inWrite {
		return s.loadHeader()
	}
	return nil
}

// Version is 1 for a rollback journal and 2 for WAL
func (s *Store) Version() uint32 {
	return s.hdr.version
}

func (s *Store) SetVersion(v uint32) error {
	if err := s.checkWrite("SetVersion"); err != nil {
		return err
	}
	if v != VersionRollback && v != VersionWAL {
		return fmt.Errorf("SetVersion: %w (%d)", ErrVersion, v)
	}
	s.hdr.version = v
	return nil
}

// IsCorrupt reports whether err signals a damaged file
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}
