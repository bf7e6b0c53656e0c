package storage

import (
	"errors"
	"fmt"
)

var (
	// taxonomy
	ErrCorrupt = errors.New("database is corrupt")
	ErrNoMem   = errors.New("out of space")
	ErrIO      = errors.New("i/o error")
	// corruption
	ErrCorruptTree     = fmt.Errorf("%w: free-slot tree", ErrCorrupt)
	ErrCorruptHeader   = fmt.Errorf("%w: header", ErrCorrupt)
	ErrCorruptSlot     = fmt.Errorf("%w: slot", ErrCorrupt)
	ErrBadPageSize     = fmt.Errorf("%w: bad page size", ErrCorrupt)
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", ErrCorrupt)
	// usage
	ErrErrorState    = errors.New("store is in the error state")
	ErrMisuse        = errors.New("misuse")
	ErrNoTransaction = errors.New("no write transaction")
	ErrCodecMismatch = errors.New("codec does not match the database")
	ErrVersion       = errors.New("unsupported file version")
)

func (s *Store) corrupt(op string, kind error, format string, args ...any) error {
	err := fmt.Errorf("%s: %w (%s)", op, kind, fmt.Sprintf(format, args...))
	s.log.Errorf("%v", err)
	return err
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}
