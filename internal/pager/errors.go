package pager

import "errors"

var (
	// pager
	ErrLocked          = errors.New("database file is locked by another process")
	ErrClosed          = errors.New("pager is closed")
	ErrInvalidFileSig  = errors.New("invalid file signature")
	ErrBadPageSize     = errors.New("invalid page size")
	ErrWriteSizeMisfit = errors.New("data written does not match page size")
	// transactions
	ErrNoTransaction   = errors.New("no write transaction open")
	ErrTransactionOpen = errors.New("write transaction already open")
	// journal / wal
	ErrChecksumMismatch = errors.New("checksum does not match")
)
