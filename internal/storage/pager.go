package storage

// Pager is the host page store underneath the record store. Host pages are
// numbered from 0 and page 0 holds the header.
type Pager interface {
	PageSize() int
	PageCount() uint32
	Acquire(pg uint32) ([]byte, error)
	Write(pg uint32, data []byte) error
	Truncate(nPage uint32) error
	Begin() error
	Commit() error
	Rollback() error
	InWrite() bool
}
