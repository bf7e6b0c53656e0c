package pager

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"go.zipstore/internal/logger"
)

// The pager hands out fixed size pages of a single file. Changes made inside
// a write transaction are kept in memory and only reach the file on Commit,
// protected by either a rollback journal or a write-ahead log.

type JournalMode int

const (
	Rollback JournalMode = iota
	WAL
)

func (m JournalMode) String() string {
	if m == WAL {
		return "wal"
	}
	return "rollback"
}

func ParseJournalMode(s string) (JournalMode, error) {
	switch s {
	case "rollback", "delete", "":
		return Rollback, nil
	case "wal":
		return WAL, nil
	}
	return Rollback, fmt.Errorf("unknown journal mode %q", s)
}

type Options struct {
	// Used only when the file is created
	PageSize       int
	Mode           JournalMode
	Sync           bool
	AutoCheckpoint int
}

// Page 0 layout owned by the pager. Bytes [0,16) and [100,) belong to the caller.
var sig = []byte{'z', 'i', 'p', 's', 't', 'o', 'r', 'e', ' ', 'p', 'a', 'g', 'e', 'r', 0, 0}

const (
	sigOffset      = 16
	pageSizeOffset = 32
	counterOffset  = 36
	MinPageSize    = 512
	MaxPageSize    = 65536
)

type Pager struct {
	file     *os.File
	path     string
	log      *logger.Logger
	pageSize int
	nPage    uint32
	mode     JournalMode
	sync     bool

	mu      sync.Mutex
	closed  bool
	inWrite bool
	dirty   map[uint32][]byte
	txPages uint32
	journal *journal
	wal     *walLog

	autoCheckpoint int
}

func Open(path string, opts Options, log *logger.Logger) (*Pager, error) {
	if log == nil {
		log = logger.Discard()
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("Error opening DB file: %w", err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		return nil, err
	}

	p := &Pager{
		file:           f,
		path:           path,
		log:            log,
		mode:           opts.Mode,
		sync:           opts.Sync,
		autoCheckpoint: opts.AutoCheckpoint,
	}

	if err := p.init(opts.PageSize); err != nil {
		f.Close()
		return nil, err
	}

	return p, nil
}

func (p *Pager) init(pageSize int) error {
	info, err := p.file.Stat()
	if err != nil {
		return fmt.Errorf("Error getting file stats: %w", err)
	}

	if info.Size() == 0 {
		if err := p.create(pageSize); err != nil {
			return err
		}
	} else if err := p.checkSignature(); err != nil {
		return err
	}

	if err := p.recoverJournal(); err != nil {
		return err
	}

	if info, err = p.file.Stat(); err != nil {
		return fmt.Errorf("Error getting file stats: %w", err)
	}
	p.nPage = uint32((info.Size() + int64(p.pageSize) - 1) / int64(p.pageSize))

	walPath := p.path + ".wal"
	_, statErr := os.Stat(walPath)
	if p.mode == WAL || statErr == nil {
		w, err := openWAL(walPath, p, p.log)
		if err != nil {
			return err
		}
		p.wal = w
		if w.nPage > 0 {
			p.nPage = w.nPage
		}

		// Fold a log left behind by a WAL session into the file
		if p.mode != WAL {
			if err := p.closeWAL(); err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *Pager) create(pageSize int) error {
	if pageSize < MinPageSize || pageSize > MaxPageSize || pageSize&(pageSize-1) != 0 {
		return fmt.Errorf("create: %w (%d)", ErrBadPageSize, pageSize)
	}

	page := make([]byte, pageSize)
	copy(page[sigOffset:], sig)
	binary.LittleEndian.PutUint32(page[pageSizeOffset:], uint32(pageSize))

	if _, err := p.file.WriteAt(page, 0); err != nil {
		return fmt.Errorf("Error writing header page: %w", err)
	}
	if err := p.syncFile(p.file); err != nil {
		return err
	}

	p.pageSize = pageSize
	p.log.Infof("create: new file %s page size %d", p.path, pageSize)
	return nil
}

func (p *Pager) checkSignature() error {
	h := make([]byte, counterOffset+4)
	if _, err := p.file.ReadAt(h, 0); err != nil {
		return fmt.Errorf("Error reading magic bytes: %w", err)
	}

	if !bytes.Equal(h[sigOffset:sigOffset+len(sig)], sig) {
		return fmt.Errorf("checkSignature: %w", ErrInvalidFileSig)
	}

	size := int(binary.LittleEndian.Uint32(h[pageSizeOffset:]))
	if size < MinPageSize || size > MaxPageSize || size&(size-1) != 0 {
		return fmt.Errorf("checkSignature: %w (%d)", ErrBadPageSize, size)
	}
	p.pageSize = size
	return nil
}

func (p *Pager) PageSize() int {
	return p.pageSize
}

func (p *Pager) Mode() JournalMode {
	return p.mode
}

func (p *Pager) Path() string {
	return p.path
}

// Number of pages in the image seen by the caller
func (p *Pager) PageCount() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pages()
}

func (p *Pager) pages() uint32 {
	if p.inWrite {
		return p.txPages
	}
	return p.nPage
}

func (p *Pager) InWrite() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inWrite
}

// ChangeCounter is bumped by every commit that changed something
func (p *Pager) ChangeCounter() (uint32, error) {
	page, err := p.Acquire(0)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(page[counterOffset:]), nil
}

// Acquire returns the current image of page pg. Pages past the end read as
// zeros. The returned slice must not be modified.
func (p *Pager) Acquire(pg uint32) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if d, ok := p.dirty[pg]; ok {
		return d, nil
	}
	return p.readPage(pg)
}

func (p *Pager) readPage(pg uint32) ([]byte, error) {
	buf := make([]byte, p.pageSize)
	if pg >= p.pages() {
		return buf, nil
	}

	if p.wal != nil {
		ok, err := p.wal.read(pg, buf)
		if err != nil {
			return nil, err
		}
		if ok {
			return buf, nil
		}
	}

	// A short file reads as zeros past its end
	_, err := p.file.ReadAt(buf, int64(pg)*int64(p.pageSize))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("readPage %d: %w", pg, err)
	}
	return buf, nil
}

func (p *Pager) Begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.inWrite {
		return ErrTransactionOpen
	}

	p.inWrite = true
	p.dirty = make(map[uint32][]byte)
	p.txPages = p.nPage
	if p.wal == nil {
		p.journal = newJournal(p)
	}
	return nil
}

func (p *Pager) Write(pg uint32, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.inWrite {
		return fmt.Errorf("Write: %w", ErrNoTransaction)
	}
	if len(data) != p.pageSize {
		return fmt.Errorf("Write: %w (page=%d size=%d)", ErrWriteSizeMisfit, pg, len(data))
	}
	return p.write(pg, data)
}

func (p *Pager) write(pg uint32, data []byte) error {
	if p.journal != nil {
		if err := p.journal.save(pg); err != nil {
			return err
		}
	}

	d, ok := p.dirty[pg]
	if !ok {
		d = make([]byte, p.pageSize)
		p.dirty[pg] = d
	}
	copy(d, data)

	if pg >= p.txPages {
		p.txPages = pg + 1
	}
	return nil
}

// Truncate the image to nPage pages. Page 0 always survives.
func (p *Pager) Truncate(nPage uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.inWrite {
		return fmt.Errorf("Truncate: %w", ErrNoTransaction)
	}
	if nPage == 0 {
		nPage = 1
	}

	if p.journal != nil {
		for pg := nPage; pg < p.txPages; pg++ {
			if err := p.journal.save(pg); err != nil {
				return err
			}
		}
	}

	for pg := range p.dirty {
		if pg >= nPage {
			delete(p.dirty, pg)
		}
	}
	p.txPages = nPage
	return nil
}

func (p *Pager) Commit() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.inWrite {
		return fmt.Errorf("Commit: %w", ErrNoTransaction)
	}
	defer p.endTransaction()

	if len(p.dirty) == 0 && p.txPages == p.nPage {
		return nil
	}

	if err := p.bumpCounter(); err != nil {
		return err
	}

	if p.wal != nil {
		if err := p.wal.appendCommit(p.dirty, p.txPages); err != nil {
			p.log.Errorf("Commit: wal append failed: %v", err)
			return err
		}
		p.nPage = p.txPages
		p.wal.maybeRequestCheckpoint()
		return nil
	}

	if err := p.commitRollback(); err != nil {
		p.log.Errorf("Commit: %v", err)
		if rErr := p.journal.playback(); rErr != nil {
			p.log.Errorf("Commit: journal playback failed: %v", rErr)
		}
		return err
	}
	return nil
}

func (p *Pager) commitRollback() error {
	if err := p.journal.finish(); err != nil {
		return err
	}

	if err := p.flushDirty(p.dirty); err != nil {
		return err
	}

	if p.txPages < p.nPage {
		if err := p.file.Truncate(int64(p.txPages) * int64(p.pageSize)); err != nil {
			return err
		}
	}

	if err := p.syncFile(p.file); err != nil {
		return err
	}

	p.nPage = p.txPages
	return p.journal.remove()
}

// Writes pages in ascending order straight to the database file
func (p *Pager) flushDirty(pages map[uint32][]byte) error {
	ids := make([]uint32, 0, len(pages))
	for pg := range pages {
		ids = append(ids, pg)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, pg := range ids {
		if _, err := p.file.WriteAt(pages[pg], int64(pg)*int64(p.pageSize)); err != nil {
			return fmt.Errorf("flushDirty: page %d: %w", pg, err)
		}
	}
	return nil
}

func (p *Pager) bumpCounter() error {
	page0, ok := p.dirty[0]
	if !ok {
		cur, err := p.readPage(0)
		if err != nil {
			return err
		}
		page0 = cur
	}

	buf := append([]byte(nil), page0...)
	n := binary.LittleEndian.Uint32(buf[counterOffset:])
	binary.LittleEndian.PutUint32(buf[counterOffset:], n+1)
	return p.write(0, buf)
}

func (p *Pager) Rollback() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.inWrite {
		return fmt.Errorf("Rollback: %w", ErrNoTransaction)
	}
	defer p.endTransaction()

	// Nothing reached the file yet so the journal is simply dropped
	if p.journal != nil {
		return p.journal.remove()
	}
	return nil
}

func (p *Pager) endTransaction() {
	p.inWrite = false
	p.dirty = nil
	p.txPages = 0
	p.journal = nil
}

// Checkpoint copies committed WAL frames into the database file
func (p *Pager) Checkpoint() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.wal == nil {
		return nil
	}
	return p.wal.checkpoint()
}

func (p *Pager) closeWAL() error {
	if err := p.wal.checkpoint(); err != nil {
		return err
	}
	if err := p.wal.close(); err != nil {
		return err
	}
	p.wal = nil
	return os.Remove(p.path + ".wal")
}

func (p *Pager) Close() error {
	if p.wal != nil {
		p.wal.wg.Wait()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	if p.inWrite {
		if p.journal != nil {
			_ = p.journal.remove()
		}
		p.endTransaction()
	}

	var err error
	if p.wal != nil {
		err = p.closeWAL()
	}

	p.closed = true
	_ = unlockFile(p.file)
	if cErr := p.file.Close(); err == nil {
		err = cErr
	}
	return err
}
