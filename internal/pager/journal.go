package pager

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dgryski/go-farm"
)

// Rollback journal. Before a page that exists in the file is first changed
// inside a transaction its original image is appended here. If the process
// dies half way through a commit the next Open copies these images back.
//
// Header: magic(16) | original page count u32 | page size u32
// Record: page id u32 | page data | checksum u32

var journalSig = []byte{'z', 'i', 'p', 's', 't', 'o', 'r', 'e', ' ', 'j', 'r', 'n', 'l', 0, 0, 0}

const journalHeaderSize = 24

type journal struct {
	pager    *Pager
	path     string
	file     *os.File
	origSize uint32
	saved    map[uint32]bool
}

func newJournal(p *Pager) *journal {
	return &journal{
		pager:    p,
		path:     p.path + "-journal",
		origSize: p.nPage,
		saved:    make(map[uint32]bool),
	}
}

func recordChecksum(pg uint32, data []byte) uint32 {
	return uint32(farm.Hash64WithSeed(data, uint64(pg)))
}

func (j *journal) open() error {
	f, err := os.OpenFile(j.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}

	h := make([]byte, journalHeaderSize)
	copy(h, journalSig)
	binary.LittleEndian.PutUint32(h[16:], j.origSize)
	binary.LittleEndian.PutUint32(h[20:], uint32(j.pager.pageSize))

	if _, err := f.Write(h); err != nil {
		f.Close()
		return fmt.Errorf("journal: %w", err)
	}
	j.file = f
	return nil
}

// save records the committed image of pg once per transaction
func (j *journal) save(pg uint32) error {
	if pg >= j.origSize || j.saved[pg] {
		return nil
	}

	if j.file == nil {
		if err := j.open(); err != nil {
			return err
		}
	}

	data, err := j.pager.readPage(pg)
	if err != nil {
		return err
	}

	size := j.pager.pageSize
	rec := make([]byte, 4+size+4)
	binary.LittleEndian.PutUint32(rec[0:4], pg)
	copy(rec[4:], data)
	binary.LittleEndian.PutUint32(rec[4+size:], recordChecksum(pg, data))

	if _, err := j.file.Write(rec); err != nil {
		return fmt.Errorf("journal: save page %d: %w", pg, err)
	}

	j.saved[pg] = true
	return nil
}

// finish makes the journal durable before the file is touched
func (j *journal) finish() error {
	if j.file == nil {
		return nil
	}
	return j.pager.syncFile(j.file)
}

// playback restores every saved page and the original size
func (j *journal) playback() error {
	if j.file == nil {
		return nil
	}
	if _, err := j.file.Seek(journalHeaderSize, io.SeekStart); err != nil {
		return err
	}
	if err := replayJournal(j.pager, j.file, j.origSize); err != nil {
		return err
	}
	return j.remove()
}

func (j *journal) remove() error {
	if j.file == nil {
		return nil
	}
	j.file.Close()
	j.file = nil
	if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// recoverJournal rolls back a journal left behind by a crashed commit
func (p *Pager) recoverJournal() error {
	path := p.path + "-journal"

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	h := make([]byte, journalHeaderSize)
	if _, err := io.ReadFull(f, h); err != nil {
		// Never got as far as the header, so the file was never touched
		p.log.Warnf("recoverJournal: discarding incomplete journal %s", path)
		return os.Remove(path)
	}

	if string(h[:16]) != string(journalSig) {
		return fmt.Errorf("recoverJournal: %w (%s)", ErrInvalidFileSig, path)
	}
	if int(binary.LittleEndian.Uint32(h[20:])) != p.pageSize {
		return fmt.Errorf("recoverJournal: %w (journal page size differs)", ErrBadPageSize)
	}

	origSize := binary.LittleEndian.Uint32(h[16:])
	p.log.Warnf("recoverJournal: rolling back hot journal %s", path)

	if err := replayJournal(p, f, origSize); err != nil {
		return err
	}
	return os.Remove(path)
}

func replayJournal(p *Pager, r io.Reader, origSize uint32) error {
	header := make([]byte, 4)
	data := make([]byte, p.pageSize)
	csum := make([]byte, 4)

	for {
		if _, err := io.ReadFull(r, header); err != nil {
			break
		}
		if _, err := io.ReadFull(r, data); err != nil {
			break
		}
		if _, err := io.ReadFull(r, csum); err != nil {
			break
		}

		pg := binary.LittleEndian.Uint32(header)
		if binary.LittleEndian.Uint32(csum) != recordChecksum(pg, data) {
			// A torn record was never followed by writes to the file
			p.log.Warnf("replayJournal: %v on page %d, stopping", ErrChecksumMismatch, pg)
			break
		}

		if _, err := p.file.WriteAt(data, int64(pg)*int64(p.pageSize)); err != nil {
			return fmt.Errorf("replayJournal: page %d: %w", pg, err)
		}
	}

	if err := p.file.Truncate(int64(origSize) * int64(p.pageSize)); err != nil {
		return err
	}
	p.nPage = origSize
	return p.syncFile(p.file)
}
