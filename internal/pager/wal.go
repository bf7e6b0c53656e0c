package pager

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"go.zipstore/internal/logger"
)

// Write-Ahead Log stores committed pages before they are written to the
// database file allowing the application to recover from crashes

type walLog struct {
	file     *os.File
	filePath string
	pager    *Pager
	log      *logger.Logger
	size     int64

	// Committed frames: page id -> offset of the page data
	index  map[uint32]int64
	nPage  uint32
	frames int

	wg                sync.WaitGroup
	checkpointRunning int32
}

// WAL file structure
// Header: magic(16) | page size u32 | reserved u32
// Frame:  page id u32 | commit size u32 | page data | checksum u32
// The commit size is non zero only on the last frame of a transaction

var walSig = []byte{'z', 'i', 'p', 's', 't', 'o', 'r', 'e', ' ', 'w', 'a', 'l', 0, 0, 0, 0}

const (
	walHeaderSize      = 24
	walFrameHeaderSize = 8
)

func openWAL(path string, pager *Pager, log *logger.Logger) (*walLog, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	wal := &walLog{
		file:     f,
		filePath: path,
		pager:    pager,
		log:      log,
		size:     info.Size(),
		index:    make(map[uint32]int64),
	}

	if wal.size < walHeaderSize {
		if err := wal.reset(); err != nil {
			f.Close()
			return nil, err
		}
		return wal, nil
	}

	if err := wal.Replay(); err != nil {
		f.Close()
		return nil, err
	}
	return wal, nil
}

func (wal *walLog) frameSize() int64 {
	return int64(walFrameHeaderSize + wal.pager.pageSize + 4)
}

func frameChecksum(header, data []byte) uint32 {
	crc := crc32.ChecksumIEEE(header)
	return crc32.Update(crc, crc32.IEEETable, data)
}

// Replay rebuilds the frame index from the log. Frames after the last
// complete commit are dropped.
func (wal *walLog) Replay() error {
	h := make([]byte, walHeaderSize)
	if _, err := wal.file.ReadAt(h, 0); err != nil {
		return err
	}
	if string(h[:16]) != string(walSig) {
		return fmt.Errorf("Replay: %w (%s)", ErrInvalidFileSig, wal.filePath)
	}
	if int(binary.LittleEndian.Uint32(h[16:])) != wal.pager.pageSize {
		return fmt.Errorf("Replay: %w (wal page size differs)", ErrBadPageSize)
	}

	header := make([]byte, walFrameHeaderSize)
	data := make([]byte, wal.pager.pageSize)
	csum := make([]byte, 4)

	pending := make(map[uint32]int64)
	validEnd := int64(walHeaderSize)
	off := int64(walHeaderSize)

	r := io.NewSectionReader(wal.file, 0, wal.size)
	if _, err := r.Seek(off, io.SeekStart); err != nil {
		return err
	}

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

		id := binary.LittleEndian.Uint32(header[0:4])
		commit := binary.LittleEndian.Uint32(header[4:8])

		if binary.LittleEndian.Uint32(csum) != frameChecksum(header, data) {
			wal.log.Warnf("Replay: %v on page %d, ignoring the rest of the log", ErrChecksumMismatch, id)
			break
		}

		pending[id] = off + walFrameHeaderSize
		off += wal.frameSize()

		if commit != 0 {
			for pg, at := range pending {
				wal.index[pg] = at
			}
			clear(pending)
			wal.nPage = commit
			validEnd = off
		}
	}

	if validEnd < wal.size {
		wal.log.Warnf("Replay: truncating %d bytes of uncommitted frames", wal.size-validEnd)
		if err := wal.file.Truncate(validEnd); err != nil {
			return err
		}
	}
	wal.size = validEnd
	wal.frames = int((validEnd - walHeaderSize) / wal.frameSize())

	// Drop frames for pages beyond the committed size
	for pg := range wal.index {
		if pg >= wal.nPage {
			delete(wal.index, pg)
		}
	}
	return nil
}

func (wal *walLog) read(pg uint32, buf []byte) (bool, error) {
	off, ok := wal.index[pg]
	if !ok {
		return false, nil
	}
	if _, err := wal.file.ReadAt(buf, off); err != nil {
		return false, fmt.Errorf("wal read page %d: %w", pg, err)
	}
	return true, nil
}

// appendCommit writes one frame per dirty page, the last one carrying the
// new page count, then makes the log durable
func (wal *walLog) appendCommit(pages map[uint32][]byte, nPage uint32) error {
	ids := make([]uint32, 0, len(pages))
	for pg := range pages {
		if pg < nPage {
			ids = append(ids, pg)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// A pure truncation still needs a commit frame
	if len(ids) == 0 {
		ids = append(ids, 0)
		if _, ok := pages[0]; !ok {
			page0, err := wal.pager.readPage(0)
			if err != nil {
				return err
			}
			pages = map[uint32][]byte{0: page0}
		}
	}

	fs := wal.frameSize()
	buf := make([]byte, int64(len(ids))*fs)
	offsets := make(map[uint32]int64, len(ids))

	for i, pg := range ids {
		frame := buf[int64(i)*fs : int64(i+1)*fs]
		binary.LittleEndian.PutUint32(frame[0:4], pg)
		if i == len(ids)-1 {
			binary.LittleEndian.PutUint32(frame[4:8], nPage)
		}
		copy(frame[walFrameHeaderSize:], pages[pg])
		sum := frameChecksum(frame[:walFrameHeaderSize], frame[walFrameHeaderSize:walFrameHeaderSize+wal.pager.pageSize])
		binary.LittleEndian.PutUint32(frame[fs-4:], sum)
		offsets[pg] = wal.size + int64(i)*fs + walFrameHeaderSize
	}

	if _, err := wal.file.WriteAt(buf, wal.size); err != nil {
		return err
	}
	if err := wal.pager.syncFile(wal.file); err != nil {
		return err
	}

	for pg, off := range offsets {
		wal.index[pg] = off
	}
	for pg := range wal.index {
		if pg >= nPage {
			delete(wal.index, pg)
		}
	}
	wal.size += int64(len(buf))
	wal.frames += len(ids)
	wal.nPage = nPage
	return nil
}

// Called with the pager lock held; the checkpoint itself runs once the
// committing call has released it
func (wal *walLog) maybeRequestCheckpoint() {
	limit := wal.pager.autoCheckpoint
	if limit <= 0 || wal.frames < limit {
		return
	}
	if !atomic.CompareAndSwapInt32(&wal.checkpointRunning, 0, 1) {
		return
	}

	wal.wg.Add(1)
	go func() {
		defer wal.wg.Done()

		p := wal.pager
		p.mu.Lock()
		defer p.mu.Unlock()
		defer atomic.StoreInt32(&wal.checkpointRunning, 0)

		if p.closed || p.wal != wal {
			return
		}
		if err := wal.checkpoint(); err != nil {
			wal.log.Errorf("Checkpoint: %v", err)
		}
	}()
}

// checkpoint copies the newest frame of every page into the database file
// and empties the log. Caller holds the pager lock.
func (wal *walLog) checkpoint() error {
	if len(wal.index) == 0 && wal.nPage == 0 {
		return nil
	}

	pages := make(map[uint32][]byte, len(wal.index))
	for pg, off := range wal.index {
		data := make([]byte, wal.pager.pageSize)
		if _, err := wal.file.ReadAt(data, off); err != nil {
			return fmt.Errorf("checkpoint: page %d: %w", pg, err)
		}
		pages[pg] = data
	}

	if err := wal.pager.flushDirty(pages); err != nil {
		return err
	}
	if err := wal.pager.file.Truncate(int64(wal.nPage) * int64(wal.pager.pageSize)); err != nil {
		return err
	}
	if err := wal.pager.syncFile(wal.pager.file); err != nil {
		return err
	}

	wal.log.Debugf("checkpoint: copied %d pages from %d frames", len(pages), wal.frames)
	return wal.reset()
}

// reset empties the log and writes a fresh header
func (wal *walLog) reset() error {
	h := make([]byte, walHeaderSize)
	copy(h, walSig)
	binary.LittleEndian.PutUint32(h[16:], uint32(wal.pager.pageSize))

	if err := wal.file.Truncate(0); err != nil {
		return err
	}
	if _, err := wal.file.WriteAt(h, 0); err != nil {
		return err
	}

	wal.size = walHeaderSize
	wal.frames = 0
	wal.nPage = 0
	clear(wal.index)
	return nil
}

func (wal *walLog) close() error {
	if err := wal.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
