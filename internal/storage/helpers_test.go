package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go.zipstore/internal/codec"
	"go.zipstore/internal/pager"
)

const testHostPageSize = 1024

// sizedCodec "compresses" a page to the length named by its first two
// bytes. The third byte fills the rest of the page.
type sizedCodec struct{}

func (sizedCodec) Name() string    { return "sized" }
func (sizedCodec) Bound(n int) int { return n }

func (sizedCodec) Compress(dst, src []byte) ([]byte, error) {
	n := int(binary.BigEndian.Uint16(src))
	if n < 3 {
		return nil, fmt.Errorf("sized: target %d", n)
	}
	dst = append(dst[:0], src[:3]...)
	return append(dst, make([]byte, n-3)...), nil
}

func (sizedCodec) Decompress(dst, src []byte, size int) ([]byte, error) {
	if len(src) < 3 || int(binary.BigEndian.Uint16(src)) != len(src) {
		return nil, errors.New("sized: bad image")
	}
	dst = append(dst[:0], src[:2]...)
	for len(dst) < size {
		dst = append(dst, src[2])
	}
	return dst, nil
}

func init() {
	codec.MustRegister(sizedCodec{})
}

// sizedPage is a page that sizedCodec stores in exactly target bytes
func sizedPage(pageSize, target int, fill byte) []byte {
	p := bytes.Repeat([]byte{fill}, pageSize)
	binary.BigEndian.PutUint16(p, uint16(target))
	return p
}

func openPager(t *testing.T, path string) *pager.Pager {
	t.Helper()
	p, err := pager.Open(path, pager.Options{PageSize: testHostPageSize}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func openTestStore(t *testing.T, opts Options) (*Store, *pager.Pager) {
	t.Helper()
	p := openPager(t, filepath.Join(t.TempDir(), "test.zdb"))
	if opts.Codec == nil {
		opts.Codec = sizedCodec{}
	}
	s, err := Open(p, opts, nil)
	require.NoError(t, err)
	return s, p
}

// update runs fn in a write transaction and commits it
func update(t *testing.T, s *Store, fn func() error) {
	t.Helper()
	require.NoError(t, s.Begin())
	if err := fn(); err != nil {
		_ = s.Rollback()
		require.NoError(t, err)
	}
	require.NoError(t, s.Commit())
}

var errInjected = errors.New("injected fault")

// faultPager fails every host page write while failWrites is set
type faultPager struct {
	*pager.Pager
	failWrites bool
}

func (f *faultPager) Write(pg uint32, data []byte) error {
	if f.failWrites {
		return errInjected
	}
	return f.Pager.Write(pg, data)
}

// freeSlots lists the free list in key order
func freeSlots(t *testing.T, s *Store) []slotRef {
	t.Helper()
	var out []slotRef
	require.NoError(t, s.walkFreeList(func(off int64, size int, used bool) error {
		out = append(out, slotRef{off: off, size: size})
		return nil
	}))
	return out
}
