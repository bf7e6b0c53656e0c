package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Swappable for tests
var (
	xzNewWriter   = xz.NewWriter
	xzNewReader   = xz.NewReader
	lzmaNewWriter = lzma.NewWriter
	lzmaNewReader = lzma.NewReader
)

// XZ wraps each page in a complete .xz stream
type XZ struct{}

func (XZ) Name() string { return "xz" }

// Stream header, block header, index and footer
func (XZ) Bound(n int) int {
	return n + n/16 + 128
}

func (XZ) Compress(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst[:0])

	w, err := xzNewWriter(buf)
	if err != nil {
		return nil, fmt.Errorf("xz compress: %w", err)
	}
	return finish(buf, w, src, "xz")
}

func (XZ) Decompress(dst, src []byte, size int) ([]byte, error) {
	r, err := xzNewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("xz decompress: %w", err)
	}
	return readLimited(dst, r, size)
}

// LZMA uses the classic .lzma format, which has a smaller header than xz
type LZMA struct{}

func (LZMA) Name() string { return "lzma" }

func (LZMA) Bound(n int) int {
	return n + n/16 + 64
}

func (LZMA) Compress(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst[:0])

	w, err := lzmaNewWriter(buf)
	if err != nil {
		return nil, fmt.Errorf("lzma compress: %w", err)
	}
	return finish(buf, w, src, "lzma")
}

func (LZMA) Decompress(dst, src []byte, size int) ([]byte, error) {
	r, err := lzmaNewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("lzma decompress: %w", err)
	}
	return readLimited(dst, r, size)
}

func finish(buf *bytes.Buffer, w io.WriteCloser, src []byte, name string) ([]byte, error) {
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("%s compress: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s compress: %w", name, err)
	}
	return buf.Bytes(), nil
}
