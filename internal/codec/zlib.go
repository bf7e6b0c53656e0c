package codec

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

type Zlib struct{}

func (Zlib) Name() string { return "zlib" }

// Same bound as zlib's compressBound()
func (Zlib) Bound(n int) int {
	return n + (n >> 12) + (n >> 14) + (n >> 25) + 13 + 6
}

func (Zlib) Compress(dst, src []byte) ([]byte, error) {
	buf := bytes.NewBuffer(dst[:0])

	w, err := zlib.NewWriterLevel(buf, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (Zlib) Decompress(dst, src []byte, size int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	defer r.Close()

	return readLimited(dst, r, size)
}

// Reads at most size+1 bytes so the caller can see an oversized page
func readLimited(dst []byte, r io.Reader, size int) ([]byte, error) {
	buf := bytes.NewBuffer(dst[:0])
	if _, err := io.Copy(buf, io.LimitReader(r, int64(size)+1)); err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	return buf.Bytes(), nil
}
