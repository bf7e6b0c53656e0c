package codec

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func samplePages() map[string][]byte {
	rnd := rand.New(rand.NewSource(1))
	noise := make([]byte, 4096)
	rnd.Read(noise)

	text := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 100)[:4096]

	return map[string][]byte{
		"zeros": make([]byte, 4096),
		"text":  text,
		"noise": noise,
	}
}

func TestRoundTrip(t *testing.T) {
	for _, name := range Names() {
		c, err := Lookup(name)
		require.NoError(t, err)

		for label, page := range samplePages() {
			t.Run(name+"/"+label, func(t *testing.T) {
				out, err := c.Compress(nil, page)
				require.NoError(t, err)
				assert.LessOrEqual(t, len(out), c.Bound(len(page)))

				back, err := c.Decompress(nil, out, len(page))
				require.NoError(t, err)
				assert.Equal(t, page, back)
			})
		}
	}
}

func TestCompressibleShrinks(t *testing.T) {
	text := samplePages()["text"]
	for _, name := range []string{"zlib", "xz", "lzma"} {
		c, err := Lookup(name)
		require.NoError(t, err)

		out, err := c.Compress(nil, text)
		require.NoError(t, err)
		assert.Less(t, len(out), len(text)/4, name)
	}
}

func TestDecompressGarbage(t *testing.T) {
	for _, name := range []string{"zlib", "xz"} {
		c, err := Lookup(name)
		require.NoError(t, err)

		_, err = c.Decompress(nil, []byte("definitely not compressed"), 4096)
		assert.Error(t, err, name)
	}
}

func TestRegister(t *testing.T) {
	assert.ErrorIs(t, Register(None{}), ErrDuplicate)
	assert.ErrorIs(t, Register(named("fourteen-chars")), ErrNameTooLong)

	_, err := Lookup("snappy")
	assert.ErrorIs(t, err, ErrUnknownCodec)

	assert.Equal(t, []string{"lzma", "none", "xz", "zlib"}, Names())
}

func TestXZWriterError(t *testing.T) {
	orig := xzNewWriter
	xzNewWriter = func(w io.Writer) (*xz.Writer, error) {
		return nil, errors.New("boom")
	}
	defer func() { xzNewWriter = orig }()

	_, err := XZ{}.Compress(nil, []byte("page"))
	assert.ErrorContains(t, err, "boom")
}

type named string

func (n named) Name() string { return string(n) }

func (n named) Bound(size int) int { return size }

func (n named) Compress(dst, src []byte) ([]byte, error) { return src, nil }

func (n named) Decompress(dst, src []byte, _ int) ([]byte, error) { return src, nil }
