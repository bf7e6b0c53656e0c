package codec

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Codec compresses one logical page at a time.
// Compress and Decompress append into dst[:0] and return the result.
type Codec interface {
	Name() string
	Bound(n int) int
	Compress(dst, src []byte) ([]byte, error)
	Decompress(dst, src []byte, size int) ([]byte, error)
}

// Names are stored after "ZV-" in the first 16 bytes of a file
const MaxNameLen = 13

var (
	ErrUnknownCodec = errors.New("unknown codec")
	ErrNameTooLong  = errors.New("codec name too long")
	ErrDuplicate    = errors.New("codec already registered")
)

var (
	mu       sync.RWMutex
	registry = map[string]Codec{}
)

func Register(c Codec) error {
	name := c.Name()
	if name == "" || len(name) > MaxNameLen {
		return fmt.Errorf("Register: %w (%q)", ErrNameTooLong, name)
	}

	mu.Lock()
	defer mu.Unlock()

	if _, ok := registry[name]; ok {
		return fmt.Errorf("Register: %w (%q)", ErrDuplicate, name)
	}
	registry[name] = c
	return nil
}

func MustRegister(c Codec) {
	if err := Register(c); err != nil {
		panic(err)
	}
}

func Lookup(name string) (Codec, error) {
	mu.RLock()
	defer mu.RUnlock()

	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCodec, name)
	}
	return c, nil
}

func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	MustRegister(Zlib{})
	MustRegister(XZ{})
	MustRegister(LZMA{})
	MustRegister(None{})
}
