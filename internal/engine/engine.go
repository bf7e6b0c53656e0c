package engine

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest hashes every logical page in page order with BLAKE3. Pages never
// written hash as zeros, so two databases holding the same pages have the
// same digest whatever their layout or codec.
func (db *Database) Digest() ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.check(); err != nil {
		return nil, err
	}

	n, err := db.store.PageCount()
	if err != nil {
		return nil, err
	}

	h := blake3.New()
	for pg := uint32(1); pg <= n; pg++ {
		data, err := db.store.ReadPage(pg)
		if err != nil {
			return nil, err
		}
		h.Write(data)
	}
	return h.Sum(nil), nil
}

func (db *Database) DigestHex() (string, error) {
	sum, err := db.Digest()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}
