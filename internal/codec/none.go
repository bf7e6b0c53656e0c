package codec

// None stores pages as they are
type None struct{}

func (None) Name() string { return "none" }

func (None) Bound(n int) int { return n }

func (None) Compress(dst, src []byte) ([]byte, error) {
	return append(dst[:0], src...), nil
}

func (None) Decompress(dst, src []byte, size int) ([]byte, error) {
	return append(dst[:0], src...), nil
}
