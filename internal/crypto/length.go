package crypto

import (
	"math/bits"
)

// MaxLength returns the column size needed to store a value encrypted with
// the default cipher whose plaintext is at most n bytes, rounded up to the
// next power of two.
func (r *Registry) MaxLength(n int) int {
	if n < 0 {
		n = 0
	}
	c := r.Default()
	return nextPowerOfTwo(len(c.Name()) + len(Separator) + c.EncodedLen(n))
}

// MaxLength is the column size for an n byte plaintext under AES256CBC.
func MaxLength(n int) int {
	return DefaultRegistry().MaxLength(n)
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
