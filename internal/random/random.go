// Package random generates identifiers, passwords and keys from crypto/rand.
package random

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	Letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	Digits  = "0123456789"
	Symbols = "!@#$%^&*_-+."

	// DefaultChoices is the alphabet used when no symbols are wanted.
	DefaultChoices = Letters + Digits

	IDLength       = 64
	PasswordLength = 12
	KeyLength      = 8
)

var ErrInvalidRange = errors.New("invalid range")

// Int returns a uniformly distributed integer in [min, max].
func Int(min, max int64) (int64, error) {
	if max < min {
		return 0, fmt.Errorf("%w: %d > %d", ErrInvalidRange, min, max)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(max-min+1))
	if err != nil {
		return 0, fmt.Errorf("failed to read random number: %w", err)
	}
	return min + n.Int64(), nil
}

// Base returns a string of length characters drawn from choices.
func Base(length int, choices string) (string, error) {
	if length < 0 {
		return "", fmt.Errorf("%w: negative length %d", ErrInvalidRange, length)
	}
	if choices == "" {
		choices = DefaultChoices
	}
	alphabet := []rune(choices)
	out := make([]rune, length)
	for i := range out {
		idx, err := Int(0, int64(len(alphabet)-1))
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx]
	}
	return string(out), nil
}

// ID returns a 64 character identifier including symbols. Personal
// encryption keys are generated with it.
func ID() (string, error) {
	return Base(IDLength, DefaultChoices+Symbols)
}

// Password returns a 12 character password including symbols.
func Password() (string, error) {
	return Base(PasswordLength, DefaultChoices+Symbols)
}

// Key returns an 8 character alphanumeric key, used for salts and codes.
func Key() (string, error) {
	return Base(KeyLength, DefaultChoices)
}

// Bytes returns n random bytes.
func Bytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: size %d", ErrInvalidRange, n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("secure random generation failed: %w", err)
	}
	return b, nil
}
