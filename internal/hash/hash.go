// Package hash implements the iterated HMAC used for lookup columns and the
// salted hash used for secrets stored at rest.
//
// An HMAC is written as "<hasher>$<base64 digest>", a hash as
// "<hasher>$<salt>$<base64 digest>".
package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	stdhash "hash"
	"strings"

	"github.com/hengadev/remotecare/internal/random"
)

// DefaultIterations is the number of rounds including the initial value, so
// the digest is applied one time less.
const DefaultIterations = 100

var (
	ErrUnknownHasher = errors.New("unknown hash algorithm")
	ErrInvalidFormat = errors.New("invalid hash format")
	ErrInvalidSalt   = errors.New("invalid salt")
)

// Hasher is a named digest constructor.
type Hasher struct {
	Name string
	New  func() stdhash.Hash
}

var (
	SHA256 = Hasher{Name: "SHA256", New: sha256.New}
	SHA512 = Hasher{Name: "SHA512", New: sha512.New}
)

var hashers = map[string]Hasher{
	SHA256.Name: SHA256,
	SHA512.Name: SHA512,
}

// Lookup returns the hasher registered under name.
func Lookup(name string) (Hasher, bool) {
	h, ok := hashers[name]
	return h, ok
}

// CreateHMAC hashes value with secret using SHA256 and the default rounds.
func CreateHMAC(secret, value string) string {
	return CreateHMACWith(SHA256, DefaultIterations, secret, value)
}

// CreateHMACWith repeatedly replaces value with the hex HMAC of itself.
func CreateHMACWith(h Hasher, iterations int, secret, value string) string {
	out := value
	for i := 1; i < iterations; i++ {
		mac := hmac.New(h.New, []byte(secret))
		mac.Write([]byte(out))
		out = hex.EncodeToString(mac.Sum(nil))
	}
	return h.Name + "$" + base64.URLEncoding.EncodeToString([]byte(out))
}

// CheckHMAC reports whether encoded is the HMAC of value under secret.
func CheckHMAC(secret, value, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 2 {
		return false, fmt.Errorf("%w: expected 2 parts, got %d", ErrInvalidFormat, len(parts))
	}
	h, ok := Lookup(parts[0])
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownHasher, parts[0])
	}
	return equal(encoded, CreateHMACWith(h, DefaultIterations, secret, value)), nil
}

// CreateHash hashes value with salt, generating a random salt when empty.
func CreateHash(value, salt string) (string, error) {
	if salt == "" {
		var err error
		if salt, err = random.Key(); err != nil {
			return "", err
		}
	}
	if strings.Contains(salt, "$") {
		return "", fmt.Errorf("%w: salt must not contain '$'", ErrInvalidSalt)
	}
	return CreateHashWith(SHA256, DefaultIterations, value, salt), nil
}

// CreateHashWith repeatedly replaces value with the hex digest of value+salt.
func CreateHashWith(h Hasher, iterations int, value, salt string) string {
	out := value
	for i := 1; i < iterations; i++ {
		d := h.New()
		d.Write([]byte(out + salt))
		out = hex.EncodeToString(d.Sum(nil))
	}
	return h.Name + "$" + salt + "$" + base64.URLEncoding.EncodeToString([]byte(out))
}

// CheckHash reports whether encoded is the salted hash of value.
func CheckHash(value, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 {
		return false, fmt.Errorf("%w: expected 3 parts, got %d", ErrInvalidFormat, len(parts))
	}
	h, ok := Lookup(parts[0])
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownHasher, parts[0])
	}
	return equal(encoded, CreateHashWith(h, DefaultIterations, value, parts[1])), nil
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
