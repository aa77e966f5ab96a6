// Package crypto holds the symmetric ciphers used for field values.
//
// An encrypted value is always written as "<cipher name>$<payload>" so the
// cipher that produced it can be found again when it is read back.
package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Separator splits the cipher name from the payload.
const Separator = "$"

// NullValue is the plaintext written for an absent value by older records.
const NullValue = "None"

// Cipher encrypts and decrypts a single field value.
type Cipher interface {
	Name() string
	Encrypt(plaintext []byte, key [32]byte) (string, error)
	Decrypt(payload string, key [32]byte) ([]byte, error)
	// EncodedLen is the payload length for a plaintext of n bytes.
	EncodedLen(n int) int
}

// DeriveKey turns a passphrase into the AES-256 key used by every cipher.
func DeriveKey(passphrase string) [32]byte {
	return sha256.Sum256([]byte(passphrase))
}

// Registry maps cipher names to implementations. The first cipher given to
// NewRegistry is used for encryption, all of them are used for decryption.
type Registry struct {
	mu      sync.RWMutex
	def     Cipher
	ciphers map[string]Cipher
}

// NewRegistry builds a registry with def as the encrypting cipher.
func NewRegistry(def Cipher, others ...Cipher) *Registry {
	r := &Registry{def: def, ciphers: make(map[string]Cipher, len(others)+1)}
	r.ciphers[def.Name()] = def
	for _, c := range others {
		r.ciphers[c.Name()] = c
	}
	return r
}

// DefaultRegistry encrypts with AES256CBC and also understands AES256GCM.
func DefaultRegistry() *Registry {
	return NewRegistry(NewAES256CBC(nil), NewAES256GCM(nil))
}

// Register adds or replaces a cipher.
func (r *Registry) Register(c Cipher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ciphers[c.Name()] = c
}

// Use switches the encrypting cipher to a registered one.
func (r *Registry) Use(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.ciphers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCipher, name)
	}
	r.def = c
	return nil
}

// Default returns the encrypting cipher.
func (r *Registry) Default() Cipher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

// Lookup returns the cipher registered under name.
func (r *Registry) Lookup(name string) (Cipher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.ciphers[name]
	return c, ok
}

// Encrypt encrypts plaintext with the default cipher and prefixes its name.
func (r *Registry) Encrypt(plaintext, passphrase string) (string, error) {
	if passphrase == "" {
		return "", ErrEmptyPassphrase
	}
	c := r.Default()
	payload, err := c.Encrypt([]byte(plaintext), DeriveKey(passphrase))
	if err != nil {
		return "", err
	}
	return c.Name() + Separator + payload, nil
}

// Decrypt reverses Encrypt. The boolean is false when the stored plaintext
// is the null marker.
func (r *Registry) Decrypt(value, passphrase string) (string, bool, error) {
	if passphrase == "" {
		return "", false, ErrEmptyPassphrase
	}
	name, payload, ok := strings.Cut(value, Separator)
	if !ok {
		return "", false, fmt.Errorf("%w: missing cipher name", ErrInvalidFormat)
	}
	c, found := r.Lookup(name)
	if !found {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownCipher, name)
	}
	plaintext, err := c.Decrypt(payload, DeriveKey(passphrase))
	if err != nil {
		return "", false, err
	}
	if string(plaintext) == NullValue {
		return "", false, nil
	}
	return string(plaintext), true, nil
}

// IsEncrypted reports whether value starts with the name of a registered
// cipher followed by the separator.
func (r *Registry) IsEncrypted(value string) bool {
	name, _, ok := strings.Cut(value, Separator)
	if !ok {
		return false
	}
	_, found := r.Lookup(name)
	return found
}

// EncryptStream encrypts r into w with the chunked GCM stream format.
func (r *Registry) EncryptStream(src io.Reader, dst io.Writer, passphrase string) error {
	if passphrase == "" {
		return ErrEmptyPassphrase
	}
	return encryptStream(src, dst, DeriveKey(passphrase))
}

// DecryptStream reverses EncryptStream.
func (r *Registry) DecryptStream(src io.Reader, dst io.Writer, passphrase string) error {
	if passphrase == "" {
		return ErrEmptyPassphrase
	}
	return decryptStream(src, dst, DeriveKey(passphrase))
}
