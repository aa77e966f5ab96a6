package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// AES256GCMName is the prefix written in front of AES-256-GCM values.
const AES256GCMName = "AES256GCM"

// Standard nonce and tag sizes of cipher.NewGCM.
const (
	gcmNonceSize = 12
	gcmTagSize   = 16
)

// AES256GCM is authenticated AES-256 with a random nonce stored in front of
// the sealed value.
type AES256GCM struct {
	rand io.Reader
}

// NewAES256GCM returns the cipher. A nil reader means crypto/rand.
func NewAES256GCM(random io.Reader) *AES256GCM {
	if random == nil {
		random = rand.Reader
	}
	return &AES256GCM{rand: random}
}

func (c *AES256GCM) Name() string { return AES256GCMName }

func (c *AES256GCM) EncodedLen(n int) int {
	return base64.URLEncoding.EncodedLen(gcmNonceSize + n + gcmTagSize)
}

func (c *AES256GCM) Encrypt(plaintext []byte, key [32]byte) (string, error) {
	sealed, err := sealGCM(c.rand, plaintext, key)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func (c *AES256GCM) Decrypt(payload string, key [32]byte) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return openGCM(raw, key)
}

func newGCM(key [32]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

func sealGCM(random io.Reader, plaintext []byte, key [32]byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(random, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func openGCM(sealed []byte, key [32]byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrInvalidFormat)
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
