package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// AES256CBCName is the prefix written in front of AES-256-CBC values.
const AES256CBCName = "AES256CBC"

// AES256CBC is AES-256 in CBC mode with PKCS#7 padding and a random IV that is
// stored in front of the ciphertext.
type AES256CBC struct {
	rand io.Reader
}

// NewAES256CBC returns the cipher. A nil reader means crypto/rand.
func NewAES256CBC(random io.Reader) *AES256CBC {
	if random == nil {
		random = rand.Reader
	}
	return &AES256CBC{rand: random}
}

func (c *AES256CBC) Name() string { return AES256CBCName }

func (c *AES256CBC) EncodedLen(n int) int {
	padded := (n/aes.BlockSize + 1) * aes.BlockSize
	return base64.URLEncoding.EncodedLen(aes.BlockSize + padded)
}

func (c *AES256CBC) Encrypt(plaintext []byte, key [32]byte) (string, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}
	padded := pad(plaintext, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.URLEncoding.EncodeToString(out), nil
}

func (c *AES256CBC) Decrypt(payload string, key [32]byte) ([]byte, error) {
	raw, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrInvalidFormat, len(raw))
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	iv, ciphertext := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return unpad(plaintext, aes.BlockSize)
}

func pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrDecryptionFailed
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, ErrDecryptionFailed
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrDecryptionFailed
		}
	}
	return data[:len(data)-n], nil
}
