package hash

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/hengadev/remotecare/internal/random"
	"golang.org/x/crypto/argon2"
)

// Argon2Params defines the parameters for Argon2id.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns recommended parameters for Argon2id.
func DefaultArgon2Params() *Argon2Params {
	return &Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (p *Argon2Params) Validate() error {
	switch {
	case p == nil:
		return fmt.Errorf("argon2 params are nil")
	case p.Memory < 8*uint32(p.Parallelism):
		return fmt.Errorf("argon2 memory %d too low for parallelism %d", p.Memory, p.Parallelism)
	case p.Iterations == 0:
		return fmt.Errorf("argon2 iterations must be positive")
	case p.Parallelism == 0:
		return fmt.Errorf("argon2 parallelism must be positive")
	case p.SaltLength < 8:
		return fmt.Errorf("argon2 salt length must be at least 8")
	case p.KeyLength < 16:
		return fmt.Errorf("argon2 key length must be at least 16")
	}
	return nil
}

// HashPassword returns an Argon2id PHC string for value.
func HashPassword(value string, p *Argon2Params) (string, error) {
	if p == nil {
		p = DefaultArgon2Params()
	}
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("validate Argon2Params: %w", err)
	}
	salt, err := random.Bytes(int(p.SaltLength))
	if err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(value), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory,
		p.Iterations,
		p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// ComparePassword checks value against a string produced by HashPassword.
func ComparePassword(value, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("%w: not an argon2id hash", ErrInvalidFormat)
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("%w: unsupported argon2 version %d", ErrInvalidFormat, version)
	}
	p := &Argon2Params{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %w", ErrInvalidFormat, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: key: %w", ErrInvalidFormat, err)
	}
	got := argon2.IDKey([]byte(value), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
