// Package env reads search keys from environment variables, optionally
// loaded from .env files. The key "email_search" is read from
// RC_SECRET_EMAIL_SEARCH.
package env

import (
	"context"
	"fmt"
	"maps"
	"os"
	"strings"
	"sync"

	"github.com/hengadev/remotecare"
	"github.com/joho/godotenv"
)

// Prefix is prepended to the upper-cased secret name.
const Prefix = "RC_SECRET_"

// Store implements remotecare.SecretManagementService over environment
// variables. The process environment overrides values read from files.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
	file   string
}

// New reads the process environment and the given .env files. When files
// are given, StoreSecret writes back to the first one.
func New(files ...string) (*Store, error) {
	s := &Store{values: map[string]string{}}
	if len(files) > 0 {
		fromFiles, err := godotenv.Read(files...)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: read env files: %w", remotecare.ErrInvalidConfiguration, err)
		}
		maps.Copy(s.values, fromFiles)
		s.file = files[0]
	}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, Prefix) {
			s.values[k] = v
		}
	}
	return s, nil
}

// GetStoragePath returns the variable name holding name.
func (s *Store) GetStoragePath(name string) string {
	return Prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

func (s *Store) GetSecret(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[s.GetStoragePath(name)]
	if !ok || v == "" {
		return nil, fmt.Errorf("%w: %s is not set", remotecare.ErrSearchKeyNotFound, s.GetStoragePath(name))
	}
	return []byte(v), nil
}

func (s *Store) SecretExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[s.GetStoragePath(name)]
	return ok && v != "", nil
}

// StoreSecret keeps value for this process and, when the store was built
// from a file, rewrites that file with every RC_SECRET_ variable.
func (s *Store) StoreSecret(ctx context.Context, name string, value []byte) error {
	if len(value) == 0 {
		return fmt.Errorf("%w: secret %s must not be empty", remotecare.ErrInvalidConfiguration, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[s.GetStoragePath(name)] = string(value)
	if s.file == "" {
		return nil
	}

	existing, err := godotenv.Read(s.file)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", s.file, err)
	}
	if existing == nil {
		existing = map[string]string{}
	}
	existing[s.GetStoragePath(name)] = string(value)
	if err := godotenv.Write(existing, s.file); err != nil {
		return fmt.Errorf("write %s: %w", s.file, err)
	}
	return nil
}

var _ remotecare.SecretManagementService = (*Store)(nil)
