package remotecare

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		isRetryable bool
		isConfig    bool
		isOperation bool
		isNotFound  bool
	}{
		{name: "KMS unavailable", err: fmt.Errorf("test: %w", ErrKMSUnavailable), isRetryable: true},
		{name: "database unavailable", err: fmt.Errorf("test: %w", ErrDatabaseUnavailable), isRetryable: true},
		{name: "invalid configuration", err: fmt.Errorf("test: %w", ErrInvalidConfiguration), isConfig: true},
		{name: "unknown cipher", err: fmt.Errorf("test: %w", ErrUnknownCipher), isConfig: true},
		{name: "invalid tag", err: fmt.Errorf("test: %w", ErrInvalidTag), isConfig: true},
		{name: "encryption failed", err: NewOperationFailedError("Email", ActionSeal, errors.New("boom")), isOperation: true},
		{name: "decryption failed", err: NewOperationFailedError("Email", ActionOpen, errors.New("boom")), isOperation: true},
		{name: "key not found", err: fmt.Errorf("test: %w", ErrKeyNotFound), isNotFound: true},
		{name: "search key not found", err: fmt.Errorf("test: %w", ErrSearchKeyNotFound), isConfig: true, isNotFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isRetryable, IsRetryableError(tt.err))
			assert.Equal(t, tt.isConfig, IsConfigurationError(tt.err))
			assert.Equal(t, tt.isOperation, IsOperationError(tt.err))
			assert.Equal(t, tt.isNotFound, IsNotFound(tt.err))
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{"invalid record", NewInvalidRecordError(42, ActionSeal, "not a pointer"), ErrInvalidRecord, "seal requires a non-nil pointer to a struct, got int"},
		{"unsupported lookup", NewUnsupportedLookupError("Mobile", "has no lookup column"), ErrUnsupportedLookup, "field 'Mobile' has no lookup column"},
		{"unknown field", NewUnknownFieldError("Password", "User"), ErrUnknownField, "'Password' on User"},
		{"missing key", NewMissingEncryptionKeyError("User", ActionOpen), ErrMissingEncryptionKey, "User cannot open"},
		{"audit user", NewAuditUserNotDefinedError("User"), ErrAuditUserNotDefined, "on User"},
		{"operation", NewOperationFailedError("Email", ActionSeal, errors.New("boom")), ErrEncryptionFailed, "seal field 'Email': boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Contains(t, tt.err.Error(), tt.contains)
		})
	}
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "lookup", ActionLookup.String())
	assert.Equal(t, "rotate", ActionRotate.String())
	assert.Equal(t, "unknown", Action(99).String())
}
