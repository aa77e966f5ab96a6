package remotecare

import (
	"errors"
	"fmt"

	"github.com/hengadev/remotecare/internal/crypto"
	"github.com/hengadev/remotecare/internal/hash"
	"github.com/hengadev/remotecare/internal/reliability"
	"github.com/hengadev/remotecare/internal/schema"
)

var (
	// High-level service errors
	ErrKMSUnavailable       = errors.New("KMS service unavailable")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrEncryptionFailed     = errors.New("encryption failed")
	ErrDecryptionFailed     = errors.New("decryption failed")
	ErrDatabaseUnavailable  = errors.New("database unavailable")

	// Key errors
	ErrKeyNotFound          = errors.New("encryption key not found")
	ErrKeyExists            = errors.New("encryption key already exists")
	ErrMissingEncryptionKey = errors.New("record has no encryption key")
	ErrSearchKeyNotFound    = errors.New("search key not found")

	// Record errors
	ErrInvalidRecord     = errors.New("invalid record")
	ErrUnknownField      = errors.New("unknown field")
	ErrUnsupportedLookup = errors.New("unsupported lookup")

	// Audit errors
	ErrAuditUserNotDefined = errors.New("audit user not defined")

	// Errors raised by the cipher and hash layers.
	ErrUnknownCipher = crypto.ErrUnknownCipher
	ErrInvalidFormat = crypto.ErrInvalidFormat
	ErrUnknownHasher = hash.ErrUnknownHasher
	ErrInvalidTag    = schema.ErrInvalidTag
	ErrMissingField  = schema.ErrMissingField
)

// Action names the operation an error occurred in.
type Action int8

const (
	ActionUnknown Action = iota
	ActionSeal
	ActionOpen
	ActionLookup
	ActionAudit
	ActionRotate
)

func (a Action) String() string {
	switch a {
	case ActionSeal:
		return "seal"
	case ActionOpen:
		return "open"
	case ActionLookup:
		return "lookup"
	case ActionAudit:
		return "audit"
	case ActionRotate:
		return "rotate"
	default:
		return "unknown"
	}
}

func NewInvalidRecordError(record any, action Action, details string) error {
	return fmt.Errorf("%w: %s requires a non-nil pointer to a struct, got %T: %s", ErrInvalidRecord, action, record, details)
}

func NewUnsupportedLookupError(fieldName string, reason string) error {
	return fmt.Errorf("%w: field '%s' %s, only exact lookups through its HMAC column are supported", ErrUnsupportedLookup, fieldName, reason)
}

func NewUnknownFieldError(fieldName string, typeName string) error {
	return fmt.Errorf("%w: '%s' on %s", ErrUnknownField, fieldName, typeName)
}

func NewMissingEncryptionKeyError(typeName string, action Action) error {
	return fmt.Errorf("%w: %s cannot %s without an encryption key id", ErrMissingEncryptionKey, typeName, action)
}

func NewAuditUserNotDefinedError(typeName string) error {
	return fmt.Errorf("%w: set the acting user on %s or in the context before saving", ErrAuditUserNotDefined, typeName)
}

func NewOperationFailedError(fieldName string, action Action, err error) error {
	base := ErrEncryptionFailed
	if action == ActionOpen {
		base = ErrDecryptionFailed
	}
	return fmt.Errorf("%w: %s field '%s': %w", base, action, fieldName, err)
}

// IsRetryableError returns true if the error represents a transient failure that might succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrKMSUnavailable) ||
		errors.Is(err, ErrDatabaseUnavailable) ||
		reliability.Transient(err)
}

// IsConfigurationError returns true if the error represents a configuration problem.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrInvalidTag) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrSearchKeyNotFound) ||
		errors.Is(err, ErrUnknownCipher)
}

// IsOperationError returns true if the error represents a failure during encryption/decryption operations.
func IsOperationError(err error) bool {
	return errors.Is(err, ErrEncryptionFailed) ||
		errors.Is(err, ErrDecryptionFailed)
}

// IsNotFound returns true if a key or search key could not be found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound) ||
		errors.Is(err, ErrSearchKeyNotFound)
}
