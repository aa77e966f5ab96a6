package remotecare

import "github.com/hengadev/remotecare/internal/schema"

// Struct tags and companion suffixes.
const (
	StructTag       = schema.TagName
	AuditTag        = schema.AuditTagName
	TagEncrypt      = schema.OpEncrypt
	TagLookup       = schema.OpLookup
	TagUnique       = schema.OpUnique
	SuffixEncrypted = schema.SuffixEncrypted
	SuffixHMAC      = schema.SuffixHMAC
)

// Secret names of the search keys used for lookup columns, and of the
// purpose keys used to hash one-time codes.
const (
	SearchKeyFirstName      = "firstname_search"
	SearchKeySurname        = "surname_search"
	SearchKeyEmail          = "email_search"
	SearchKeyHospitalNumber = "hospital_number_search"
	SearchKeyBSN            = "bsn_search"

	PurposeKeySMS   = "sms"
	PurposeKeyEmail = "email"
)

// DefaultSearchKeys are loaded by NewVault when Config.SearchKeys is empty.
var DefaultSearchKeys = []string{
	SearchKeyFirstName,
	SearchKeySurname,
	SearchKeyEmail,
	SearchKeyHospitalNumber,
	SearchKeyBSN,
	PurposeKeySMS,
	PurposeKeyEmail,
}

// Environment variable names
const (
	// EnvKEKAlias names the master key that wraps personal keys.
	EnvKEKAlias = "RC_KEK_ALIAS"

	// EnvSearchKeys is a comma separated list of search key names.
	EnvSearchKeys = "RC_SEARCH_KEYS"

	// EnvCipher selects the cipher used for new values.
	EnvCipher = "RC_CIPHER"

	// EnvDebug makes a missing audit user an error.
	EnvDebug = "RC_DEBUG"

	// EnvDisableAuditing turns the audit trail off, for test runs.
	EnvDisableAuditing = "RC_DISABLE_AUDITING"

	// EnvKeyCacheTTL bounds how long a wrapped key stays cached.
	EnvKeyCacheTTL = "RC_KEY_CACHE_TTL"

	// EnvRotationConcurrency bounds parallel rewraps during master key rotation.
	EnvRotationConcurrency = "RC_ROTATION_CONCURRENCY"
)

// Storage path templates for different secret management providers
const (
	// AWSSecretPathTemplate is the Secrets Manager name of a search key.
	// Example: "remotecare/email_search"
	AWSSecretPathTemplate = "remotecare/%s"

	// VaultSecretPathTemplate is the KV v2 path of a search key.
	// Example: "secret/data/remotecare/email_search"
	VaultSecretPathTemplate = "secret/data/remotecare/%s"
)

const (
	// MaxKEKAliasLength is the maximum allowed length for a KEK alias.
	MaxKEKAliasLength = 256

	DefaultRotationConcurrency = 4
)
