// Package remotecare stores personal data encrypted with a key that belongs
// to the person it describes, while keeping it searchable by exact value and
// auditing every change.
//
// Each person owns a personal key. The key is random text wrapped by a
// master key held in a KeyManagementService and persisted in a KeyStore.
// Records name their key by implementing KeyHolder.
//
// # Tagging records
//
// Fields are marked with the rc struct tag and get companion fields that are
// the ones written to the database:
//
//	type Patient struct {
//	    ID              uuid.UUID
//	    KeyID           uuid.UUID `audit:"-"`
//	    Email           string    `rc:"encrypt,lookup=email_search,unique" gorm:"-"`
//	    EmailEncrypted  string
//	    EmailHMAC       string
//	    Mobile          *string   `rc:"encrypt" gorm:"-"`
//	    MobileEncrypted string
//
//	    audit.State
//	}
//
//	func (p *Patient) EncryptionKeyID() uuid.UUID { return p.KeyID }
//
// Encrypted values look like AES256CBC$<base64url>, the cipher name followed
// by the payload. A lookup field also gets the HMAC of its lower-cased value
// under the named search key, read from a SecretManagementService.
//
// # Using a vault
//
//	vault, err := remotecare.NewVault(ctx, kms, secrets,
//	    remotecare.Config{KEKAlias: "alias/remotecare"},
//	    remotecare.WithKeyStore(keyStore),
//	    remotecare.WithAuditStore(auditStore),
//	)
//
//	key, err := vault.CreateEncryptionKey(ctx, ownerID)
//	patient.KeyID = key.ID
//	err = vault.Save(remotecare.WithActor(ctx, "secretary-1"), patient, insert)
//
//	cond, err := vault.LookupHMAC(ctx, &Patient{}, "Email", "jan@example.org")
//	// SELECT ... WHERE email_hmac = cond.HMAC
//
// Only exact matches through a lookup column are possible; any other query on
// an encrypted field fails with ErrUnsupportedLookup.
//
// # Audit trail
//
// Records embedding audit.State are diffed against the snapshot taken by
// Track. PrepareAudit builds the entry before the save and CommitAudit
// stores it afterwards. Encrypted fields appear in entries with their
// encrypted value and the entry remembers the key needed to read them,
// see AuditChanges.
//
// The integration/gormrc package wires all of this into gorm callbacks.
package remotecare
