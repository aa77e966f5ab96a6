package remotecare_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/hengadev/remotecare"
	"github.com/hengadev/remotecare/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type patient struct {
	ID    uuid.UUID
	KeyID uuid.UUID `audit:"-"`

	FirstName          string `rc:"encrypt,lookup=firstname_search"`
	FirstNameEncrypted string
	FirstNameHMAC      string

	Email          string `rc:"encrypt,lookup=email_search,unique"`
	EmailEncrypted string
	EmailHMAC      string

	Mobile          *string `rc:"encrypt"`
	MobileEncrypted string

	Hospital string

	audit.State
}

func (p *patient) EncryptionKeyID() uuid.UUID { return p.KeyID }

type bsnRecord struct {
	KeyID        uuid.UUID
	BSN          string `rc:"encrypt,lookup=bsn_search"`
	BSNEncrypted string
	BSNHMAC      string
}

func (r *bsnRecord) EncryptionKeyID() uuid.UUID { return r.KeyID }

func newPatient(t *testing.T, v *remotecare.Vault) *patient {
	t.Helper()
	key, err := v.CreateEncryptionKey(context.Background(), uuid.NewString())
	require.NoError(t, err)
	mobile := "0612345678"
	return &patient{
		KeyID:     key.ID,
		FirstName: "Jan",
		Email:     "Jan.Jansen@Example.org",
		Mobile:    &mobile,
		Hospital:  "UMCG",
	}
}

func TestVault_SealOpen(t *testing.T) {
	ctx := context.Background()
	v := remotecare.NewTestVault(t)
	p := newPatient(t, v)

	require.NoError(t, v.Seal(ctx, p))
	assert.True(t, strings.HasPrefix(p.FirstNameEncrypted, "AES256CBC$"))
	assert.True(t, v.IsEncrypted(p.EmailEncrypted))
	assert.True(t, v.IsEncrypted(p.MobileEncrypted))
	assert.True(t, strings.HasPrefix(p.EmailHMAC, "SHA256$"))

	loaded := &patient{
		KeyID:              p.KeyID,
		FirstNameEncrypted: p.FirstNameEncrypted,
		EmailEncrypted:     p.EmailEncrypted,
		MobileEncrypted:    p.MobileEncrypted,
	}
	require.NoError(t, v.Open(ctx, loaded))
	assert.Equal(t, "Jan", loaded.FirstName)
	assert.Equal(t, "Jan.Jansen@Example.org", loaded.Email)
	require.NotNil(t, loaded.Mobile)
	assert.Equal(t, "0612345678", *loaded.Mobile)
}

func TestVault_SealIsRandomizedButHMACIsNot(t *testing.T) {
	ctx := context.Background()
	v := remotecare.NewTestVault(t)
	a := newPatient(t, v)
	b := &patient{KeyID: a.KeyID, FirstName: "JAN", Email: "jan.jansen@example.org"}

	require.NoError(t, v.Seal(ctx, a))
	require.NoError(t, v.Seal(ctx, b))

	assert.NotEqual(t, a.FirstNameEncrypted, b.FirstNameEncrypted)
	assert.Equal(t, a.FirstNameHMAC, b.FirstNameHMAC)
	assert.Equal(t, a.EmailHMAC, b.EmailHMAC)
}

func TestVault_SealKeepsEncryptedValues(t *testing.T) {
	ctx := context.Background()
	v := remotecare.NewTestVault(t)
	p := newPatient(t, v)
	require.NoError(t, v.Seal(ctx, p))

	encrypted, hmac := p.FirstNameEncrypted, p.FirstNameHMAC
	p.FirstName = encrypted
	require.NoError(t, v.Seal(ctx, p))
	assert.Equal(t, encrypted, p.FirstNameEncrypted)
	assert.Equal(t, hmac, p.FirstNameHMAC)
}

func TestVault_SealEmptyValues(t *testing.T) {
	ctx := context.Background()
	v := remotecare.NewTestVault(t)
	p := newPatient(t, v)
	require.NoError(t, v.Seal(ctx, p))

	p.Email = ""
	p.Mobile = nil
	require.NoError(t, v.Seal(ctx, p))
	assert.Empty(t, p.EmailEncrypted)
	assert.Empty(t, p.EmailHMAC)
	assert.Empty(t, p.MobileEncrypted)

	require.NoError(t, v.Open(ctx, p))
	assert.Empty(t, p.Email)
	assert.Nil(t, p.Mobile)
}

func TestVault_OpenPlainCompanion(t *testing.T) {
	v := remotecare.NewTestVault(t)
	p := &patient{FirstNameEncrypted: "legacy value"}
	require.NoError(t, v.Open(context.Background(), p))
	assert.Equal(t, "legacy value", p.FirstName)
}

func TestVault_SealErrors(t *testing.T) {
	ctx := context.Background()
	v := remotecare.NewTestVault(t)

	tests := []struct {
		name    string
		record  any
		wantErr error
	}{
		{
			name:    "not a pointer",
			record:  patient{FirstName: "Jan"},
			wantErr: remotecare.ErrInvalidRecord,
		},
		{
			name:    "nil pointer",
			record:  (*patient)(nil),
			wantErr: remotecare.ErrInvalidRecord,
		},
		{
			name:    "no key",
			record:  &patient{FirstName: "Jan"},
			wantErr: remotecare.ErrMissingEncryptionKey,
		},
		{
			name:    "unknown key",
			record:  &patient{KeyID: uuid.New(), FirstName: "Jan"},
			wantErr: remotecare.ErrKeyNotFound,
		},
		{
			name: "missing companion",
			record: &struct {
				Name string `rc:"encrypt"`
			}{Name: "Jan"},
			wantErr: remotecare.ErrInvalidConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Seal(ctx, tt.record)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVault_LookupHMAC(t *testing.T) {
	ctx := context.Background()
	v := remotecare.NewTestVault(t)
	p := newPatient(t, v)
	require.NoError(t, v.Seal(ctx, p))

	l, err := v.LookupHMAC(ctx, &patient{}, "Email", "jan.jansen@example.org")
	require.NoError(t, err)
	assert.Equal(t, "EmailHMAC", l.Field)
	assert.Equal(t, "email_hmac", l.Column)
	assert.Equal(t, p.EmailHMAC, l.HMAC)

	l, err = v.LookupHMAC(ctx, patient{}, "first_name", "jan")
	require.NoError(t, err)
	assert.Equal(t, "first_name_hmac", l.Column)
	assert.Equal(t, p.FirstNameHMAC, l.HMAC)

	var rec bsnRecord
	l, err = v.LookupHMAC(ctx, &rec, "BSN", "123456782")
	require.NoError(t, err)
	assert.Equal(t, "BSNHMAC", l.Field)
	assert.Equal(t, "bsn_hmac", l.Column)

	tests := []struct {
		name    string
		field   string
		wantErr error
	}{
		{name: "encrypted without lookup", field: "Mobile", wantErr: remotecare.ErrUnsupportedLookup},
		{name: "not encrypted", field: "Hospital", wantErr: remotecare.ErrUnsupportedLookup},
		{name: "unknown", field: "Password", wantErr: remotecare.ErrUnknownField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.LookupHMAC(ctx, &patient{}, tt.field, "x")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVault_Keys(t *testing.T) {
	ctx := context.Background()
	v := remotecare.NewTestVault(t)

	key, err := v.CreateEncryptionKey(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", key.OwnerID)
	assert.NotEmpty(t, key.WrappedKey)

	_, err = v.CreateEncryptionKey(ctx, "user-1")
	assert.ErrorIs(t, err, remotecare.ErrKeyExists)

	material, err := v.EncryptionKey(ctx, key.ID)
	require.NoError(t, err)
	assert.Len(t, material, 64)

	id, again, err := v.EncryptionKeyForOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, key.ID, id)
	assert.Equal(t, material, again)

	_, err = v.EncryptionKey(ctx, uuid.New())
	assert.ErrorIs(t, err, remotecare.ErrKeyNotFound)
	_, _, err = v.EncryptionKeyForOwner(ctx, "nobody")
	assert.ErrorIs(t, err, remotecare.ErrKeyNotFound)
}

func TestVault_EncryptDecrypt(t *testing.T) {
	ctx := context.Background()
	v := remotecare.NewTestVault(t)
	key, err := v.CreateEncryptionKey(ctx, "user-1")
	require.NoError(t, err)

	out, err := v.Encrypt(ctx, key.ID, "clinical notes")
	require.NoError(t, err)
	assert.Equal(t, "AES256CBC", v.Cipher())
	assert.True(t, strings.HasPrefix(out, v.Cipher()+"$"))
	got, err := v.Decrypt(ctx, key.ID, out)
	require.NoError(t, err)
	assert.Equal(t, "clinical notes", got)

	other, err := v.CreateEncryptionKey(ctx, "user-2")
	require.NoError(t, err)
	got, err = v.Decrypt(ctx, other.ID, out)
	if err != nil {
		assert.ErrorIs(t, err, remotecare.ErrDecryptionFailed)
	} else {
		assert.NotEqual(t, "clinical notes", got)
	}
}

func TestVault_Stream(t *testing.T) {
	ctx := context.Background()
	v := remotecare.NewTestVault(t)
	key, err := v.CreateEncryptionKey(ctx, "user-1")
	require.NoError(t, err)

	payload := bytes.Repeat([]byte("attachment "), 20000)
	var sealed, opened bytes.Buffer
	require.NoError(t, v.EncryptStream(ctx, key.ID, bytes.NewReader(payload), &sealed))
	require.NoError(t, v.DecryptStream(ctx, key.ID, &sealed, &opened))
	assert.Equal(t, payload, opened.Bytes())
}

func TestVault_RotateMasterKey(t *testing.T) {
	ctx := context.Background()
	store := remotecare.NewInMemoryKeyStore()
	v := remotecare.NewTestVault(t, remotecare.WithKeyStore(store))

	p := newPatient(t, v)
	require.NoError(t, v.Seal(ctx, p))
	_, oldKEK := v.KEK()

	require.NoError(t, v.RotateMasterKey(ctx, "next-kek"))

	alias, newKEK := v.KEK()
	assert.Equal(t, "next-kek", alias)
	assert.NotEqual(t, oldKEK, newKEK)

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	for _, k := range keys {
		assert.Equal(t, newKEK, k.KEKID)
		assert.NotNil(t, k.RotatedAt)
	}

	loaded := &patient{KeyID: p.KeyID, FirstNameEncrypted: p.FirstNameEncrypted}
	require.NoError(t, v.Open(ctx, loaded))
	assert.Equal(t, "Jan", loaded.FirstName)
}

func TestVault_HMAC(t *testing.T) {
	ctx := context.Background()
	v := remotecare.NewTestVault(t)

	digest, err := v.HMAC(ctx, remotecare.PurposeKeySMS, "123456")
	require.NoError(t, err)
	ok, err := v.CheckHMAC(ctx, remotecare.PurposeKeySMS, "123456", digest)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = v.CheckHMAC(ctx, remotecare.PurposeKeyEmail, "123456", digest)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = v.HMAC(ctx, "unknown_search", "x")
	assert.ErrorIs(t, err, remotecare.ErrSearchKeyNotFound)
}

func TestNewVault_Errors(t *testing.T) {
	ctx := context.Background()
	kms := remotecare.NewSimpleTestKMS()
	secrets := remotecare.NewTestSecretStore(t)
	keys := remotecare.WithKeyStore(remotecare.NewInMemoryKeyStore())

	tests := []struct {
		name    string
		cfg     remotecare.Config
		opts    []remotecare.Option
		wantErr error
	}{
		{name: "missing alias", cfg: remotecare.Config{}, opts: []remotecare.Option{keys}, wantErr: remotecare.ErrInvalidConfiguration},
		{name: "missing key store", cfg: remotecare.Config{KEKAlias: "kek"}, wantErr: remotecare.ErrInvalidConfiguration},
		{name: "unknown cipher", cfg: remotecare.Config{KEKAlias: "kek", Cipher: "DES"}, opts: []remotecare.Option{keys}, wantErr: remotecare.ErrUnknownCipher},
		{name: "missing search key", cfg: remotecare.Config{KEKAlias: "kek", SearchKeys: []string{"absent"}}, opts: []remotecare.Option{keys}, wantErr: remotecare.ErrSearchKeyNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := remotecare.NewVault(ctx, kms, secrets, tt.cfg, tt.opts...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVault_OpenLegacyNone(t *testing.T) {
	ctx := context.Background()
	v := remotecare.NewTestVault(t)
	p := newPatient(t, v)

	none, err := v.Encrypt(ctx, p.KeyID, "None")
	require.NoError(t, err)

	loaded := &patient{KeyID: p.KeyID, FirstNameEncrypted: none, MobileEncrypted: none}
	require.NoError(t, v.Open(ctx, loaded))
	assert.Nil(t, loaded.Mobile)
	assert.Empty(t, loaded.FirstName)
}

func TestVault_MaxLength(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		cipher string
		want   int
	}{
		{cipher: "AES256CBC", want: 64},
		{cipher: "AES256GCM", want: 128},
	}
	for _, tt := range tests {
		t.Run(tt.cipher, func(t *testing.T) {
			v, err := remotecare.NewVault(ctx, remotecare.NewSimpleTestKMS(), remotecare.NewTestSecretStore(t),
				remotecare.Config{KEKAlias: "test-kek", Cipher: tt.cipher},
				remotecare.WithKeyStore(remotecare.NewInMemoryKeyStore()))
			require.NoError(t, err)
			key, err := v.CreateEncryptionKey(ctx, "user-1")
			require.NoError(t, err)

			out, err := v.Encrypt(ctx, key.ID, "061234567891234")
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.MaxLength(15))
			assert.LessOrEqual(t, len(out), v.MaxLength(15))
		})
	}
}
