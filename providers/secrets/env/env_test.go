package env

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hengadev/remotecare"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Environment(t *testing.T) {
	ctx := context.Background()
	t.Setenv("RC_SECRET_EMAIL_SEARCH", "Fe7!kq")

	s, err := New()
	require.NoError(t, err)
	assert.Equal(t, "RC_SECRET_HOSPITAL_NUMBER_SEARCH", s.GetStoragePath("hospital_number_search"))

	got, err := s.GetSecret(ctx, remotecare.SearchKeyEmail)
	require.NoError(t, err)
	assert.Equal(t, []byte("Fe7!kq"), got)

	exists, err := s.SecretExists(ctx, remotecare.SearchKeyBSN)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.GetSecret(ctx, remotecare.SearchKeyBSN)
	assert.ErrorIs(t, err, remotecare.ErrSearchKeyNotFound)
}

func TestStore_File(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RC_SECRET_SMS=abc123\nOTHER=1\n"), 0o600))

	s, err := New(path)
	require.NoError(t, err)
	got, err := s.GetSecret(ctx, remotecare.PurposeKeySMS)
	require.NoError(t, err)
	assert.Equal(t, "abc123", string(got))

	require.NoError(t, s.StoreSecret(ctx, remotecare.SearchKeySurname, []byte("xyz")))
	written, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "xyz", written["RC_SECRET_SURNAME_SEARCH"])
	assert.Equal(t, "1", written["OTHER"])

	assert.ErrorIs(t, s.StoreSecret(ctx, "empty", nil), remotecare.ErrInvalidConfiguration)
}

func TestStore_MissingFile(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.NoError(t, s.StoreSecret(context.Background(), "sms", []byte("v")))
	exists, err := s.SecretExists(context.Background(), "sms")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_WithVault(t *testing.T) {
	for _, name := range remotecare.DefaultSearchKeys {
		t.Setenv((&Store{}).GetStoragePath(name), "key-"+name)
	}
	s, err := New()
	require.NoError(t, err)
	v, err := remotecare.NewVault(context.Background(), remotecare.NewSimpleTestKMS(), s,
		remotecare.Config{KEKAlias: "test"},
		remotecare.WithKeyStore(remotecare.NewInMemoryKeyStore()),
	)
	require.NoError(t, err)
	digest, err := v.HMAC(context.Background(), remotecare.SearchKeyEmail, "A@B.nl")
	require.NoError(t, err)
	assert.NotEmpty(t, digest)
}
