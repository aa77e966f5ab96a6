package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/hengadev/remotecare"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSecretsManager keeps secrets in a map keyed by name.
type fakeSecretsManager struct {
	secrets map[string]string
	created int
	put     int
	err     error
}

func newFakeSecretsManager() *fakeSecretsManager {
	return &fakeSecretsManager{secrets: map[string]string{}}
}

func (f *fakeSecretsManager) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created++
	f.secrets[*params.Name] = *params.SecretString
	return &secretsmanager.CreateSecretOutput{Name: params.Name}, nil
}

func (f *fakeSecretsManager) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.secrets[*params.SecretId]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func (f *fakeSecretsManager) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.put++
	f.secrets[*params.SecretId] = *params.SecretString
	return &secretsmanager.PutSecretValueOutput{}, nil
}

func (f *fakeSecretsManager) DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.secrets[*params.SecretId]; !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &secretsmanager.DescribeSecretOutput{Name: params.SecretId}, nil
}

func TestSecretsManagerStore(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSecretsManager()
	store := &SecretsManagerStore{client: fake, region: "eu-west-1"}

	assert.Equal(t, "remotecare/email_search", store.GetStoragePath("email_search"))

	exists, err := store.SecretExists(ctx, "email_search")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.GetSecret(ctx, "email_search")
	assert.ErrorIs(t, err, remotecare.ErrSearchKeyNotFound)

	require.NoError(t, store.StoreSecret(ctx, "email_search", []byte("Fe7!kq")))
	assert.Equal(t, "RmU3IWtx", fake.secrets["remotecare/email_search"])
	assert.Equal(t, 1, fake.created)

	require.NoError(t, store.StoreSecret(ctx, "email_search", []byte("other")))
	assert.Equal(t, 1, fake.put)

	got, err := store.GetSecret(ctx, "email_search")
	require.NoError(t, err)
	assert.Equal(t, []byte("other"), got)
	assert.Equal(t, "eu-west-1", store.Region())
}

func TestSecretsManagerStore_Prefix(t *testing.T) {
	ctx := context.Background()
	fake := newFakeSecretsManager()
	store := &SecretsManagerStore{client: fake, prefix: "remotecare/acceptance/"}

	assert.Equal(t, "remotecare/acceptance/bsn_search", store.GetStoragePath("bsn_search"))
	require.NoError(t, store.StoreSecret(ctx, "bsn_search", []byte("x")))
	assert.Contains(t, fake.secrets, "remotecare/acceptance/bsn_search")
	assert.NotContains(t, fake.secrets, "remotecare/bsn_search")
}

func TestSecretsManagerStore_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(f *fakeSecretsManager)
		run     func(s *SecretsManagerStore) error
		wantErr error
	}{
		{
			name:    "empty value",
			run:     func(s *SecretsManagerStore) error { return s.StoreSecret(ctx, "sms", nil) },
			wantErr: remotecare.ErrInvalidConfiguration,
		},
		{
			name:  "service down on store",
			setup: func(f *fakeSecretsManager) { f.err = errors.New("timeout") },
			run: func(s *SecretsManagerStore) error {
				return s.StoreSecret(ctx, "sms", []byte("x"))
			},
			wantErr: remotecare.ErrKMSUnavailable,
		},
		{
			name:  "service down on get",
			setup: func(f *fakeSecretsManager) { f.err = errors.New("timeout") },
			run: func(s *SecretsManagerStore) error {
				_, err := s.GetSecret(ctx, "sms")
				return err
			},
			wantErr: remotecare.ErrKMSUnavailable,
		},
		{
			name:  "corrupt value",
			setup: func(f *fakeSecretsManager) { f.secrets["remotecare/sms"] = "%%%" },
			run: func(s *SecretsManagerStore) error {
				_, err := s.GetSecret(ctx, "sms")
				return err
			},
			wantErr: remotecare.ErrInvalidConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeSecretsManager()
			if tt.setup != nil {
				tt.setup(fake)
			}
			err := tt.run(&SecretsManagerStore{client: fake})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
