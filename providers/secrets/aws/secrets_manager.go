package aws

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/hengadev/remotecare"
)

// secretsManagerClient interface for AWS Secrets Manager operations (allows mocking)
type secretsManagerClient interface {
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

// SecretsManagerStore implements remotecare.SecretManagementService using
// AWS Secrets Manager. Values are stored base64 encoded.
type SecretsManagerStore struct {
	client secretsManagerClient
	region string
	prefix string
}

// NewSecretsManagerStore creates a store from cfg or the default AWS
// configuration.
//
//	store, err := aws.NewSecretsManagerStore(ctx, aws.Config{Region: "eu-west-1"})
func NewSecretsManagerStore(ctx context.Context, cfg Config) (*SecretsManagerStore, error) {
	var awsConfig aws.Config
	if cfg.AWSConfig != nil {
		awsConfig = *cfg.AWSConfig
	} else {
		var opts []func(*config.LoadOptions) error
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}
		var err error
		awsConfig, err = config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load AWS config: %w", remotecare.ErrKMSUnavailable, err)
		}
	}

	return &SecretsManagerStore{
		client: secretsmanager.NewFromConfig(awsConfig),
		region: awsConfig.Region,
		prefix: cfg.Prefix,
	}, nil
}

// GetStoragePath returns the secret name of a search key, e.g.
// "remotecare/email_search".
func (s *SecretsManagerStore) GetStoragePath(name string) string {
	if s.prefix != "" {
		return s.prefix + name
	}
	return fmt.Sprintf(remotecare.AWSSecretPathTemplate, name)
}

// StoreSecret creates the secret or puts a new version when it exists.
func (s *SecretsManagerStore) StoreSecret(ctx context.Context, name string, value []byte) error {
	if len(value) == 0 {
		return fmt.Errorf("%w: secret %s must not be empty", remotecare.ErrInvalidConfiguration, name)
	}
	secretName := s.GetStoragePath(name)
	encoded := base64.StdEncoding.EncodeToString(value)

	exists, err := s.SecretExists(ctx, name)
	if err != nil {
		return err
	}

	if exists {
		_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
			SecretId:     aws.String(secretName),
			SecretString: aws.String(encoded),
		})
		if err != nil {
			return fmt.Errorf("%w: failed to update secret in Secrets Manager: %w", remotecare.ErrKMSUnavailable, err)
		}
		return nil
	}

	_, err = s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(secretName),
		Description:  aws.String(fmt.Sprintf("remotecare search key %s", name)),
		SecretString: aws.String(encoded),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create secret in Secrets Manager: %w", remotecare.ErrKMSUnavailable, err)
	}
	return nil
}

// GetSecret returns the decoded secret. A missing secret is reported with
// remotecare.ErrSearchKeyNotFound.
func (s *SecretsManagerStore) GetSecret(ctx context.Context, name string) ([]byte, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.GetStoragePath(name)),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", remotecare.ErrSearchKeyNotFound, name)
		}
		return nil, fmt.Errorf("%w: failed to get secret from Secrets Manager: %w", remotecare.ErrKMSUnavailable, err)
	}
	if result.SecretString == nil {
		return nil, fmt.Errorf("%w: %s", remotecare.ErrSearchKeyNotFound, name)
	}

	value, err := base64.StdEncoding.DecodeString(*result.SecretString)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode secret %s: %w", remotecare.ErrInvalidConfiguration, name, err)
	}
	return value, nil
}

// SecretExists reports whether the secret is stored. Only real failures are
// returned as errors.
func (s *SecretsManagerStore) SecretExists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(s.GetStoragePath(name)),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to check if secret exists: %w", remotecare.ErrKMSUnavailable, err)
	}
	return true, nil
}

// Region returns the AWS region this Secrets Manager store is configured for.
func (s *SecretsManagerStore) Region() string {
	return s.region
}

var _ remotecare.SecretManagementService = (*SecretsManagerStore)(nil)
