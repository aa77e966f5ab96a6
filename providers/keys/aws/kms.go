// Package aws wraps personal keys with an AWS KMS master key.
package aws

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/hengadev/remotecare"
)

// kmsClient is the part of the KMS API the service uses.
type kmsClient interface {
	DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMSService implements remotecare.KeyManagementService using AWS KMS.
type KMSService struct {
	client kmsClient
	region string
}

// Config holds configuration for AWS KMS service.
type Config struct {
	// Region is the AWS region (e.g., "eu-west-1")
	// If empty, uses AWS_REGION environment variable or AWS config file
	Region string

	// AWSConfig is an optional pre-configured AWS config
	// If provided, Region is ignored
	AWSConfig *aws.Config
}

// New creates a KMS service from cfg or the default AWS configuration.
//
//	kms, err := aws.New(ctx, aws.Config{Region: "eu-west-1"})
func New(ctx context.Context, cfg Config) (*KMSService, error) {
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
	return &KMSService{
		client: kms.NewFromConfig(awsConfig),
		region: awsConfig.Region,
	}, nil
}

// GetKeyID resolves an alias to the key id. The "alias/" prefix is added
// when missing.
func (k *KMSService) GetKeyID(ctx context.Context, alias string) (string, error) {
	if alias == "" {
		return "", fmt.Errorf("%w: alias cannot be empty", remotecare.ErrInvalidConfiguration)
	}
	name := alias
	if !strings.HasPrefix(alias, "alias/") && !strings.HasPrefix(alias, "arn:") {
		name = "alias/" + alias
	}

	result, err := k.client.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(name)})
	if err != nil {
		var notFound *types.NotFoundException
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: KMS key %s", remotecare.ErrKeyNotFound, name)
		}
		return "", fmt.Errorf("%w: failed to describe KMS key %s: %w", remotecare.ErrKMSUnavailable, name, err)
	}
	if result.KeyMetadata == nil || result.KeyMetadata.KeyId == nil {
		return "", fmt.Errorf("%w: no key metadata returned for alias %s", remotecare.ErrKMSUnavailable, name)
	}
	return *result.KeyMetadata.KeyId, nil
}

// CreateKey creates a symmetric encryption key. Aliases are managed outside
// this service.
func (k *KMSService) CreateKey(ctx context.Context, description string) (string, error) {
	result, err := k.client.CreateKey(ctx, &kms.CreateKeyInput{
		Description: aws.String(description),
		KeyUsage:    types.KeyUsageTypeEncryptDecrypt,
		KeySpec:     types.KeySpecSymmetricDefault,
		MultiRegion: aws.Bool(false),
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to create KMS key: %w", remotecare.ErrKMSUnavailable, err)
	}
	if result.KeyMetadata == nil || result.KeyMetadata.KeyId == nil {
		return "", fmt.Errorf("%w: no key metadata returned after creation", remotecare.ErrKMSUnavailable)
	}
	return *result.KeyMetadata.KeyId, nil
}

// EncryptKey wraps a personal key. The ciphertext blob is returned base64
// encoded so it can be stored as text.
func (k *KMSService) EncryptKey(ctx context.Context, keyID string, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("%w: plaintext cannot be empty", remotecare.ErrEncryptionFailed)
	}
	result, err := k.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(keyID),
		Plaintext: plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to wrap personal key with KMS key %s: %w", remotecare.ErrKMSUnavailable, keyID, err)
	}
	if result.CiphertextBlob == nil {
		return nil, fmt.Errorf("%w: no ciphertext returned from KMS", remotecare.ErrEncryptionFailed)
	}
	return []byte(base64.StdEncoding.EncodeToString(result.CiphertextBlob)), nil
}

// DecryptKey unwraps a personal key produced by EncryptKey.
func (k *KMSService) DecryptKey(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: ciphertext cannot be empty", remotecare.ErrDecryptionFailed)
	}
	decoded, err := base64.StdEncoding.DecodeString(string(ciphertext))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode ciphertext: %w", remotecare.ErrDecryptionFailed, err)
	}

	input := &kms.DecryptInput{CiphertextBlob: decoded}
	if keyID != "" {
		input.KeyId = aws.String(keyID)
	}
	result, err := k.client.Decrypt(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to unwrap personal key: %w", remotecare.ErrDecryptionFailed, err)
	}
	if result.Plaintext == nil {
		return nil, fmt.Errorf("%w: no plaintext returned from KMS", remotecare.ErrDecryptionFailed)
	}
	return result.Plaintext, nil
}

// Region returns the AWS region this KMS service is configured for.
func (k *KMSService) Region() string {
	return k.region
}

var _ remotecare.KeyManagementService = (*KMSService)(nil)
