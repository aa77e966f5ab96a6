// Package aws wraps personal keys with an AWS KMS master key.
//
// KMSService implements remotecare.KeyManagementService. The master key
// never leaves KMS; only the wrapped personal keys are stored.
//
// # Basic Usage
//
//	kms, err := awskms.New(ctx, awskms.Config{Region: "eu-west-1"})
//	if err != nil {
//	    // handle error
//	}
//	vault, err := remotecare.NewVault(ctx, kms, secrets, remotecare.Config{
//	    KEKAlias: "alias/remotecare-kek",
//	}, remotecare.WithKeyStore(store))
//
// # Configuration
//
//	// Region given explicitly
//	cfg := awskms.Config{Region: "eu-west-1"}
//
//	// Region from AWS_REGION or the shared config file
//	cfg := awskms.Config{}
//
//	// Preloaded AWS config
//	awsCfg, _ := config.LoadDefaultConfig(ctx)
//	cfg := awskms.Config{AWSConfig: &awsCfg}
//
// # IAM Permissions
//
//	{
//	    "Version": "2012-10-17",
//	    "Statement": [
//	        {
//	            "Effect": "Allow",
//	            "Action": [
//	                "kms:Encrypt",
//	                "kms:Decrypt",
//	                "kms:DescribeKey",
//	                "kms:CreateKey"
//	            ],
//	            "Resource": "arn:aws:kms:region:account-id:key/*"
//	        }
//	    ]
//	}
//
// # Errors
//
//   - remotecare.ErrKMSUnavailable: KMS is unreachable or the key is unknown
//   - remotecare.ErrEncryptionFailed: wrapping failed
//   - remotecare.ErrDecryptionFailed: unwrapping failed
//   - remotecare.ErrInvalidConfiguration: e.g. an empty alias
//
// # Key Naming
//
// Aliases get the "alias/" prefix when it is missing:
//
//	kms.GetKeyID(ctx, "my-key")        // "alias/my-key"
//	kms.GetKeyID(ctx, "alias/my-key")  // used as-is
//
// Tests that do not need AWS use remotecare.NewTestVault.
package aws
