// Package aws provides AWS Secrets Manager storage for remotecare search keys.
//
// Search keys are the HMAC secrets behind lookup columns. Each one is kept as
// a separate secret named after remotecare.AWSSecretPathTemplate:
//
//	remotecare/email_search
//	remotecare/firstname_search
//
// # Basic Usage
//
//	secrets, err := awssecrets.NewSecretsManagerStore(ctx, awssecrets.Config{
//	    Region: "eu-west-1",
//	})
//	if err != nil {
//	    // handle error
//	}
//	vault, err := remotecare.NewVault(ctx, kms, secrets, remotecare.Config{
//	    KEKAlias: "alias/remotecare",
//	})
//
// # IAM Permissions
//
//	secretsmanager:GetSecretValue
//	secretsmanager:CreateSecret
//	secretsmanager:PutSecretValue
//	secretsmanager:DescribeSecret
//
// on arn:aws:secretsmanager:region:account-id:secret:remotecare/*.
//
// Search keys must never be rotated in place: every stored HMAC would stop
// matching.
package aws
