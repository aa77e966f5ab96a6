package aws

import "github.com/aws/aws-sdk-go-v2/aws"

// Config selects the region and naming of the search key secrets.
type Config struct {
	// Region is used when AWSConfig is nil. Empty means AWS_REGION or the
	// shared config file.
	Region string

	// AWSConfig, when set, is used as is.
	AWSConfig *aws.Config

	// Prefix replaces the default "remotecare/" in front of secret names,
	// so that deployments sharing an account keep separate search keys,
	// e.g. "remotecare/acceptance/".
	Prefix string
}
