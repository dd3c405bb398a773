// Package awsutil loads the shared AWS SDK configuration.
package awsutil

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// LoadConfig resolves the SDK config through the default chain; a
// non-empty region overrides whatever the chain found.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	region = strings.TrimSpace(region)
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}
