// Package s3 implements the provider boundary against S3-compatible
// object stores using the AWS SDK.
package s3

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Options holds S3 connection settings.
type Options struct {
	Bucket    string // empty enables multi-bucket mode
	Region    string
	Endpoint  string // custom endpoint (MinIO etc.); empty uses AWS
	Profile   string
	AccessKey string
	SecretKey string
	Unsigned  bool // anonymous access for public buckets
}

func newClient(ctx context.Context, opts Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}

	switch {
	case opts.Unsigned:
		loadOpts = append(loadOpts,
			awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
	case opts.AccessKey != "" && opts.SecretKey != "":
		loadOpts = append(loadOpts,
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	case opts.Profile != "":
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}

	if opts.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: true,
				}, nil
			},
		)
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style keeps custom endpoints (MinIO) working.
		o.UsePathStyle = opts.Endpoint != ""
	})
	return client, nil
}
