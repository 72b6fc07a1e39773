package cli

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rangezip/rangezip"
)

// presignExpiry leaves room for long extraction batches; each command
// resolves its target once so the clock starts before the first request.
const presignExpiry = 15 * time.Minute

// configLoader collects AWS config options; commands embed it so callers
// can customise credential resolution before Execute runs.
type configLoader struct {
	optFns []func(*config.LoadOptions) error
}

func (c *configLoader) AddOption(optFn func(*config.LoadOptions) error) {
	c.optFns = append(c.optFns, optFn)
}

func (c *configLoader) loadDefaultConfig(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx, append(c.optFns, optFns...)...)
}

// resolveTarget returns an HTTP URL for the target. s3://bucket/key targets
// become presigned GetObject URLs so the archive's ranged GETs need no
// further signing; anything else passes through untouched.
func (c *configLoader) resolveTarget(ctx context.Context, target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse target %q error: %w", target, err)
	}
	if u.Scheme != "s3" {
		return target, nil
	}

	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", fmt.Errorf(`target %q must look like "s3://bucket/key"`, target)
	}

	bc := forBucket(bucket)
	var loadOpts []func(*config.LoadOptions) error
	if bc.AWSProfile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(bc.AWSProfile))
	}

	cfg, err := c.loadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return "", fmt.Errorf("load default config error: %w", err)
	}

	presigned, err := s3.NewPresignClient(s3.NewFromConfig(cfg)).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:              aws.String(bucket),
		Key:                 aws.String(key),
		ExpectedBucketOwner: bc.ExpectedBucketOwner,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign s3://%s/%s error: %w", bucket, key, err)
	}

	return presigned.URL, nil
}

// openArchive resolves the target and opens it as a remote archive.
func (c *configLoader) openArchive(ctx context.Context, target string, optFns ...func(*rangezip.Options)) (*rangezip.Archive, error) {
	resolved, err := c.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	return rangezip.New(resolved, optFns...)
}
