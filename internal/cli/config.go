package cli

import (
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-ini/ini"
)

// cfgFile holds ~/.rangezip/config.ini, empty when the file does not exist.
var cfgFile *ini.File

func init() {
	dir, err := os.UserHomeDir()
	if err != nil {
		log.Printf("get user home dir error: %v", err)
		cfgFile = ini.Empty()
		return
	}

	cfgFile, err = ini.Load(filepath.Join(dir, ".rangezip", "config.ini"))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("load config error: %v", err)
		}
		cfgFile = ini.Empty()
	}
}

// BucketConfig contains settings for a specific bucket, kept in a section
// named after the bucket URI:
//
//	[s3://my-bucket]
//	aws-profile = media
//	expected-bucket-owner = 123456789012
type BucketConfig struct {
	Bucket              string
	AWSProfile          string
	ExpectedBucketOwner *string
}

// forBucket returns the settings for a specific bucket.
func forBucket(bucket string) (c BucketConfig) {
	sec, err := cfgFile.GetSection("s3://" + bucket)
	if err != nil {
		return c
	}

	c.Bucket = bucket
	c.AWSProfile = sec.Key("aws-profile").Value()
	if v := sec.Key("expected-bucket-owner").Value(); v != "" {
		c.ExpectedBucketOwner = aws.String(v)
	}

	return c
}
