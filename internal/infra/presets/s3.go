package presets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/dealroom/api/pkg/domain/permission"
)

const (
	s3Scheme = "s3"
	// maxPresetFileSize bounds what is read from a remote object.
	maxPresetFileSize = 1 << 20
)

// S3Config configures access to preset files stored in S3 or an S3
// compatible store. Empty credentials use the default AWS chain.
type S3Config struct {
	Region    string
	Endpoint  string // e.g. a MinIO URL; enables path-style addressing
	AccessKey string
	SecretKey string
	// RoleARN is assumed through STS when set.
	RoleARN    string
	ExternalID string
}

// ObjectGetter is the part of the S3 client used to read preset files.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// NewS3Client creates an S3 client from cfg.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if cfg.RoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(awsCfg), cfg.RoleARN,
			func(o *stscreds.AssumeRoleOptions) {
				if cfg.ExternalID != "" {
					o.ExternalID = aws.String(cfg.ExternalID)
				}
			})
		awsCfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// IsS3Location reports whether location is an s3://bucket/key URL.
func IsS3Location(location string) bool {
	return strings.HasPrefix(location, s3Scheme+"://")
}

// LoadS3 reads and validates the preset file at an s3://bucket/key location.
func LoadS3(ctx context.Context, client ObjectGetter, location string) (*Tables, error) {
	bucket, key, err := parseS3Location(location)
	if err != nil {
		return nil, err
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get preset object %s: %w", location, err)
	}
	defer out.Body.Close()

	tables, err := Parse(io.LimitReader(out.Body, maxPresetFileSize))
	if err != nil {
		return nil, fmt.Errorf("preset file %s: %w", location, err)
	}
	return tables, nil
}

// LoadResolver builds a resolver from location: empty for the built-in
// tables, an s3:// URL, or a local path.
func LoadResolver(ctx context.Context, location string, cfg S3Config) (*permission.Resolver, error) {
	if !IsS3Location(location) {
		return Resolver(location)
	}

	client, err := NewS3Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tables, err := LoadS3(ctx, client, location)
	if err != nil {
		return nil, err
	}
	return permission.NewResolver(tables.Catalog, tables.Presets)
}

func parseS3Location(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("invalid preset location %q: %w", location, err)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Scheme != s3Scheme || u.Host == "" || key == "" {
		return "", "", errors.New("preset location must look like s3://bucket/key, got " + location)
	}
	return u.Host, key, nil
}
