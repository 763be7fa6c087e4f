package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/rs/zerolog/log"

	"svmmapper/internal/config"
	fileutil "svmmapper/internal/file"
)

// S3API is the subset of the S3 client used by S3Gateway.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Gateway maps containers onto S3 buckets.
type S3Gateway struct {
	client  S3API
	buckets map[Container]string
}

func NewS3Gateway(client S3API, sourceBucket, sinkBucket string) *S3Gateway {
	return &S3Gateway{
		client:  client,
		buckets: map[Container]string{Source: sourceBucket, Sink: sinkBucket},
	}
}

// NewS3Client builds an S3 client from config. Static keys from the
// credentials file take precedence over the default provider chain.
func NewS3Client(ctx context.Context, cfg config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}

	creds, err := config.LoadCredentials(cfg.CredentialsFile)
	switch {
	case err == nil:
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		))
		log.Debug().Str("file", cfg.CredentialsFile).Msg("using static credentials")
	case errors.Is(err, config.ErrNoCredentials):
		log.Debug().Msg("credentials file not found, using default provider chain")
	default:
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

func (g *S3Gateway) bucket(c Container) (string, error) {
	b, ok := g.buckets[c]
	if !ok || b == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownContainer, c)
	}
	return b, nil
}

func (g *S3Gateway) Exists(ctx context.Context, c Container, key string) (bool, error) {
	bucket, err := g.bucket(c)
	if err != nil {
		return false, err
	}
	_, err = g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head s3://%s/%s: %w", bucket, key, err)
}

func (g *S3Gateway) Fetch(ctx context.Context, c Container, key, destPath string) error {
	bucket, err := g.bucket(c)
	if err != nil {
		return err
	}
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("get s3://%s/%s: %w", bucket, key, ErrNotFound)
		}
		return fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	if err := fileutil.CopyAtomic(destPath, out.Body); err != nil {
		return fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func (g *S3Gateway) Put(ctx context.Context, c Container, key, srcPath string) error {
	bucket, err := g.bucket(c)
	if err != nil {
		return err
	}
	f, err := os.Open(srcPath) //nolint:gosec // path is built by the pipeline
	if err != nil {
		return fmt.Errorf("open upload source: %w", err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat upload source: %w", err)
	}

	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// isNotFound recognises both modelled S3 errors and bare 404 responses,
// which is what HeadObject returns since it has no body to carry a code.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var respErr *smithyhttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
