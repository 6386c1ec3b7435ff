package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sagarc03/sitehost"
)

// S3Config configures an S3 or S3-compatible bucket.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`     // Optional custom endpoint (MinIO, LocalStack)
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"` // Empty uses the default credential chain
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Prefix          string `mapstructure:"prefix"`
}

// S3Store keeps blobs in an S3 bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("new s3 store: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new s3 store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Store{client: client, bucket: cfg.Bucket, prefix: normalizePrefix(cfg.Prefix)}, nil
}

// Put buffers content to compute its digest, then uploads it. Without
// Overwrite the upload carries If-None-Match: * so S3 refuses an existing key.
func (s *S3Store) Put(ctx context.Context, key string, content io.Reader, opts sitehost.PutOptions) (sitehost.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return sitehost.SaveResult{}, err
	}

	objKey, err := objectKey(s.prefix, key)
	if err != nil {
		return sitehost.SaveResult{}, fmt.Errorf("s3 put: %w", err)
	}

	dr := newDigestReader(ctx, content)
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, dr); err != nil {
		return sitehost.SaveResult{}, fmt.Errorf("s3 put %s: read content: %w", key, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objKey),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String("application/octet-stream"),
	}
	if !opts.Overwrite {
		input.IfNoneMatch = aws.String("*")
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		if httpStatus(err) == http.StatusPreconditionFailed {
			return sitehost.SaveResult{}, fmt.Errorf("s3 put %s: %w", key, sitehost.ErrBlobExists)
		}
		return sitehost.SaveResult{}, fmt.Errorf("s3 put %s: %w", key, err)
	}

	return dr.result(), nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objKey, err := objectKey(s.prefix, key)
	if err != nil {
		return nil, fmt.Errorf("s3 get: %w", err)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, sitehost.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}

	return out.Body, nil
}

// Delete checks the key exists first; S3 itself reports success for
// missing keys.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	objKey, err := objectKey(s.prefix, key)
	if err != nil {
		return fmt.Errorf("s3 delete: %w", err)
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return sitehost.ErrNotFound
		}
		return fmt.Errorf("s3 delete %s: head: %w", key, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	}); err != nil {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}

	return nil
}

// DeleteVersion removes key only if its ETag and Last-Modified still match
// the listed version. The delete carries If-Match, so S3 itself refuses it
// when different content landed after the check.
func (s *S3Store) DeleteVersion(ctx context.Context, key, version string) error {
	objKey, err := objectKey(s.prefix, key)
	if err != nil {
		return fmt.Errorf("s3 delete: %w", err)
	}

	etag, modified, ok := parseS3Version(version)
	if !ok {
		return fmt.Errorf("s3 delete %s: %w: malformed version %q", key, sitehost.ErrInvalidInput, version)
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return sitehost.ErrNotFound
		}
		return fmt.Errorf("s3 delete %s: head: %w", key, err)
	}
	if s3Version(head.ETag, head.LastModified) != s3Version(&etag, &modified) {
		return fmt.Errorf("s3 delete %s: %w", key, sitehost.ErrBlobChanged)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket:  aws.String(s.bucket),
		Key:     aws.String(objKey),
		IfMatch: aws.String(etag),
	}); err != nil {
		switch {
		case httpStatus(err) == http.StatusPreconditionFailed:
			return fmt.Errorf("s3 delete %s: %w", key, sitehost.ErrBlobChanged)
		case isS3NotFound(err):
			return sitehost.ErrNotFound
		}
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}

	return nil
}

func (s *S3Store) List(ctx context.Context) ([]sitehost.BlobEntry, error) {
	entries := []sitehost.BlobEntry{}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list: %w", err)
		}

		for _, obj := range page.Contents {
			entry := sitehost.BlobEntry{Key: strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)}
			entry.Size = aws.ToInt64(obj.Size)
			if obj.LastModified != nil {
				entry.ModTime = *obj.LastModified
			}
			entry.Version = s3Version(obj.ETag, obj.LastModified)
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// Close is a no-op; the S3 client holds no resources.
func (s *S3Store) Close() error {
	return nil
}

// s3Version joins an ETag with its Last-Modified second. Listings report
// milliseconds but HEAD only whole seconds, so both are truncated.
func s3Version(etag *string, modified *time.Time) string {
	var sec int64
	if modified != nil {
		sec = modified.Unix()
	}
	return aws.ToString(etag) + "@" + strconv.FormatInt(sec, 10)
}

func parseS3Version(version string) (string, time.Time, bool) {
	i := strings.LastIndex(version, "@")
	if i <= 0 {
		return "", time.Time{}, false
	}
	sec, err := strconv.ParseInt(version[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return version[:i], time.Unix(sec, 0), true
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	return httpStatus(err) == http.StatusNotFound
}

func httpStatus(err error) int {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}
