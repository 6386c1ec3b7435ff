package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/sagarc03/sitehost"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSConfig configures a Google Cloud Storage bucket.
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file"` // Empty uses application default credentials
	Endpoint        string `mapstructure:"endpoint"`
	Prefix          string `mapstructure:"prefix"`
}

// GCSStore keeps blobs in a GCS bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("new gcs store: bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new gcs store: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		prefix: normalizePrefix(cfg.Prefix),
	}, nil
}

// Put streams content to the object. Without Overwrite the write is
// conditioned on the object not existing.
func (s *GCSStore) Put(ctx context.Context, key string, content io.Reader, opts sitehost.PutOptions) (sitehost.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return sitehost.SaveResult{}, err
	}

	objKey, err := objectKey(s.prefix, key)
	if err != nil {
		return sitehost.SaveResult{}, fmt.Errorf("gcs put: %w", err)
	}

	obj := s.bucket.Object(objKey)
	if !opts.Overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := obj.NewWriter(writeCtx)
	w.ContentType = "application/octet-stream"

	dr := newDigestReader(ctx, content)
	if _, err := io.Copy(w, dr); err != nil {
		// Cancelling before Close aborts the upload.
		cancel()
		_ = w.Close()
		return sitehost.SaveResult{}, fmt.Errorf("gcs put %s: %w", key, err)
	}

	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return sitehost.SaveResult{}, fmt.Errorf("gcs put %s: %w", key, sitehost.ErrBlobExists)
		}
		return sitehost.SaveResult{}, fmt.Errorf("gcs put %s: %w", key, err)
	}

	return dr.result(), nil
}

func (s *GCSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objKey, err := objectKey(s.prefix, key)
	if err != nil {
		return nil, fmt.Errorf("gcs get: %w", err)
	}

	r, err := s.bucket.Object(objKey).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, sitehost.ErrNotFound
		}
		return nil, fmt.Errorf("gcs get %s: %w", key, err)
	}

	return r, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	objKey, err := objectKey(s.prefix, key)
	if err != nil {
		return fmt.Errorf("gcs delete: %w", err)
	}

	if err := s.bucket.Object(objKey).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return sitehost.ErrNotFound
		}
		return fmt.Errorf("gcs delete %s: %w", key, err)
	}

	return nil
}

// DeleteVersion removes key only while it is still at the listed
// generation; GCS gives every write a new one.
func (s *GCSStore) DeleteVersion(ctx context.Context, key, version string) error {
	objKey, err := objectKey(s.prefix, key)
	if err != nil {
		return fmt.Errorf("gcs delete: %w", err)
	}

	gen, err := strconv.ParseInt(version, 10, 64)
	if err != nil || gen <= 0 {
		return fmt.Errorf("gcs delete %s: %w: malformed version %q", key, sitehost.ErrInvalidInput, version)
	}

	obj := s.bucket.Object(objKey).If(storage.Conditions{GenerationMatch: gen})
	if err := obj.Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return sitehost.ErrNotFound
		}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return fmt.Errorf("gcs delete %s: %w", key, sitehost.ErrBlobChanged)
		}
		return fmt.Errorf("gcs delete %s: %w", key, err)
	}

	return nil
}

func (s *GCSStore) List(ctx context.Context) ([]sitehost.BlobEntry, error) {
	entries := []sitehost.BlobEntry{}

	it := s.bucket.Objects(ctx, &storage.Query{Prefix: s.prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list: %w", err)
		}

		entries = append(entries, sitehost.BlobEntry{
			Key:     strings.TrimPrefix(attrs.Name, s.prefix),
			Size:    attrs.Size,
			ModTime: attrs.Updated,
			Version: strconv.FormatInt(attrs.Generation, 10),
		})
	}

	return entries, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
