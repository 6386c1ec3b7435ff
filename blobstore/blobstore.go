// Package blobstore opens the content store selected by configuration:
// a local directory, Amazon S3 (or an S3-compatible service), Google
// Cloud Storage or Azure Blob Storage.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/sagarc03/sitehost"
	"github.com/sagarc03/sitehost/filesystem"
)

// Backend names accepted by Config.Backend.
const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
	BackendGCS        = "gcs"
	BackendAzure      = "azure"
)

// Config selects and configures a content store backend.
type Config struct {
	Backend string      `mapstructure:"backend"`
	Path    string      `mapstructure:"path"`
	S3      S3Config    `mapstructure:"s3"`
	GCS     GCSConfig   `mapstructure:"gcs"`
	Azure   AzureConfig `mapstructure:"azure"`
}

// Store is a ContentStore that holds resources until closed.
type Store interface {
	sitehost.ContentStore
	io.Closer
}

// Open returns the store named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Backend {
	case BackendFilesystem, "":
		if cfg.Path == "" {
			return nil, errors.New("open blobstore: storage path is required for the filesystem backend")
		}
		store, err = openFilesystem(cfg.Path)
	case BackendS3:
		store, err = openS3(ctx, cfg.S3)
	case BackendGCS:
		store, err = openGCS(ctx, cfg.GCS)
	case BackendAzure:
		store, err = openAzure(cfg.Azure)
	default:
		return nil, fmt.Errorf("open blobstore: unsupported storage backend: %s", cfg.Backend)
	}

	if err != nil {
		return nil, fmt.Errorf("open blobstore: %w", err)
	}
	return store, nil
}

func openFilesystem(path string) (Store, error) {
	s, err := filesystem.Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openS3(ctx context.Context, cfg S3Config) (Store, error) {
	s, err := NewS3Store(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openGCS(ctx context.Context, cfg GCSConfig) (Store, error) {
	s, err := NewGCSStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openAzure(cfg AzureConfig) (Store, error) {
	s, err := NewAzureStore(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// normalizePrefix returns "" or a prefix ending in exactly one slash.
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// objectKey validates key and applies the configured prefix.
func objectKey(prefix, key string) (string, error) {
	if !sitehost.IsValidKey(key) {
		return "", fmt.Errorf("%w: invalid key %q", sitehost.ErrInvalidInput, key)
	}
	return prefix + key, nil
}

// digestReader counts and hashes what passes through it.
type digestReader struct {
	r    io.Reader
	h    hash.Hash
	size int64
}

func newDigestReader(ctx context.Context, r io.Reader) *digestReader {
	return &digestReader{r: &ctxReader{ctx: ctx, r: r}, h: sha256.New()}
}

func (d *digestReader) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if n > 0 {
		d.h.Write(p[:n])
		d.size += int64(n)
	}
	return n, err
}

func (d *digestReader) result() sitehost.SaveResult {
	return sitehost.SaveResult{BytesWritten: d.size, Etag: hex.EncodeToString(d.h.Sum(nil))}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
