// Package filesystem provides a local directory backend for site content.
// Writes land in a temp file first and appear under their key in a single
// rename or link, so readers never see a partial blob.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/sitehost"
)

const tmpPrefix = ".tmp-"

// Store keeps blobs as files under a sandboxed root directory.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
// The root provides sandboxed file operations preventing path traversal.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Open creates dir if needed and returns a Store rooted at it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("open filesystem store: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open filesystem store: %w", err)
	}
	return NewFileStorage(root), nil
}

// Close releases the root directory handle.
func (s *Store) Close() error {
	return s.root.Close()
}

// Get opens a blob for reading. Returns sitehost.ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !sitehost.IsValidKey(key) {
		return nil, fmt.Errorf("get %q: %w: invalid key", key, sitehost.ErrInvalidInput)
	}

	f, err := s.root.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, sitehost.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Put streams content to a temp file, then publishes it under key.
// With opts.Overwrite the temp file is renamed over any existing blob;
// without it the temp file is hard linked, which fails if key exists.
func (s *Store) Put(ctx context.Context, key string, content io.Reader, opts sitehost.PutOptions) (sitehost.SaveResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return sitehost.SaveResult{}, ctxErr
	}

	if !sitehost.IsValidKey(key) {
		return sitehost.SaveResult{}, fmt.Errorf("put %q: %w: invalid key", key, sitehost.ErrInvalidInput)
	}

	tmpFile := tmpFileName()
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return sitehost.SaveResult{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	renamed := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !renamed {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	size, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return sitehost.SaveResult{}, fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return sitehost.SaveResult{}, fmt.Errorf("could not sync written file: %w", err)
	}

	// Stamp the write with a full-resolution time; it feeds fileVersion.
	now := time.Now()
	if err := s.root.Chtimes(tmpFile, now, now); err != nil {
		return sitehost.SaveResult{}, fmt.Errorf("could not stamp written file: %w", err)
	}

	if destDir := path.Dir(key); destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return sitehost.SaveResult{}, fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	if opts.Overwrite {
		if err := s.root.Rename(tmpFile, key); err != nil {
			return sitehost.SaveResult{}, fmt.Errorf("failed to rename file: %w", err)
		}
		renamed = true
	} else if err := s.root.Link(tmpFile, key); err != nil {
		if errors.Is(err, os.ErrExist) {
			return sitehost.SaveResult{}, fmt.Errorf("put %s: %w", key, sitehost.ErrBlobExists)
		}
		return sitehost.SaveResult{}, fmt.Errorf("failed to link file: %w", err)
	}

	return sitehost.SaveResult{BytesWritten: size, Etag: hex.EncodeToString(h.Sum(nil))}, nil
}

// Delete removes a blob. Returns sitehost.ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !sitehost.IsValidKey(key) {
		return fmt.Errorf("delete %q: %w: invalid key", key, sitehost.ErrInvalidInput)
	}

	if err := s.root.Remove(key); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sitehost.ErrNotFound
		}
		return fmt.Errorf("could not delete file: %w", err)
	}
	return nil
}

// DeleteVersion removes key only if it still holds the write List reported.
// The blob is first renamed aside so a concurrent Put cannot be lost between
// the check and the removal. A mismatching blob is linked back under key
// unless a newer Put has already taken its place.
func (s *Store) DeleteVersion(ctx context.Context, key, version string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !sitehost.IsValidKey(key) {
		return fmt.Errorf("delete %q: %w: invalid key", key, sitehost.ErrInvalidInput)
	}

	aside := tmpFileName()
	if err := s.root.Rename(key, aside); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sitehost.ErrNotFound
		}
		return fmt.Errorf("could not move file aside: %w", err)
	}

	info, err := s.root.Stat(aside)
	if err != nil {
		return fmt.Errorf("stat %s: %w", key, err)
	}

	if fileVersion(info) == version {
		if err := s.root.Remove(aside); err != nil {
			return fmt.Errorf("could not delete file: %w", err)
		}
		return nil
	}

	if err := s.root.Link(aside, key); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("could not restore %s from %s: %w", key, aside, err)
	}
	if err := s.root.Remove(aside); err != nil {
		slog.Warn("failed to remove set-aside file", "file", aside, "err", err)
	}
	return fmt.Errorf("delete %s: %w", key, sitehost.ErrBlobChanged)
}

// List recursively walks the root and returns every blob with its size and
// modification time. In-flight temp files are skipped.
func (s *Store) List(ctx context.Context) ([]sitehost.BlobEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := []sitehost.BlobEntry{}

	err := fs.WalkDir(s.root.FS(), ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tmpPrefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}

		entries = append(entries, sitehost.BlobEntry{
			Key:     p,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Version: fileVersion(info),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return entries, nil
}

// fileVersion changes whenever Put replaces the file, since every Put
// publishes a freshly written temp file.
func fileVersion(info fs.FileInfo) string {
	return strconv.FormatInt(info.ModTime().UnixNano(), 36) + "-" + strconv.FormatInt(info.Size(), 36)
}

func tmpFileName() string {
	return tmpPrefix + uuid.New().String()
}
