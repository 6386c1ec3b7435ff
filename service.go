package sitehost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// SiteRegistry defines the interface for the authoritative mapping from
// public identifier to site record. Implementations must enforce identifier
// uniqueness at the storage layer so concurrent registrations of the same
// identifier by different owners cannot both succeed.
//
// All methods accept a context for cancellation and timeout control.
type SiteRegistry interface {
	// Register creates a site record or updates it in place when the
	// identifier is already held by the same owner.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - entry: SiteEntry with a normalized identifier, owner and storage key
	//
	// Returns:
	//   - Site: The created or updated record with ID and timestamps
	//   - bool: true if a new record was created, false if an existing one was updated
	//   - error: ErrDuplicateIdentifier if another owner holds the identifier,
	//     ErrInvalidInput for a non-normalized identifier, or other database errors
	//
	// The check and the write must happen in a single atomic statement.
	Register(ctx context.Context, entry SiteEntry) (Site, bool, error)

	// FindByIdentifier looks up a site by its public identifier.
	//
	// Returns:
	//   - Site: The record if found
	//   - error: ErrNotFound if no site holds the identifier, or other database errors
	FindByIdentifier(ctx context.Context, identifier string) (Site, error)

	// FindByID looks up a site by its record ID.
	//
	// Returns:
	//   - error: ErrNotFound if the record doesn't exist, or other database errors
	FindByID(ctx context.Context, id uuid.UUID) (Site, error)

	// ListByOwner returns one page of an owner's sites, newest first.
	ListByOwner(ctx context.Context, owner uuid.UUID, q ListQuery) (ListResult, error)

	// ListAll returns one page of every site, newest first.
	ListAll(ctx context.Context, q ListQuery) (ListResult, error)

	// ListStorageKeys returns the storage key of every registered site.
	ListStorageKeys(ctx context.Context) (map[string]struct{}, error)

	// Remove hard-deletes a site record.
	//
	// Returns:
	//   - error: ErrNotFound if the record doesn't exist, or other database errors
	Remove(ctx context.Context, id uuid.UUID) error
}

// ContentStore defines the interface for blob storage operations.
// Implementations can use local filesystem, S3, GCS, Azure or any other
// backend addressed by string keys.
//
// All methods accept a context for cancellation and timeout control.
type ContentStore interface {
	// Put writes content under key.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - key: The destination key, see IsValidKey
	//   - content: io.Reader providing the data to write
	//   - opts: PutOptions; Overwrite=false fails with ErrBlobExists on an existing key
	//
	// Returns:
	//   - SaveResult: Contains bytes written and computed ETag
	//   - error: ErrBlobExists, ErrInvalidInput for a bad key, or other storage errors
	//
	// Implementations should never leave a partially written blob visible
	// under key.
	Put(ctx context.Context, key string, content io.Reader, opts PutOptions) (SaveResult, error)

	// Get opens a blob for reading. The caller closes the returned reader.
	//
	// Returns:
	//   - error: ErrNotFound if the blob doesn't exist, or other storage errors
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a blob.
	//
	// Returns:
	//   - error: ErrNotFound if the blob doesn't exist, or other storage errors
	Delete(ctx context.Context, key string) error

	// DeleteVersion removes a blob only if it is still the write that List
	// reported as version. A blob rewritten since then is left in place.
	//
	// Returns:
	//   - error: ErrBlobChanged if the key holds a newer write, ErrNotFound
	//     if the blob doesn't exist, or other storage errors
	DeleteVersion(ctx context.Context, key, version string) error

	// List returns every blob with its size, modification time and version.
	// It returns an empty slice, not nil, when storage is empty.
	List(ctx context.Context) ([]BlobEntry, error)
}

// Recorder receives workflow events. The metrics package provides a
// Prometheus implementation.
type Recorder interface {
	PublishCompleted(kind ContentKind, created bool)
	PublishFailed(reason string)
	Resolved(outcome Outcome)
	SiteDeleted(blobRemoved bool)
	BlobsSwept(removed int)
}

type nopRecorder struct{}

func (nopRecorder) PublishCompleted(ContentKind, bool) {}
func (nopRecorder) PublishFailed(string)               {}
func (nopRecorder) Resolved(Outcome)                   {}
func (nopRecorder) SiteDeleted(bool)                   {}
func (nopRecorder) BlobsSwept(int)                     {}

type SiteService struct {
	registry       SiteRegistry
	store          ContentStore
	recorder       Recorder
	baseURL        string
	cleanupTimeout time.Duration
}

// ServiceConfig holds configuration options for SiteService.
type ServiceConfig struct {
	BaseURL        string        // Public origin used to build site URLs; empty yields relative URLs
	CleanupTimeout time.Duration // Timeout for best-effort blob cleanup (default: 30s)
	Recorder       Recorder      // Optional event sink
}

func NewSiteService(registry SiteRegistry, store ContentStore, cfg ServiceConfig) (*SiteService, error) {
	if registry == nil || store == nil {
		return nil, errors.New("new site service: registry and store are required")
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("new site service: invalid base url: %q", cfg.BaseURL)
		}
	}
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &SiteService{
		registry:       registry,
		store:          store,
		recorder:       recorder,
		baseURL:        cfg.BaseURL,
		cleanupTimeout: cleanupTimeout,
	}, nil
}

type PublishRequest struct {
	Identifier string
	Filename   string
	MimeType   string
	Content    io.Reader
}

// Publish stores an upload and claims its identifier for the principal.
//
// The method performs the following steps:
//  1. Rejects anonymous principals
//  2. Applies the html/zip allow-list to filename and MIME type
//  3. Normalizes the identifier and rejects it if empty or too long
//  4. Writes the blob under the owner-namespaced key with overwrite enabled
//  5. Registers the site record
//
// Nothing is written before steps 1-3 pass. If registration fails with
// ErrDuplicateIdentifier the blob from step 4 stays in place: it lives
// under the caller's namespace, is unreachable without a registry record,
// and is replaced on the next publish or removed by Sweep.
//
// Returns:
//   - Site: The registered record with its public URL
//   - bool: true if the identifier was newly claimed, false on republish
//   - error: ErrUnauthorized, ErrUnsupportedFileType, ErrInvalidInput,
//     ErrDuplicateIdentifier, or wrapped storage and registry errors
func (s *SiteService) Publish(ctx context.Context, p Principal, req PublishRequest) (Site, bool, error) {
	if err := ctx.Err(); err != nil {
		return Site{}, false, fmt.Errorf("publish: %w", err)
	}

	if err := Authorize(p, ""); err != nil {
		return Site{}, false, fmt.Errorf("publish: %w", err)
	}

	kind, err := ContentKindFromUpload(req.Filename, req.MimeType)
	if err != nil {
		s.recorder.PublishFailed("unsupported_type")
		return Site{}, false, fmt.Errorf("publish: %w", err)
	}

	identifier := NormalizeIdentifier(req.Identifier)
	if identifier == "" {
		s.recorder.PublishFailed("invalid_identifier")
		return Site{}, false, fmt.Errorf("publish: %w: site name cannot be empty", ErrInvalidInput)
	}
	if len(identifier) > MaxIdentifierLength {
		s.recorder.PublishFailed("invalid_identifier")
		return Site{}, false, fmt.Errorf("publish: %w: site name longer than %d characters", ErrInvalidInput, MaxIdentifierLength)
	}

	if req.Content == nil {
		return Site{}, false, fmt.Errorf("publish %s: %w: content cannot be empty", identifier, ErrInvalidInput)
	}

	key := StorageKey(p.ID, identifier, kind)

	saved, err := s.store.Put(ctx, key, req.Content, PutOptions{Overwrite: true})
	if err != nil {
		s.recorder.PublishFailed("storage")
		return Site{}, false, fmt.Errorf("publish %s: write failed: %w", identifier, err)
	}

	site, created, err := s.registry.Register(ctx, SiteEntry{
		Identifier: identifier,
		OwnerID:    p.ID,
		Kind:       kind,
		StorageKey: key,
		URL:        SiteURL(s.baseURL, identifier),
		SizeBytes:  saved.BytesWritten,
		ETag:       saved.Etag,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentifier) {
			slog.Info("publish: identifier held by another owner, blob left unreferenced",
				"identifier", identifier, "key", key, "owner", p.ID)
			s.recorder.PublishFailed("duplicate")
		} else {
			s.recorder.PublishFailed("registry")
		}
		return Site{}, false, fmt.Errorf("publish %s: register failed: %w", identifier, err)
	}

	s.recorder.PublishCompleted(kind, created)
	return site, created, nil
}

// Resolution is the terminal state of resolving an identifier. Exactly one
// Outcome is set; Content is only filled for OutcomeRendered.
type Resolution struct {
	Outcome Outcome
	Site    Site
	Content string
	Err     error
}

// Resolve looks up identifier and fetches its blob. It never fails: every
// error is classified into an Outcome.
func (s *SiteService) Resolve(ctx context.Context, identifier string) Resolution {
	res := s.resolve(ctx, identifier)
	s.recorder.Resolved(res.Outcome)
	return res
}

func (s *SiteService) resolve(ctx context.Context, identifier string) Resolution {
	if !IsValidIdentifier(identifier) {
		return Resolution{Outcome: OutcomeNotFound, Err: fmt.Errorf("resolve %q: %w", identifier, ErrNotFound)}
	}

	if err := ctx.Err(); err != nil {
		return Resolution{Outcome: OutcomeRetrievalError, Err: fmt.Errorf("resolve %s: %w", identifier, err)}
	}

	site, err := s.registry.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Resolution{Outcome: OutcomeNotFound, Err: fmt.Errorf("resolve %s: %w", identifier, err)}
		}
		return Resolution{Outcome: OutcomeRetrievalError, Err: fmt.Errorf("resolve %s: lookup failed: %w", identifier, err)}
	}

	rc, err := s.store.Get(ctx, site.StorageKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Warn("resolve: registered site has no blob",
				"identifier", identifier, "key", site.StorageKey, "site_id", site.ID)
		}
		return Resolution{Outcome: OutcomeRetrievalError, Site: site, Err: fmt.Errorf("resolve %s: fetch failed: %w", identifier, err)}
	}
	defer func() { _ = rc.Close() }()

	if site.Kind != KindHTML {
		return Resolution{Outcome: OutcomeUnsupported, Site: site, Err: fmt.Errorf("resolve %s: content kind %s: %w", identifier, site.Kind, ErrUnsupportedFileType)}
	}

	data, err := io.ReadAll(rc)
	if err != nil {
		return Resolution{Outcome: OutcomeRetrievalError, Site: site, Err: fmt.Errorf("resolve %s: read failed: %w", identifier, err)}
	}

	return Resolution{Outcome: OutcomeRendered, Site: site, Content: string(data)}
}

func (s *SiteService) ListByOwner(ctx context.Context, p Principal, q ListQuery) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list sites: %w", err)
	}

	if err := Authorize(p, ""); err != nil {
		return ListResult{}, fmt.Errorf("list sites: %w", err)
	}

	result, err := s.registry.ListByOwner(ctx, p.ID, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("list sites: %w", err)
	}

	return result, nil
}

// ListAll returns every site. Only administrators may call it; the role
// check runs before the registry is touched.
func (s *SiteService) ListAll(ctx context.Context, p Principal, q ListQuery) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list all sites: %w", err)
	}

	if err := Authorize(p, RoleAdmin); err != nil {
		return ListResult{}, fmt.Errorf("list all sites: %w", err)
	}

	result, err := s.registry.ListAll(ctx, q)
	if err != nil {
		return ListResult{}, fmt.Errorf("list all sites: %w", err)
	}

	return result, nil
}

type DeleteResult struct {
	Site        Site
	BlobRemoved bool
}

// Delete removes a site for its owner or an administrator.
//
// The registry record goes first, so the identifier stops resolving even
// when the blob cannot be removed. A failed blob delete is reported as a
// *BlobCleanupError in the log and as BlobRemoved=false in the result; it
// never fails the call. A blob that is already gone counts as removed.
func (s *SiteService) Delete(ctx context.Context, p Principal, id uuid.UUID) (DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return DeleteResult{}, fmt.Errorf("delete site: %w", err)
	}

	if err := Authorize(p, ""); err != nil {
		return DeleteResult{}, fmt.Errorf("delete site: %w", err)
	}

	site, err := s.registry.FindByID(ctx, id)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete site %s: %w", id, err)
	}

	if err := AuthorizeOwner(p, site.OwnerID); err != nil {
		return DeleteResult{}, fmt.Errorf("delete site %s: %w", site.Identifier, err)
	}

	return s.remove(ctx, site)
}

// RemoveByIdentifier deletes a site by its public identifier without a
// principal check. It serves operator tooling with direct database access.
func (s *SiteService) RemoveByIdentifier(ctx context.Context, identifier string) (DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return DeleteResult{}, fmt.Errorf("remove site: %w", err)
	}

	site, err := s.registry.FindByIdentifier(ctx, NormalizeIdentifier(identifier))
	if err != nil {
		return DeleteResult{}, fmt.Errorf("remove site %s: %w", identifier, err)
	}

	return s.remove(ctx, site)
}

func (s *SiteService) remove(ctx context.Context, site Site) (DeleteResult, error) {
	if err := s.registry.Remove(ctx, site.ID); err != nil {
		return DeleteResult{}, fmt.Errorf("delete site %s: %w", site.Identifier, err)
	}

	// Use a detached context so an aborted request still cleans up
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cleanupTimeout)
	defer cancel()

	result := DeleteResult{Site: site, BlobRemoved: true}
	if delErr := s.store.Delete(cleanupCtx, site.StorageKey); delErr != nil && !errors.Is(delErr, ErrNotFound) {
		cleanupErr := &BlobCleanupError{Key: site.StorageKey, Err: delErr}
		slog.Warn("delete site: blob cleanup failed", "identifier", site.Identifier, "error", cleanupErr)
		result.BlobRemoved = false
	}

	s.recorder.SiteDeleted(result.BlobRemoved)
	return result, nil
}

type SweepOptions struct {
	// GracePeriod protects blobs modified more recently than now-GracePeriod,
	// which may belong to a publish that has not registered yet.
	GracePeriod time.Duration
	DryRun      bool
}

type SweepResult struct {
	Scanned  int
	Orphaned []string
	Removed  int
}

// Sweep deletes blobs that no registry record points at and that are older
// than the grace period. With DryRun it only reports them.
//
// Registry keys are read both before and after the store is listed, and each
// orphan is removed with DeleteVersion. A publish that rewrites or registers
// a key while the sweep runs therefore keeps its blob. Orphaned lists only
// blobs that were actually removed, or would be on a dry run.
func (s *SiteService) Sweep(ctx context.Context, opts SweepOptions) (SweepResult, error) {
	if err := ctx.Err(); err != nil {
		return SweepResult{}, fmt.Errorf("sweep: %w", err)
	}

	if opts.GracePeriod < 0 {
		return SweepResult{}, fmt.Errorf("sweep: %w: grace period cannot be negative", ErrInvalidInput)
	}

	registered, err := s.registry.ListStorageKeys(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweep: %w", err)
	}

	blobs, err := s.store.List(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweep: %w", err)
	}

	cutoff := time.Now().Add(-opts.GracePeriod)
	result := SweepResult{Scanned: len(blobs), Orphaned: []string{}}

	candidates := make([]BlobEntry, 0)
	for _, blob := range blobs {
		if _, ok := registered[blob.Key]; ok {
			continue
		}
		if blob.ModTime.After(cutoff) {
			continue
		}
		candidates = append(candidates, blob)
	}
	if len(candidates) == 0 {
		s.recorder.BlobsSwept(0)
		return result, nil
	}

	// Keys registered while the store was being listed.
	registered, err = s.registry.ListStorageKeys(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("sweep: %w", err)
	}

	for _, blob := range candidates {
		if err := ctx.Err(); err != nil {
			s.recorder.BlobsSwept(result.Removed)
			return result, fmt.Errorf("sweep: %w", err)
		}

		if _, ok := registered[blob.Key]; ok {
			continue
		}

		if opts.DryRun {
			result.Orphaned = append(result.Orphaned, blob.Key)
			continue
		}

		deleteErr := s.store.DeleteVersion(ctx, blob.Key, blob.Version)
		if errors.Is(deleteErr, ErrBlobChanged) || errors.Is(deleteErr, ErrNotFound) {
			slog.Debug("sweep: blob rewritten or removed since listing, kept", "key", blob.Key)
			continue
		}
		if deleteErr != nil {
			s.recorder.BlobsSwept(result.Removed)
			return result, fmt.Errorf("sweep '%s': %w", blob.Key, deleteErr)
		}
		result.Orphaned = append(result.Orphaned, blob.Key)
		result.Removed++
	}

	s.recorder.BlobsSwept(result.Removed)
	return result, nil
}
