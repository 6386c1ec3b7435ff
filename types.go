package sitehost

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ContentKind is the stored format of a site, taken from the upload's extension.
type ContentKind string

const (
	KindHTML ContentKind = "html"
	KindZIP  ContentKind = "zip"
)

func (k ContentKind) IsValid() bool {
	switch k {
	case KindHTML, KindZIP:
		return true
	default:
		return false
	}
}

func ParseContentKind(s string) (ContentKind, error) {
	kind := ContentKind(s)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid content kind: %s (valid kinds: html, zip)", s)
	}
	return kind, nil
}

// Extension returns the file extension used in storage keys, without the dot.
func (k ContentKind) Extension() string {
	return string(k)
}

type Site struct {
	ID         uuid.UUID   `json:"id"`
	Identifier string      `json:"identifier"`
	OwnerID    uuid.UUID   `json:"owner_id"`
	Kind       ContentKind `json:"content_kind"`
	StorageKey string      `json:"storage_key"`
	URL        string      `json:"url"`
	SizeBytes  int64       `json:"size_bytes"`
	ETag       string      `json:"etag"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// SiteEntry is the registry write model produced by a publish.
type SiteEntry struct {
	Identifier string
	OwnerID    uuid.UUID
	Kind       ContentKind
	StorageKey string
	URL        string
	SizeBytes  int64
	ETag       string
}

type ListQuery struct {
	// Prefix filters by identifier prefix. Empty matches all sites.
	Prefix string
	Limit  int
	Cursor string
}

type ListResult struct {
	Items      []Site `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

type SaveResult struct {
	BytesWritten int64
	Etag         string
}

type PutOptions struct {
	// Overwrite replaces an existing blob. When false, Put fails with
	// ErrBlobExists if the key is taken.
	Overwrite bool
}

type BlobEntry struct {
	Key     string
	Size    int64
	ModTime time.Time
	// Version identifies this particular write of Key. It changes every
	// time the key is written again and is passed back to DeleteVersion.
	Version string
}

type Role string

const (
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleAdmin
}

// Principal is an authenticated actor. The zero value is anonymous.
type Principal struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username,omitempty"`
	Roles    []Role    `json:"roles,omitempty"`
}

func (p Principal) IsAuthenticated() bool {
	return p.ID != uuid.Nil
}

func (p Principal) HasRole(r Role) bool {
	return slices.Contains(p.Roles, r)
}

type User struct {
	ID           uuid.UUID
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

func (u User) Principal() Principal {
	return Principal{ID: u.ID, Email: u.Email, Username: u.Username}
}

// NewAccount carries the fields needed to create a user through an IdentityProvider.
type NewAccount struct {
	Email    string
	Password string
	Username string
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Principal Principal `json:"principal"`
}

// Outcome classifies the result of resolving an identifier.
type Outcome int

const (
	OutcomeRendered Outcome = iota
	OutcomeNotFound
	OutcomeRetrievalError
	OutcomeUnsupported
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRendered:
		return "rendered"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeRetrievalError:
		return "retrieval_error"
	case OutcomeUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Tables holds configurable table names for registry and account storage.
type Tables struct {
	Sites string `mapstructure:"sites"`
	Users string `mapstructure:"users"`
	Roles string `mapstructure:"roles"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set, valid and distinct.
func (t Tables) Validate() error {
	names := []struct {
		label string
		value string
	}{
		{"sites", t.Sites},
		{"users", t.Users},
		{"roles", t.Roles},
	}

	seen := make(map[string]string, len(names))
	for _, n := range names {
		if n.value == "" {
			return fmt.Errorf("validate tables: %s table name cannot be empty", n.label)
		}
		if !IsValidTableName(n.value) {
			return fmt.Errorf("validate tables: invalid %s table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", n.label, n.value)
		}
		if other, ok := seen[n.value]; ok {
			return fmt.Errorf("validate tables: %s and %s share table name %s", other, n.label, n.value)
		}
		seen[n.value] = n.label
	}

	return nil
}

// DefaultTables returns the table names used when none are configured.
func DefaultTables() Tables {
	return Tables{Sites: "sites", Users: "users", Roles: "user_roles"}
}

