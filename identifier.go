package sitehost

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxIdentifierLength bounds identifiers so they fit a single DNS label and URL segment.
const MaxIdentifierLength = 63

// NormalizeIdentifier lower-cases s and drops every character outside [a-z0-9-].
func NormalizeIdentifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsValidIdentifier reports whether s is non-empty, already normalized and
// at most MaxIdentifierLength characters long.
func IsValidIdentifier(s string) bool {
	if s == "" || len(s) > MaxIdentifierLength {
		return false
	}
	return NormalizeIdentifier(s) == s
}

// StorageKey returns the owner-namespaced blob key for a site.
func StorageKey(owner uuid.UUID, identifier string, kind ContentKind) string {
	return owner.String() + "/" + identifier + "." + kind.Extension()
}

// SiteURL returns the canonical public URL of a site.
func SiteURL(baseURL, identifier string) string {
	return strings.TrimRight(baseURL, "/") + "/site/" + identifier
}

var acceptedMimeTypes = map[string]ContentKind{
	"text/html":                    KindHTML,
	"application/xhtml+xml":        KindHTML,
	"application/zip":              KindZIP,
	"application/x-zip":            KindZIP,
	"application/x-zip-compressed": KindZIP,
}

// ContentKindFromUpload applies the upload allow-list. An allow-listed
// filename extension decides the kind whatever MIME type the client
// declared, since browsers report archives and markup inconsistently. Only
// a filename without an extension falls back to the declared MIME type.
func ContentKindFromUpload(filename, mimeType string) (ContentKind, error) {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
	if ext != "" {
		kind := ContentKind(ext)
		if !kind.IsValid() {
			return "", fmt.Errorf("content kind %q: %w", filename, ErrUnsupportedFileType)
		}
		return kind, nil
	}

	if mimeType == "" {
		return "", fmt.Errorf("content kind %q: %w", filename, ErrUnsupportedFileType)
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "", fmt.Errorf("content kind %q: %w", mimeType, ErrUnsupportedFileType)
	}
	kind, ok := acceptedMimeTypes[mediaType]
	if !ok {
		return "", fmt.Errorf("content kind %q: %w", mediaType, ErrUnsupportedFileType)
	}

	return kind, nil
}

// IsValidKey validates that a key string meets the requirements for a storage key.
// It checks that the key:
//   - is not empty, ".", or "/"
//   - is relative (does not start with "/")
//   - does not end with "/"
//   - does not contain ".." (path traversal)
//   - does not contain "//" (empty segments)
//   - does not contain invalid characters: \ ? # ~
//   - is valid UTF-8
//   - does not contain "." segments (/., /./, or ending with /.)
//   - does not contain null bytes, control characters (< 0x20), DEL (0x7f), or whitespace
func IsValidKey(k string) bool {
	if k == "" || k == "/" || k == "." {
		return false
	}

	if k[0] == '/' {
		return false
	}

	if strings.HasSuffix(k, "/") {
		return false
	}

	if strings.Contains(k, "..") {
		return false
	}

	if strings.Contains(k, "//") {
		return false
	}

	if strings.ContainsAny(k, `\?#~`) {
		return false
	}

	if !utf8.ValidString(k) {
		return false
	}

	if strings.HasPrefix(k, "./") || strings.Contains(k, "/./") || strings.HasSuffix(k, "/.") {
		return false
	}

	for _, r := range k {
		if r == 0 || r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}
