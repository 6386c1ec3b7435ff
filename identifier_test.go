package sitehost_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sagarc03/sitehost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already normalized", input: "my-site", want: "my-site"},
		{name: "uppercase is lowered", input: "My-Site", want: "my-site"},
		{name: "spaces are dropped", input: "my site", want: "mysite"},
		{name: "underscores are dropped", input: "my_site", want: "mysite"},
		{name: "dots and slashes are dropped", input: "../etc/passwd", want: "etcpasswd"},
		{name: "digits are kept", input: "Site2024", want: "site2024"},
		{name: "non ascii letters are dropped", input: "موقعي", want: ""},
		{name: "mixed script keeps ascii", input: "café-2", want: "caf-2"},
		{name: "empty stays empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sitehost.NormalizeIdentifier(tt.input))
		})
	}
}

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{name: "simple", input: "portfolio", valid: true},
		{name: "with dashes and digits", input: "my-site-2", valid: true},
		{name: "max length", input: strings.Repeat("a", sitehost.MaxIdentifierLength), valid: true},
		{name: "empty", input: "", valid: false},
		{name: "too long", input: strings.Repeat("a", sitehost.MaxIdentifierLength+1), valid: false},
		{name: "uppercase", input: "Portfolio", valid: false},
		{name: "underscore", input: "my_site", valid: false},
		{name: "slash", input: "a/b", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, sitehost.IsValidIdentifier(tt.input))
		})
	}
}

func TestStorageKey(t *testing.T) {
	owner := uuid.MustParse("6f1c2d3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f")

	assert.Equal(t, "6f1c2d3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f/portfolio.html",
		sitehost.StorageKey(owner, "portfolio", sitehost.KindHTML))
	assert.Equal(t, "6f1c2d3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f/portfolio.zip",
		sitehost.StorageKey(owner, "portfolio", sitehost.KindZIP))
	assert.True(t, sitehost.IsValidKey(sitehost.StorageKey(owner, "portfolio", sitehost.KindHTML)))
}

func TestSiteURL(t *testing.T) {
	assert.Equal(t, "https://sites.example.com/site/portfolio", sitehost.SiteURL("https://sites.example.com", "portfolio"))
	assert.Equal(t, "https://sites.example.com/site/portfolio", sitehost.SiteURL("https://sites.example.com/", "portfolio"))
	assert.Equal(t, "/site/portfolio", sitehost.SiteURL("", "portfolio"))
}

func TestContentKindFromUpload(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		mimeType string
		want     sitehost.ContentKind
		wantErr  bool
	}{
		{name: "html with html mime", filename: "index.html", mimeType: "text/html", want: sitehost.KindHTML},
		{name: "html with charset param", filename: "index.html", mimeType: "text/html; charset=utf-8", want: sitehost.KindHTML},
		{name: "uppercase extension", filename: "INDEX.HTML", mimeType: "", want: sitehost.KindHTML},
		{name: "zip with zip mime", filename: "site.zip", mimeType: "application/zip", want: sitehost.KindZIP},
		{name: "zip with windows mime", filename: "site.zip", mimeType: "application/x-zip-compressed", want: sitehost.KindZIP},
		{name: "generic mime trusts extension", filename: "site.zip", mimeType: "application/octet-stream", want: sitehost.KindZIP},
		{name: "no extension falls back to mime", filename: "upload", mimeType: "text/html", want: sitehost.KindHTML},
		{name: "no extension and no mime", filename: "upload", mimeType: "", wantErr: true},
		{name: "pdf rejected", filename: "doc.pdf", mimeType: "application/pdf", wantErr: true},
		{name: "htm extension rejected", filename: "index.htm", mimeType: "", wantErr: true},
		{name: "exe disguised as html mime", filename: "run.exe", mimeType: "text/html", wantErr: true},
		{name: "extension wins over x-zip mime", filename: "site.zip", mimeType: "application/x-zip", want: sitehost.KindZIP},
		{name: "extension wins over xhtml mime", filename: "index.html", mimeType: "application/xhtml+xml", want: sitehost.KindHTML},
		{name: "extension wins over unrelated mime", filename: "site.zip", mimeType: "multipart/x-zip", want: sitehost.KindZIP},
		{name: "extension wins over disagreeing mime", filename: "index.html", mimeType: "application/zip", want: sitehost.KindHTML},
		{name: "extension wins over malformed mime", filename: "index.html", mimeType: "text/", want: sitehost.KindHTML},
		{name: "no extension with x-zip mime", filename: "upload", mimeType: "application/x-zip", want: sitehost.KindZIP},
		{name: "no extension with generic mime", filename: "upload", mimeType: "application/octet-stream", wantErr: true},
		{name: "no extension with malformed mime", filename: "upload", mimeType: "text/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sitehost.ContentKindFromUpload(tt.filename, tt.mimeType)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, sitehost.ErrUnsupportedFileType)
				assert.ErrorIs(t, err, sitehost.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsValidKey(t *testing.T) {
	// Create a key with invalid UTF-8 (without embedding raw invalid bytes in source)
	invalidUTF8 := string([]byte{'a', 0xff, 'b'})

	tt := []struct {
		Name string
		Key  string
		Want bool
	}{
		// Basics
		{Name: "root", Key: "/", Want: false},
		{Name: "empty", Key: "", Want: false},
		{Name: "leading slash", Key: "/owner/site.html", Want: false},
		{Name: "ends with slash", Key: "owner/", Want: false},

		// Traversal
		{Name: "double dots segment", Key: "../site.html", Want: false},
		{Name: "double dots in middle segment", Key: "a/../b", Want: false},
		{Name: "double dots in filename", Key: "a/b..c", Want: false},
		{Name: "single dot segment", Key: "a/./b", Want: false},
		{Name: "leading single dot segment", Key: "./b", Want: false},
		{Name: "single dot only", Key: ".", Want: false},
		{Name: "double slash", Key: "a//b", Want: false},

		// Forbidden characters
		{Name: "contains space", Key: "owner/my site.html", Want: false},
		{Name: "contains newline", Key: "owner/site\n.html", Want: false},
		{Name: "contains backslash", Key: `owner\site.html`, Want: false},
		{Name: "contains hash", Key: "owner/site#frag", Want: false},
		{Name: "contains question mark", Key: "owner/site?x=1", Want: false},
		{Name: "contains tilde", Key: "owner/~site.html", Want: false},
		{Name: "contains NUL", Key: "owner\x00/site.html", Want: false},
		{Name: "contains DEL", Key: "owner\x7f/site.html", Want: false},
		{Name: "invalid utf8", Key: invalidUTF8, Want: false},

		// Valid examples
		{Name: "owner namespaced html", Key: "6f1c2d3e-4b5a-4c7d-8e9f-0a1b2c3d4e5f/portfolio.html", Want: true},
		{Name: "hidden file", Key: ".hidden/file", Want: true},
		{Name: "unicode", Key: "привет/世界.html", Want: true},
	}

	// sanity check for our generated invalid UTF-8 case
	if utf8.ValidString(invalidUTF8) {
		t.Fatalf("test setup error: invalidUTF8 is unexpectedly valid")
	}

	for _, tc := range tt {
		t.Run(tc.Name, func(t *testing.T) {
			got := sitehost.IsValidKey(tc.Key)
			if got != tc.Want {
				expected := "valid"
				if !tc.Want {
					expected = "invalid"
				}
				t.Errorf("expected key %q to be %s, got %v", tc.Key, expected, got)
			}
		})
	}
}
