package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrefix(t *testing.T) {
	tests := map[string]string{
		"":        "",
		"/":       "",
		"sites":   "sites/",
		"/sites/": "sites/",
		"a/b//":   "a/b/",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePrefix(in), "prefix %q", in)
	}
}

func TestObjectKey(t *testing.T) {
	key, err := objectKey("sites/", "owner/page.html")
	require.NoError(t, err)
	assert.Equal(t, "sites/owner/page.html", key)

	_, err = objectKey("sites/", "owner/../page.html")
	assert.Error(t, err)
}

func TestDigestReader(t *testing.T) {
	content := "<html>hello</html>"
	dr := newDigestReader(context.Background(), strings.NewReader(content))

	got, err := io.ReadAll(dr)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))

	sum := sha256.Sum256([]byte(content))
	result := dr.result()
	assert.Equal(t, int64(len(content)), result.BytesWritten)
	assert.Equal(t, hex.EncodeToString(sum[:]), result.Etag)
}

func TestDigestReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := io.ReadAll(newDigestReader(ctx, strings.NewReader("x")))

	assert.ErrorIs(t, err, context.Canceled)
}
