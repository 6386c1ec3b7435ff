package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sagarc03/sitehost"
)

func testSites() []sitehost.Site {
	updated := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	return []sitehost.Site{
		{
			ID:         uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			Identifier: "portfolio",
			OwnerID:    uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			Kind:       sitehost.KindHTML,
			URL:        "https://sites.example.com/site/portfolio",
			SizeBytes:  2048,
			ETag:       "abc",
			CreatedAt:  updated.Add(-time.Hour),
			UpdatedAt:  updated,
		},
	}
}

func TestNewFormatter(t *testing.T) {
	for _, format := range []string{"", "text", "json", "yaml", "JSON"} {
		_, err := newFormatter(format)
		assert.NoError(t, err, format)
	}

	_, err := newFormatter("xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestTextFormatter_FormatSites(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer

		require.NoError(t, textFormatter{}.FormatSites(&buf, testSites()))

		out := buf.String()
		assert.Contains(t, out, "IDENTIFIER")
		assert.Contains(t, out, "portfolio")
		assert.Contains(t, out, "2.0 KB")
		assert.Contains(t, out, "2026-03-01 12:30:00")
		assert.Contains(t, out, "1 site(s) (2.0 KB total)")
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer

		require.NoError(t, textFormatter{}.FormatSites(&buf, nil))

		assert.Equal(t, "No sites found\n", buf.String())
	})
}

func TestJSONFormatter_FormatSites(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, jsonFormatter{}.FormatSites(&buf, testSites()))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "portfolio", rows[0]["identifier"])
	assert.Equal(t, "html", rows[0]["content_kind"])
	assert.NotContains(t, rows[0], "storage_key")
}

func TestYAMLFormatter_FormatSites(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, yamlFormatter{}.FormatSites(&buf, testSites()))

	var rows []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "portfolio", rows[0]["identifier"])
	assert.Equal(t, 2048, rows[0]["size_bytes"])
}

func TestFormatRemoved(t *testing.T) {
	results := []removeResult{
		{Identifier: "gone", BlobRemoved: true},
		{Identifier: "half", BlobRemoved: false},
		{Identifier: "nope", Err: sitehost.ErrNotFound},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer

		require.NoError(t, textFormatter{}.FormatRemoved(&buf, results))

		assert.Equal(t, "Removed: gone\nRemoved: half (content left for the sweeper)\nError: nope - not found\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer

		require.NoError(t, jsonFormatter{}.FormatRemoved(&buf, results))

		assert.JSONEq(t, `[
			{"identifier":"gone","removed":true,"blob_removed":true},
			{"identifier":"half","removed":true,"blob_removed":false},
			{"identifier":"nope","removed":false,"blob_removed":false,"error":"not found"}
		]`, buf.String())
	})
}

func TestFormatSweep(t *testing.T) {
	result := sitehost.SweepResult{Scanned: 4, Orphaned: []string{"a/old.html"}, Removed: 1}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer

		require.NoError(t, textFormatter{}.FormatSweep(&buf, result, false))

		assert.Contains(t, buf.String(), "Removed: a/old.html")
		assert.Contains(t, buf.String(), "removed 1 of 1 orphaned")
	})

	t.Run("text dry run", func(t *testing.T) {
		var buf bytes.Buffer

		require.NoError(t, textFormatter{}.FormatSweep(&buf, sitehost.SweepResult{Scanned: 4, Orphaned: []string{"a/old.html"}}, true))

		assert.Contains(t, buf.String(), "Would remove: a/old.html")
		assert.Contains(t, buf.String(), "(dry run)")
	})

	t.Run("json never prints null", func(t *testing.T) {
		var buf bytes.Buffer

		require.NoError(t, jsonFormatter{}.FormatSweep(&buf, sitehost.SweepResult{Scanned: 2}, true))

		assert.JSONEq(t, `{"dry_run":true,"scanned":2,"orphaned":[],"removed":0}`, buf.String())
	})
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{10 << 20, "10.0 MB"},
		{3 << 30, "3.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes))
	}
}

var errBoom = errors.New("boom")
