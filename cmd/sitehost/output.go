package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sagarc03/sitehost"
)

// Output formats accepted by -o.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// siteFormatter writes command results in one output format.
type siteFormatter interface {
	FormatSites(w io.Writer, sites []sitehost.Site) error
	FormatRemoved(w io.Writer, results []removeResult) error
	FormatSweep(w io.Writer, result sitehost.SweepResult, dryRun bool) error
}

func newFormatter(format string) (siteFormatter, error) {
	switch strings.ToLower(format) {
	case outputText, "":
		return textFormatter{}, nil
	case outputJSON:
		return jsonFormatter{}, nil
	case outputYAML:
		return yamlFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// removeResult is the outcome of removing one identifier.
type removeResult struct {
	Identifier  string
	BlobRemoved bool
	Err         error
}

// siteRow is the structured form of a site for json and yaml output.
type siteRow struct {
	ID         string    `json:"id" yaml:"id"`
	Identifier string    `json:"identifier" yaml:"identifier"`
	OwnerID    string    `json:"owner_id" yaml:"owner_id"`
	Kind       string    `json:"content_kind" yaml:"content_kind"`
	URL        string    `json:"url" yaml:"url"`
	SizeBytes  int64     `json:"size_bytes" yaml:"size_bytes"`
	ETag       string    `json:"etag" yaml:"etag"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" yaml:"updated_at"`
}

type removeRow struct {
	Identifier  string `json:"identifier" yaml:"identifier"`
	Removed     bool   `json:"removed" yaml:"removed"`
	BlobRemoved bool   `json:"blob_removed" yaml:"blob_removed"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

type sweepRow struct {
	DryRun   bool     `json:"dry_run" yaml:"dry_run"`
	Scanned  int      `json:"scanned" yaml:"scanned"`
	Orphaned []string `json:"orphaned" yaml:"orphaned"`
	Removed  int      `json:"removed" yaml:"removed"`
}

func siteRows(sites []sitehost.Site) []siteRow {
	rows := make([]siteRow, len(sites))
	for i := range sites {
		s := &sites[i]
		rows[i] = siteRow{
			ID:         s.ID.String(),
			Identifier: s.Identifier,
			OwnerID:    s.OwnerID.String(),
			Kind:       string(s.Kind),
			URL:        s.URL,
			SizeBytes:  s.SizeBytes,
			ETag:       s.ETag,
			CreatedAt:  s.CreatedAt.UTC(),
			UpdatedAt:  s.UpdatedAt.UTC(),
		}
	}
	return rows
}

func removeRows(results []removeResult) []removeRow {
	rows := make([]removeRow, len(results))
	for i, r := range results {
		rows[i] = removeRow{Identifier: r.Identifier, Removed: r.Err == nil, BlobRemoved: r.BlobRemoved}
		if r.Err != nil {
			rows[i].Error = r.Err.Error()
		}
	}
	return rows
}

func newSweepRow(result sitehost.SweepResult, dryRun bool) sweepRow {
	orphaned := result.Orphaned
	if orphaned == nil {
		orphaned = []string{}
	}
	return sweepRow{DryRun: dryRun, Scanned: result.Scanned, Orphaned: orphaned, Removed: result.Removed}
}

// textFormatter prints aligned tables for people.
type textFormatter struct{}

func (textFormatter) FormatSites(w io.Writer, sites []sitehost.Site) error {
	if len(sites) == 0 {
		_, _ = fmt.Fprintln(w, "No sites found")
		return nil
	}

	maxNameLen := len("IDENTIFIER")
	for i := range sites {
		maxNameLen = max(maxNameLen, len(sites[i].Identifier))
	}

	_, _ = fmt.Fprintf(w, "%-*s  %-4s  %10s  %-19s  %s\n", maxNameLen, "IDENTIFIER", "KIND", "SIZE", "UPDATED", "URL")
	_, _ = fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		strings.Repeat("-", maxNameLen), strings.Repeat("-", 4), strings.Repeat("-", 10), strings.Repeat("-", 19), strings.Repeat("-", 3))

	var total int64
	for i := range sites {
		s := &sites[i]
		total += s.SizeBytes
		_, _ = fmt.Fprintf(w, "%-*s  %-4s  %10s  %-19s  %s\n",
			maxNameLen,
			s.Identifier,
			s.Kind,
			formatSize(s.SizeBytes),
			s.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
			s.URL,
		)
	}

	_, _ = fmt.Fprintf(w, "\n%d site(s) (%s total)\n", len(sites), formatSize(total))
	return nil
}

func (textFormatter) FormatRemoved(w io.Writer, results []removeResult) error {
	for _, r := range results {
		switch {
		case r.Err != nil:
			_, _ = fmt.Fprintf(w, "Error: %s - %v\n", r.Identifier, r.Err)
		case !r.BlobRemoved:
			_, _ = fmt.Fprintf(w, "Removed: %s (content left for the sweeper)\n", r.Identifier)
		default:
			_, _ = fmt.Fprintf(w, "Removed: %s\n", r.Identifier)
		}
	}
	return nil
}

func (textFormatter) FormatSweep(w io.Writer, result sitehost.SweepResult, dryRun bool) error {
	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	for _, key := range result.Orphaned {
		_, _ = fmt.Fprintf(w, "%s: %s\n", verb, key)
	}
	if dryRun {
		_, _ = fmt.Fprintf(w, "\nScanned %d blob(s), %d orphaned (dry run)\n", result.Scanned, len(result.Orphaned))
		return nil
	}
	_, _ = fmt.Fprintf(w, "\nScanned %d blob(s), removed %d of %d orphaned\n", result.Scanned, result.Removed, len(result.Orphaned))
	return nil
}

type jsonFormatter struct{}

func (jsonFormatter) FormatSites(w io.Writer, sites []sitehost.Site) error {
	return writeJSON(w, siteRows(sites))
}

func (jsonFormatter) FormatRemoved(w io.Writer, results []removeResult) error {
	return writeJSON(w, removeRows(results))
}

func (jsonFormatter) FormatSweep(w io.Writer, result sitehost.SweepResult, dryRun bool) error {
	return writeJSON(w, newSweepRow(result, dryRun))
}

type yamlFormatter struct{}

func (yamlFormatter) FormatSites(w io.Writer, sites []sitehost.Site) error {
	return writeYAML(w, siteRows(sites))
}

func (yamlFormatter) FormatRemoved(w io.Writer, results []removeResult) error {
	return writeYAML(w, removeRows(results))
}

func (yamlFormatter) FormatSweep(w io.Writer, result sitehost.SweepResult, dryRun bool) error {
	return writeYAML(w, newSweepRow(result, dryRun))
}

// writeJSON writes a value as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
