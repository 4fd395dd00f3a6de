// Package report writes computed assets for consumption by packers and humans.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/errors"

	"github.com/alecthomas/nodeclosure"
	"github.com/alecthomas/nodeclosure/internal/pathset"
)

// Format of the report.
type Format string

const (
	// Text writes one "dir <path>" or "file <path>" line per asset.
	Text Format = "text"
	// JSON writes an array of {"path": ..., "kind": ...} objects.
	JSON Format = "json"
)

type reportOptions struct {
	relativeTo string
}

type Option func(*reportOptions) error

// WithRelativeTo writes paths inside dir relative to it. Paths outside dir are written unchanged.
func WithRelativeTo(dir string) Option {
	return func(o *reportOptions) error {
		if dir == "" {
			return errors.New("relative directory is empty")
		}
		o.relativeTo = pathset.Normalize(dir)
		return nil
	}
}

// Entry is a single asset in a JSON report.
type Entry struct {
	Path string                `json:"path"`
	Kind nodeclosure.AssetKind `json:"kind"`
}

// Write assets to w in the given format, sorted by path.
func Write(w io.Writer, assets nodeclosure.Assets, format Format, options ...Option) error {
	opts := &reportOptions{}
	for _, opt := range options {
		if err := opt(opts); err != nil {
			return errors.WithStack(err)
		}
	}
	entries := make([]Entry, 0, len(assets))
	for _, path := range assets.Paths() {
		entries = append(entries, Entry{Path: opts.display(path), Kind: assets[path]})
	}
	switch format {
	case Text:
		for _, entry := range entries {
			prefix := "file"
			if entry.Kind == nodeclosure.Directory {
				prefix = "dir"
			}
			if _, err := fmt.Fprintf(w, "%s %s\n", prefix, entry.Path); err != nil {
				return errors.Errorf("failed to write report: %w", err)
			}
		}
		return nil

	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return errors.Errorf("failed to write report: %w", err)
		}
		return nil

	default:
		return errors.Errorf("unsupported report format %q", format)
	}
}

func (o *reportOptions) display(path string) string {
	if o.relativeTo == "" || !pathset.Contains(o.relativeTo, path) {
		return path
	}
	if path == o.relativeTo {
		return "."
	}
	return strings.TrimPrefix(path[len(o.relativeTo):], "/")
}
