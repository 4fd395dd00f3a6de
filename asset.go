package nodeclosure

import (
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/alecthomas/errors"

	"github.com/alecthomas/nodeclosure/internal/pathset"
)

// AssetKind describes how an asset is packed.
type AssetKind int

const (
	// File is included as a single blob.
	File AssetKind = iota
	// Directory is archived recursively.
	Directory
)

func (k AssetKind) String() string {
	switch k {
	case File:
		return "file"
	case Directory:
		return "directory"
	default:
		return "unknown"
	}
}

func (k AssetKind) MarshalText() ([]byte, error) {
	switch k {
	case File, Directory:
		return []byte(k.String()), nil
	default:
		return nil, errors.Errorf("unknown asset kind %d", int(k))
	}
}

func (k *AssetKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "file":
		*k = File
	case "directory":
		*k = Directory
	default:
		return errors.Errorf("unknown asset kind %q", text)
	}
	return nil
}

// Assets maps normalised paths to how they are packed.
type Assets map[string]AssetKind

// Paths returns the asset paths in sorted order.
func (a Assets) Paths() []string {
	return slices.Sorted(maps.Keys(a))
}

// ClassifyPaths classifies each path as a [File] or a [Directory].
//
// A path that cannot be stat'ed results in an *[Error], as omitting it would produce a broken artifact.
func ClassifyPaths(paths []string) (Assets, error) {
	assets := make(Assets, len(paths))
	for _, path := range paths {
		path = pathset.Normalize(path)
		info, err := os.Stat(filepath.FromSlash(path))
		if err != nil {
			return nil, &Error{Path: path, Err: errors.Errorf("failed to stat asset: %w", err)}
		}
		if info.IsDir() {
			assets[path] = Directory
		} else {
			assets[path] = File
		}
	}
	return assets, nil
}
