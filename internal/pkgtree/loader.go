package pkgtree

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/alecthomas/errors"

	"github.com/alecthomas/nodeclosure/internal/manifest"
	"github.com/alecthomas/nodeclosure/internal/pathset"
)

// DefaultMaxDepth is the default limit on nested node_modules directories.
const DefaultMaxDepth = 64

// Loader is a [Provider] that reads installed packages from a filesystem.
//
// The root manifest is parsed strictly, so an invalid root manifest is reported as a *[RootManifestError].
// Manifests of installed packages that fail validation are re-read leniently and the validation error is
// recorded in [Node.Err].
type Loader struct {
	// FS is rooted at the project directory. If nil, [os.DirFS] of the directory passed to Load is used.
	FS fs.FS
	// MaxDepth limits how many levels of nested node_modules directories are read. Defaults to
	// [DefaultMaxDepth].
	MaxDepth int
}

var _ Provider = (*Loader)(nil)

func (l *Loader) Load(ctx context.Context, dir string) (*Node, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &RootManifestError{Err: errors.Errorf("failed to resolve project directory %s: %w", dir, err)}
	}
	fsys := l.FS
	if fsys == nil {
		fsys = os.DirFS(abs)
	}
	if info, err := fs.Stat(fsys, "."); err != nil {
		return nil, &RootManifestError{Err: errors.Errorf("failed to resolve project directory %s: %w", abs, err)}
	} else if !info.IsDir() {
		return nil, &RootManifestError{Err: errors.Errorf("project path %s is not a directory", abs)}
	}
	w := &walker{fsys: fsys, root: pathset.Normalize(abs), maxDepth: l.MaxDepth}
	if w.maxDepth <= 0 {
		w.maxDepth = DefaultMaxDepth
	}

	root := &Node{Path: w.root, Name: path.Base(w.root)}
	var rootErr error
	m, err := w.readManifest(".")
	if err != nil {
		rootErr = &RootManifestError{Dir: root.Path, Err: err}
	} else {
		root.Manifest = m
		if m.Name != "" {
			root.Name = m.Name
		}
	}
	if err := w.loadChildren(ctx, root, ".", 1); err != nil {
		return nil, err
	}
	return root, rootErr
}

type walker struct {
	fsys     fs.FS
	root     string
	maxDepth int
}

func (w *walker) readManifest(rel string) (*manifest.Manifest, error) {
	file := path.Join(w.root, rel, manifest.Filename)
	data, err := fs.ReadFile(w.fsys, path.Join(rel, manifest.Filename))
	if err != nil {
		return nil, errors.Errorf("failed to read %s: %w", file, err)
	}
	return manifest.Parse(file, data)
}

func (w *walker) loadChildren(ctx context.Context, parent *Node, rel string, depth int) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	modules := path.Join(rel, ModulesDir)
	entries, err := fs.ReadDir(w.fsys, modules)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return errors.Errorf("failed to read %s: %w", path.Join(w.root, modules), err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.HasPrefix(name, "@") {
			if err := w.loadPackage(ctx, parent, path.Join(modules, name), depth); err != nil {
				return err
			}
			continue
		}
		scoped, err := fs.ReadDir(w.fsys, path.Join(modules, name))
		if err != nil {
			return errors.Errorf("failed to read %s: %w", path.Join(w.root, modules, name), err)
		}
		for _, entry := range scoped {
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			if err := w.loadPackage(ctx, parent, path.Join(modules, name, entry.Name()), depth); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *walker) loadPackage(ctx context.Context, parent *Node, rel string, depth int) error {
	// Stat rather than using the DirEntry so that symlinked packages are followed.
	info, err := fs.Stat(w.fsys, rel)
	if err != nil || !info.IsDir() {
		return nil //nolint:nilerr
	}
	child := parent.AddChild(&Node{Path: path.Join(w.root, rel), Name: path.Base(rel)})
	m, err := w.readManifest(rel)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		child.Err = err
	case err != nil:
		// Only an invalid name or version is recoverable, and neither matters here.
		data, rerr := fs.ReadFile(w.fsys, path.Join(rel, manifest.Filename))
		if rerr == nil {
			m, rerr = manifest.ParseLenient(path.Join(child.Path, manifest.Filename), data)
		}
		if rerr != nil {
			child.Err = err
		}
	}
	if m != nil {
		child.Manifest = m
		if m.Name != "" {
			child.Name = m.Name
		}
		if m.Extension != nil && m.Extension.Err != nil && child.Err == nil {
			child.Err = errors.Errorf("%s: invalid \"pulumi\" section: %w", path.Join(child.Path, manifest.Filename), m.Extension.Err)
		}
	}
	if depth >= w.maxDepth {
		if child.Err == nil {
			child.Err = errors.Errorf("%s: exceeded maximum nesting depth of %d", child.Path, w.maxDepth)
		}
		return nil
	}
	return w.loadChildren(ctx, child, rel, depth+1)
}
