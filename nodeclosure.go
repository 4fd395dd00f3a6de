// Package nodeclosure computes the files and directories that must be shipped with a Node.js program so that
// every package it loads at run time is present in the deployed artifact.
//
// The closure is computed from the project's installed node_modules tree, starting at the dependencies declared
// by the project's package.json. See [github.com/alecthomas/nodeclosure/internal/depgraph] for the rules used
// to decide which packages are included.
package nodeclosure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alecthomas/errors"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/alecthomas/nodeclosure/internal/depgraph"
	"github.com/alecthomas/nodeclosure/internal/manifest"
	"github.com/alecthomas/nodeclosure/internal/pathset"
	"github.com/alecthomas/nodeclosure/internal/pkgtree"
)

// Error is returned for any failure that aborts a computation.
type Error struct {
	// Context is the label supplied with [WithErrorContext], if any.
	Context string
	// Path is the file, directory or pattern the error relates to.
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Context == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Context, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type computeOptions struct {
	includePaths    []string
	includePackages []string
	excludePackages []string
	prefixes        []string
	prefixesSet     bool
	errorContext    string
	logger          *slog.Logger
	provider        pkgtree.Provider
	concurrency     int
}

type Option func(*computeOptions) error

// WithIncludePaths adds files or directories to the result regardless of the dependency closure.
//
// Relative paths are resolved against the project directory. Paths containing glob metacharacters are expanded,
// and "**" matches any number of directories. A pattern that matches nothing is an error.
func WithIncludePaths(paths ...string) Option {
	return func(o *computeOptions) error {
		o.includePaths = append(o.includePaths, paths...)
		return nil
	}
}

// WithIncludePackages seeds the closure with packages in addition to the project's dependencies.
func WithIncludePackages(names ...string) Option {
	return func(o *computeOptions) error {
		for _, name := range names {
			if err := manifest.ValidateReference(name); err != nil {
				return errors.Errorf("include package: %w", err)
			}
		}
		o.includePackages = append(o.includePackages, names...)
		return nil
	}
}

// WithExcludePackages prunes packages from the closure wherever they are referenced.
func WithExcludePackages(names ...string) Option {
	return func(o *computeOptions) error {
		for _, name := range names {
			if err := manifest.ValidateReference(name); err != nil {
				return errors.Errorf("exclude package: %w", err)
			}
		}
		o.excludePackages = append(o.excludePackages, names...)
		return nil
	}
}

// WithLegacyPrefixes replaces the package name prefixes of deployment tooling that is skipped even though it
// does not declare itself as deployment-time. Passing no prefixes disables skipping.
func WithLegacyPrefixes(prefixes ...string) Option {
	return func(o *computeOptions) error {
		o.prefixes = prefixes
		o.prefixesSet = true
		return nil
	}
}

// WithErrorContext labels any returned [Error], eg. with the name of the function being deployed.
func WithErrorContext(label string) Option {
	return func(o *computeOptions) error {
		o.errorContext = label
		return nil
	}
}

// WithLogger sets the logger missing dependencies are reported to. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(o *computeOptions) error {
		o.logger = logger
		return nil
	}
}

// WithProvider overrides how the installed package tree is loaded. Defaults to a [pkgtree.Loader] reading
// from disk.
func WithProvider(provider pkgtree.Provider) Option {
	return func(o *computeOptions) error {
		o.provider = provider
		return nil
	}
}

// WithConcurrency walks up to n of the top-level packages concurrently.
func WithConcurrency(n int) Option {
	return func(o *computeOptions) error {
		if n < 1 {
			return errors.Errorf("concurrency must be at least 1, got %d", n)
		}
		o.concurrency = n
		return nil
	}
}

func WithOptions(options ...Option) Option {
	return func(o *computeOptions) error {
		for _, opt := range options {
			if err := opt(o); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}
}

// Compute the assets required at run time by the project in dir.
//
// Any error returned is an *[Error].
func Compute(ctx context.Context, dir string, options ...Option) (Assets, error) {
	opts := &computeOptions{
		logger:      slog.Default(),
		provider:    &pkgtree.Loader{},
		concurrency: 1,
	}
	for _, opt := range options {
		if err := opt(opts); err != nil {
			return nil, opts.fail(dir, err)
		}
	}

	root, err := opts.provider.Load(ctx, dir)
	rootManifest, err := opts.rootManifest(dir, root, err)
	if err != nil {
		return nil, err
	}

	graphOptions := []depgraph.Option{
		depgraph.WithExcludes(opts.excludePackages...),
		depgraph.WithLogger(opts.logger),
		depgraph.WithConcurrency(opts.concurrency),
	}
	if opts.prefixesSet {
		graphOptions = append(graphOptions, depgraph.WithLegacyPrefixes(opts.prefixes...))
	}
	seeds := slices.Concat(opts.includePackages, rootManifest.DependencyNames())
	closure, err := depgraph.Build(ctx, root, seeds, graphOptions...)
	if err != nil {
		return nil, opts.fail(root.Path, errors.Errorf("failed to compute dependency closure: %w", err))
	}

	extra, err := opts.expandIncludePaths(root.Path)
	if err != nil {
		return nil, err
	}
	assets, err := ClassifyPaths(pathset.Reduce(slices.Concat(closure.Paths(), extra)))
	if err != nil {
		return nil, opts.label(err)
	}
	return assets, nil
}

// rootManifest returns the project's own manifest, falling back to a lenient parse if the provider rejected it.
func (o *computeOptions) rootManifest(dir string, root *pkgtree.Node, err error) (*manifest.Manifest, error) {
	var rootErr *pkgtree.RootManifestError
	switch {
	case errors.As(err, &rootErr):
		if rootErr.Dir == "" || root == nil {
			return nil, o.fail(dir, err)
		}
		file := filepath.Join(filepath.FromSlash(rootErr.Dir), manifest.Filename)
		o.logger.Debug("Re-reading project manifest leniently", "path", file, "error", rootErr.Err)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, o.fail(file, errors.Errorf("failed to read %s: %w", file, err))
		}
		m, err := manifest.ParseLenient(file, data)
		if err != nil {
			return nil, o.fail(file, errors.Wrap(err, "failed to parse project manifest"))
		}
		return m, nil

	case err != nil:
		return nil, o.fail(dir, errors.Errorf("failed to load package tree: %w", err))

	case root == nil:
		return nil, o.fail(dir, errors.New("failed to load package tree: no tree returned"))

	default:
		return root.Manifest, nil
	}
}

func (o *computeOptions) expandIncludePaths(projectDir string) ([]string, error) {
	var out []string
	for _, include := range o.includePaths {
		resolved := filepath.FromSlash(include)
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(filepath.FromSlash(projectDir), resolved)
		}
		if !strings.ContainsAny(include, "*?[{") {
			out = append(out, pathset.Normalize(resolved))
			continue
		}
		matches, err := doublestar.FilepathGlob(resolved)
		if err != nil {
			return nil, o.fail(include, errors.Errorf("invalid include pattern %q: %w", include, err))
		}
		if len(matches) == 0 {
			return nil, o.fail(include, errors.Errorf("include pattern %q matched nothing", include))
		}
		for _, match := range matches {
			out = append(out, pathset.Normalize(match))
		}
	}
	return out, nil
}

func (o *computeOptions) fail(path string, err error) error {
	return &Error{Context: o.errorContext, Path: path, Err: err}
}

// label attaches the error context to an *Error returned by a helper.
func (o *computeOptions) label(err error) error {
	var cerr *Error
	if errors.As(err, &cerr) {
		cerr.Context = o.errorContext
		return cerr
	}
	return o.fail("", err)
}
