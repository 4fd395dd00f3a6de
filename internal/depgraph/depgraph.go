package depgraph

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/alecthomas/errors"
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/alecthomas/nodeclosure/internal/pathset"
	"github.com/alecthomas/nodeclosure/internal/pkgtree"
)

// DefaultLegacyPrefixes are the package name prefixes skipped when no prefixes are configured.
var DefaultLegacyPrefixes = []string{"@pulumi"}

type graphOptions struct {
	excludes    []string
	prefixes    []string
	logger      *slog.Logger
	concurrency int
}

type Option func(*graphOptions) error

// WithExcludes prunes the named packages wherever they are referenced.
func WithExcludes(names ...string) Option {
	return func(o *graphOptions) error {
		o.excludes = append(o.excludes, names...)
		return nil
	}
}

// WithLegacyPrefixes replaces [DefaultLegacyPrefixes]. Passing no prefixes disables the legacy rule.
func WithLegacyPrefixes(prefixes ...string) Option {
	return func(o *graphOptions) error {
		o.prefixes = prefixes
		return nil
	}
}

// WithLogger sets the logger that missing dependencies are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(o *graphOptions) error {
		o.logger = logger
		return nil
	}
}

// WithConcurrency walks up to n seed packages concurrently.
func WithConcurrency(n int) Option {
	return func(o *graphOptions) error {
		if n < 1 {
			return errors.Errorf("concurrency must be at least 1, got %d", n)
		}
		o.concurrency = n
		return nil
	}
}

func WithOptions(options ...Option) Option {
	return func(o *graphOptions) error {
		for _, opt := range options {
			err := opt(o)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}
}

// Closure is the result of walking a package tree.
type Closure struct {
	visited mapset.Set[string]
	result  mapset.Set[string]

	mu      sync.Mutex
	missing map[string][]string
}

// Paths returns the sorted package directories included in the closure.
func (c *Closure) Paths() []string {
	paths := c.result.ToSlice()
	slices.Sort(paths)
	return paths
}

// Visited returns the sorted package directories that were expanded, including those not in the closure.
func (c *Closure) Visited() []string {
	paths := c.visited.ToSlice()
	slices.Sort(paths)
	return paths
}

// Missing returns the names of packages that could not be resolved, mapped to the sorted directories of the
// packages that required them.
func (c *Closure) Missing() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]string, len(c.missing))
	for name, from := range c.missing {
		out[name] = slices.Sorted(slices.Values(from))
	}
	return out
}

func (c *Closure) addMissing(name, from string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.missing[name], from) {
		c.missing[name] = append(c.missing[name], from)
	}
}

// Build walks the tree from root, starting at each of the seed package names, and returns the closure.
//
// Seeds are resolved from root. The order of seeds does not affect the result.
func Build(ctx context.Context, root *pkgtree.Node, seeds []string, options ...Option) (*Closure, error) {
	if root == nil {
		return nil, errors.New("no package tree to walk")
	}
	opts := &graphOptions{
		prefixes:    DefaultLegacyPrefixes,
		logger:      slog.Default(),
		concurrency: 1,
	}
	for _, opt := range options {
		err := opt(opts)
		if err != nil {
			return nil, errors.WithStack(err)
		}
	}
	b := &builder{
		closure: &Closure{
			visited: mapset.NewSet[string](),
			result:  mapset.NewSet[string](),
			missing: map[string][]string{},
		},
		excluded: mapset.NewSet(opts.excludes...),
		prefixes: opts.prefixes,
		logger:   opts.logger,
	}
	unique := mapset.NewThreadUnsafeSet(seeds...).ToSlice()
	slices.Sort(unique)

	if opts.concurrency == 1 {
		for _, name := range unique {
			if err := ctx.Err(); err != nil {
				return nil, errors.WithStack(err)
			}
			b.include(root, name)
		}
		return b.closure, nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.concurrency)
	for _, name := range unique {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return errors.WithStack(err)
			}
			b.include(root, name)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, errors.WithStack(err)
	}
	return b.closure, nil
}

type builder struct {
	closure  *Closure
	excluded mapset.Set[string]
	prefixes []string
	logger   *slog.Logger
}

// include the package name, as required by the package at from, and its transitive dependencies.
func (b *builder) include(from *pkgtree.Node, name string) {
	if b.excluded.Contains(name) {
		return
	}
	node := Resolve(from, name)
	if node == nil {
		b.closure.addMissing(name, from.Path)
		b.logger.Warn("Could not include required dependency", "package", name, "from", from.Path)
		return
	}
	path := pathset.Normalize(node.Path)
	// Add reports false if another branch has already claimed this directory.
	if !b.closure.visited.Add(path) {
		return
	}
	if node.Err != nil {
		b.logger.Warn("Package manifest could not be fully read", "package", name, "path", path, "error", node.Err)
	}
	switch kind := Classify(node, name, b.prefixes).(type) {
	case DeploymentPackage:
		b.logger.Debug("Walking runtime dependencies of deployment-time package", "package", name, "path", path)
		for _, dep := range kind.RuntimeDependencies {
			b.include(node, dep)
		}

	case SkippedPackage:
		b.logger.Debug("Skipping legacy deployment-time package", "package", name, "prefix", kind.Prefix)

	case RuntimePackage:
		b.closure.result.Add(path)
		for _, dep := range kind.Dependencies {
			b.include(node, dep)
		}
	}
}
