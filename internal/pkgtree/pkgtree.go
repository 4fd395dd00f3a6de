// Package pkgtree models the tree of packages installed under a project's node_modules directories.
package pkgtree

import (
	"context"
	"fmt"
	"iter"
	"path"
	"strings"

	"github.com/alecthomas/nodeclosure/internal/manifest"
)

// ModulesDir is the directory packages are installed into.
const ModulesDir = "node_modules"

// A Node is one installed package directory.
//
// The tree is a strict hierarchy: Parent is a back-reference and Children are owned. Nodes are never modified
// once a [Provider] has returned them.
type Node struct {
	// Path is the absolute, slash-separated location of the package directory.
	Path string
	// Name is the package name as reported by the provider. Use [Node.EffectiveName] when matching.
	Name string
	// Manifest is nil if the package's manifest could not be read.
	Manifest *manifest.Manifest
	Parent   *Node
	Children []*Node
	// Err is a non-fatal problem encountered while loading this node.
	Err error
}

// EffectiveName returns the name the package is installed under.
//
// Scoped packages are installed as node_modules/@scope/name, and providers do not always report the scope, so
// the name is reconstructed from the last two path segments.
func (n *Node) EffectiveName() string {
	dir, base := path.Split(n.Path)
	scope := path.Base(dir)
	if strings.HasPrefix(scope, "@") {
		return scope + "/" + base
	}
	return n.Name
}

// AddChild appends child to n and links it back to n.
func (n *Node) AddChild(child *Node) *Node {
	child.Parent = n
	n.Children = append(n.Children, child)
	return child
}

// Walk the tree depth-first, parents before children.
func (n *Node) Walk() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		n.walk(yield)
	}
}

func (n *Node) walk(yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}
	for _, child := range n.Children {
		if !child.walk(yield) {
			return false
		}
	}
	return true
}

func (n *Node) String() string { return fmt.Sprintf("%s (%s)", n.EffectiveName(), n.Path) }

// Provider builds the package tree rooted at a project directory.
type Provider interface {
	// Load the tree rooted at dir.
	//
	// If the root manifest cannot be parsed Load returns a *[RootManifestError]. The tree is still returned
	// when the root directory itself could be resolved.
	Load(ctx context.Context, dir string) (*Node, error)
}

// RootManifestError is returned by a [Provider] when the project's own manifest could not be parsed.
type RootManifestError struct {
	// Dir is the resolved project directory, or "" if it could not be resolved.
	Dir string
	Err error
}

func (e *RootManifestError) Error() string {
	if e.Dir == "" {
		return fmt.Sprintf("failed to parse %s: %s", manifest.Filename, e.Err)
	}
	return fmt.Sprintf("failed to parse %s: %s", path.Join(e.Dir, manifest.Filename), e.Err)
}

func (e *RootManifestError) Unwrap() error { return e.Err }
