package depgraph

import (
	"strings"

	"github.com/alecthomas/nodeclosure/internal/pkgtree"
)

// Resolve finds the installed copy of the package name as seen from start.
//
// The children of start are searched first, then the children of each ancestor in turn, so a copy nested under
// a package shadows one installed further up the tree. Returns nil if no copy is found.
func Resolve(start *pkgtree.Node, name string) *pkgtree.Node {
	for node := start; node != nil; node = node.Parent {
		for _, child := range node.Children {
			if child.EffectiveName() == name {
				return child
			}
		}
	}
	return nil
}

// Kind is the role a resolved package plays in the closure.
//
//sumtype:decl
type Kind interface{ kind() }

// RuntimePackage is included in the closure along with its dependencies.
type RuntimePackage struct {
	Dependencies []string
}

// DeploymentPackage is only needed to deploy the program. Its RuntimeDependencies are walked instead.
type DeploymentPackage struct {
	RuntimeDependencies []string
}

// SkippedPackage matched a legacy deployment tooling prefix.
type SkippedPackage struct {
	Prefix string
}

func (RuntimePackage) kind()    {}
func (DeploymentPackage) kind() {}
func (SkippedPackage) kind()    {}

// Classify determines the [Kind] of node, which was resolved for the package name.
//
// legacyPrefixes are name prefixes of deployment tooling packages that predate the manifest extension.
func Classify(node *pkgtree.Node, name string, legacyPrefixes []string) Kind {
	m := node.Manifest
	if m != nil && m.Extension != nil {
		return DeploymentPackage{RuntimeDependencies: m.RuntimeDependencyNames()}
	}
	for _, prefix := range legacyPrefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return SkippedPackage{Prefix: prefix}
		}
	}
	return RuntimePackage{Dependencies: m.DependencyNames()}
}
