// Package treetesting builds installed-package trees for use in tests.
package treetesting

import (
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/psanford/memfs"
)

// Files maps slash-separated paths, relative to the project directory, to file contents.
type Files map[string]string

// Package describes a package.json. Dependency lists are rendered as name -> "*".
type Package struct {
	Name            string
	Version         string
	Dependencies    []string
	DevDependencies []string
	// Deployment adds an empty deployment extension section.
	Deployment bool
	// RuntimeDependencies adds a deployment extension section listing these packages.
	RuntimeDependencies []string
}

// JSON renders the package.json.
func (p Package) JSON() string {
	out := map[string]any{}
	if p.Name != "" {
		out["name"] = p.Name
	}
	if p.Version != "" {
		out["version"] = p.Version
	}
	if len(p.Dependencies) > 0 {
		out["dependencies"] = deps(p.Dependencies)
	}
	if len(p.DevDependencies) > 0 {
		out["devDependencies"] = deps(p.DevDependencies)
	}
	if p.Deployment || len(p.RuntimeDependencies) > 0 {
		ext := map[string]any{}
		if len(p.RuntimeDependencies) > 0 {
			ext["runtimeDependencies"] = deps(p.RuntimeDependencies)
		}
		out["pulumi"] = ext
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		panic(err)
	}
	return string(data)
}

func deps(names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = "*"
	}
	return out
}

// Prepare writes files into a new temporary directory, returning its path.
//
// The directory is removed when the test completes.
func Prepare(t *testing.T, files Files) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		dest := filepath.Join(dir, filepath.FromSlash(name))
		err := os.MkdirAll(filepath.Dir(dest), 0750)
		assert.NoError(t, err)
		err = os.WriteFile(dest, []byte(content), 0600)
		assert.NoError(t, err)
	}
	return dir
}

// FS writes files into a new in-memory filesystem.
func FS(t *testing.T, files Files) *memfs.FS {
	t.Helper()
	fsys := memfs.New()
	for name, content := range files {
		if dir := path.Dir(name); dir != "." {
			err := fsys.MkdirAll(dir, 0750)
			assert.NoError(t, err)
		}
		err := fsys.WriteFile(name, []byte(content), 0600)
		assert.NoError(t, err)
	}
	return fsys
}
