// Package manifest parses the parts of a package.json file that decide what a package needs at run time.
package manifest

import (
	"bytes"
	"encoding/json"
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/alecthomas/errors"
	"golang.org/x/mod/semver"
)

// Filename of a package manifest inside a package directory.
const Filename = "package.json"

// MaxNameLength is the longest package name the registry accepts.
const MaxNameLength = 214

// Manifest is a parsed package.json.
//
// Dependency maps are keyed by package name. Their values are version constraints, which are never
// interpreted here.
type Manifest struct {
	Name             string            `json:"name,omitempty"`
	Version          string            `json:"version,omitempty"`
	Dependencies     map[string]string `json:"dependencies,omitempty"`
	DevDependencies  map[string]string `json:"devDependencies,omitempty"`
	PeerDependencies map[string]string `json:"peerDependencies,omitempty"`
	// Extension is present only on deployment-time packages.
	Extension *Extension `json:"pulumi,omitempty"`
}

// Extension is the deployment tooling section of a manifest.
type Extension struct {
	// RuntimeDependencies are packages the deployed code needs on behalf of this package.
	RuntimeDependencies map[string]string `json:"runtimeDependencies,omitempty"`
	// Err describes a malformed "runtimeDependencies" value. The extension is still present.
	Err error `json:"-"`
}

// UnmarshalJSON decodes the extension leniently, as only its presence and the names of its runtime
// dependencies matter.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	type plain Manifest
	var raw struct {
		plain
		Extension json.RawMessage `json:"pulumi,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.WithStack(err)
	}
	*m = Manifest(raw.plain)
	m.Extension = decodeExtension(raw.Extension)
	return nil
}

// decodeExtension treats any value other than null, false, 0 or "" as a present extension.
func decodeExtension(raw json.RawMessage) *Extension {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", "false", "0", `""`:
		return nil
	}
	ext := &Extension{}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ext
	}
	deps := bytes.TrimSpace(fields["runtimeDependencies"])
	if len(deps) == 0 || string(deps) == "null" {
		return ext
	}
	ext.RuntimeDependencies, ext.Err = dependencyKeys(deps)
	return ext
}

// dependencyKeys extracts dependency names from an object, or from an array of names. An array is still
// reported as an error.
func dependencyKeys(raw json.RawMessage) (map[string]string, error) {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(raw, &object); err == nil {
		out := make(map[string]string, len(object))
		for name, value := range object {
			var constraint string
			_ = json.Unmarshal(value, &constraint) //nolint
			out[name] = constraint
		}
		return out, nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		out := make(map[string]string, len(names))
		for _, name := range names {
			out[name] = "*"
		}
		return out, errors.New("runtimeDependencies is an array, expected an object")
	}
	return nil, errors.Errorf("runtimeDependencies must be an object, got %s", raw)
}

// DependencyNames returns the sorted names of the runtime dependencies.
func (m *Manifest) DependencyNames() []string {
	if m == nil {
		return nil
	}
	return Names(m.Dependencies)
}

// RuntimeDependencyNames returns the sorted names of the extension's runtime dependencies, or nil if the
// manifest has no extension.
func (m *Manifest) RuntimeDependencyNames() []string {
	if m == nil || m.Extension == nil {
		return nil
	}
	return Names(m.Extension.RuntimeDependencies)
}

// Validate the name and version fields.
func (m *Manifest) Validate() error {
	if m.Name != "" {
		if err := ValidateName(m.Name); err != nil {
			return err
		}
	}
	if m.Version != "" && !ValidVersion(m.Version) {
		return errors.Errorf("invalid version %q", m.Version)
	}
	return nil
}

// Names returns the sorted keys of a dependency map.
func Names(deps map[string]string) []string {
	return slices.Sorted(maps.Keys(deps))
}

// Parse and validate a manifest. path is only used in error messages.
func Parse(path string, data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, errors.Errorf("%s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseLenient parses a manifest the same way as [Parse], but first discards a "name" or "version" value that
// would fail validation. Neither field affects which packages are needed at run time.
func ParseLenient(path string, data []byte) (*Manifest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.Errorf("%s: %w", path, err)
	}
	if fields == nil {
		return nil, errors.Errorf("%s: expected a JSON object", path)
	}
	if !validField(fields["name"], func(s string) bool { return ValidateName(s) == nil }) {
		delete(fields, "name")
	}
	if !validField(fields["version"], ValidVersion) {
		delete(fields, "version")
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Errorf("%s: %w", path, err)
	}
	return Parse(path, data)
}

func validField(raw json.RawMessage, valid func(string) bool) bool {
	if raw == nil {
		return true
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return false
	}
	return value == "" || valid(value)
}

var nameRe = regexp.MustCompile(`^(?:@[a-z0-9\-*~][a-z0-9\-*._~]*/)?[a-z0-9\-~][a-z0-9\-._~]*$`)

// ValidateName checks name against the registry naming rules for new packages.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.New("package name is empty")
	case len(name) > MaxNameLength:
		return errors.Errorf("package name %q is longer than %d characters", name, MaxNameLength)
	case strings.TrimSpace(name) != name:
		return errors.Errorf("package name %q has leading or trailing whitespace", name)
	case strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_"):
		return errors.Errorf("package name %q starts with %q", name, name[:1])
	case !nameRe.MatchString(name):
		return errors.Errorf("invalid package name %q", name)
	}
	return nil
}

// ValidateReference checks a package name supplied by a user, eg. to include or exclude.
//
// Unlike [ValidateName] it accepts names that predate the current registry rules, such as "JSONStream",
// since such packages are still installed and resolvable.
func ValidateReference(name string) error {
	switch {
	case name == "":
		return errors.New("package name is empty")
	case strings.ContainsFunc(name, unicode.IsSpace):
		return errors.Errorf("package name %q contains whitespace", name)
	}
	return nil
}

// ValidVersion reports whether version is a full semantic version such as 1.2.3 or 1.0.0-beta.1+build.5.
func ValidVersion(version string) bool {
	if strings.HasPrefix(version, "v") {
		return false
	}
	base, _, _ := strings.Cut(version, "+")
	return semver.Canonical("v"+version) == "v"+base
}
