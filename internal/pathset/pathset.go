// Package pathset normalises filesystem paths and removes paths already covered by an ancestor directory.
package pathset

import (
	"path"
	"path/filepath"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Separator is the separator used by all normalised paths.
const Separator = '/'

// Normalize cleans p and converts it to forward-slash form.
func Normalize(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

// Reduce normalises paths and drops every path that is strictly inside another path of the set.
//
// A path P is inside Q only if P starts with Q and the character following that prefix is a [Separator], so
// "node_modules/mime-types" is not inside "node_modules/mime". The result is sorted and contains no duplicates.
func Reduce(paths []string) []string {
	set := mapset.NewThreadUnsafeSetWithSize[string](len(paths))
	for _, p := range paths {
		set.Add(Normalize(p))
	}
	unique := set.ToSlice()
	slices.Sort(unique)

	out := make([]string, 0, len(unique))
	for _, p := range unique {
		if !subsumed(p, unique) {
			out = append(out, p)
		}
	}
	return out
}

// Contains reports whether child is parent or lies strictly inside parent. Both paths must be normalised.
func Contains(parent, child string) bool {
	return parent == child || within(child, parent)
}

func subsumed(p string, all []string) bool {
	for _, other := range all {
		if within(p, other) {
			return true
		}
	}
	return false
}

func within(p, ancestor string) bool {
	return len(p) > len(ancestor) && strings.HasPrefix(p, ancestor) && p[len(ancestor)] == Separator
}
