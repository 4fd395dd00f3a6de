package pathset

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestReduce(t *testing.T) {
	tests := []struct {
		name     string
		paths    []string
		expected []string
	}{
		{
			name:     "SiblingPrefixIsKept",
			paths:    []string{"/proj/node_modules/mime", "/proj/node_modules/mime-types"},
			expected: []string{"/proj/node_modules/mime", "/proj/node_modules/mime-types"},
		},
		{
			name:     "ChildIsDropped",
			paths:    []string{"/proj/node_modules/foo/lib", "/proj/node_modules/foo"},
			expected: []string{"/proj/node_modules/foo"},
		},
		{
			name:     "NestedNodeModulesDropped",
			paths:    []string{"/proj/node_modules/a", "/proj/node_modules/a/node_modules/b", "/proj/node_modules/b"},
			expected: []string{"/proj/node_modules/a", "/proj/node_modules/b"},
		},
		{
			name:     "DuplicatesCollapse",
			paths:    []string{"/proj/x", "/proj/x/", "/proj/./x"},
			expected: []string{"/proj/x"},
		},
		{
			name:     "FileInsideIncludedDirectory",
			paths:    []string{"/proj/assets", "/proj/assets/logo.png", "/proj/assets.json"},
			expected: []string{"/proj/assets", "/proj/assets.json"},
		},
		{
			name:     "Empty",
			paths:    nil,
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Reduce(tt.paths))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "/a/b", Normalize("/a//b/"))
	assert.Equal(t, "/a/c", Normalize("/a/b/../c"))
	assert.Equal(t, "a/b", Normalize("./a/b"))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("/proj/a", "/proj/a"))
	assert.True(t, Contains("/proj/a", "/proj/a/b"))
	assert.False(t, Contains("/proj/a", "/proj/ab"))
	assert.False(t, Contains("/proj/a/b", "/proj/a"))
}
