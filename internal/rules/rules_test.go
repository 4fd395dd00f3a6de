package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		want    []Rule
		wantErr string
	}{
		{
			name:   "Empty",
			source: "",
		},
		{
			name:   "CommentsOnly",
			source: "# nothing to see here\n\n  # or here\n",
		},
		{
			name:   "IncludePath",
			source: `include path "assets/**/*.json"`,
			want:   []Rule{&Include{Pos: pos(1, 1, 0), Path: "assets/**/*.json"}},
		},
		{
			name:   "IncludePackage",
			source: `include package "@scope/pkg"`,
			want:   []Rule{&Include{Pos: pos(1, 1, 0), Package: "@scope/pkg"}},
		},
		{
			name:   "ExcludePackage",
			source: `exclude package "aws-sdk" # too big`,
			want:   []Rule{&Exclude{Pos: pos(1, 1, 0), Package: "aws-sdk"}},
		},
		{
			name:   "SkipPrefix",
			source: `skip prefix "@acme/"`,
			want:   []Rule{&Skip{Pos: pos(1, 1, 0), Prefix: "@acme/"}},
		},
		{
			name: "Multiple",
			source: "# rules\n" +
				"include path \"index.js\"\n" +
				"exclude package \"aws-sdk\"\n",
			want: []Rule{
				&Include{Pos: pos(2, 1, 8), Path: "index.js"},
				&Exclude{Pos: pos(3, 1, 32), Package: "aws-sdk"},
			},
		},
		{
			name:   "LegacyName",
			source: `include package "JSONStream"`,
			want:   []Rule{&Include{Pos: pos(1, 1, 0), Package: "JSONStream"}},
		},
		{
			name:    "UnknownRule",
			source:  `require package "a"`,
			wantErr: `rules:1:1: unexpected token "require"`,
		},
		{
			name:    "MissingKind",
			source:  `include "a"`,
			wantErr: `unexpected token`,
		},
		{
			name:    "UnquotedName",
			source:  `exclude package aws`,
			wantErr: `unexpected token`,
		},
		{
			name:    "InvalidPackageName",
			source:  "\ninclude package \"Not Valid\"",
			wantErr: `rules:2:1: package name "Not Valid" contains whitespace`,
		},
		{
			name:    "EmptyPath",
			source:  `include path ""`,
			wantErr: `rules:1:1: include path is empty`,
		},
		{
			name:    "EmptyPrefix",
			source:  `skip prefix ""`,
			wantErr: `rules:1:1: skip prefix is empty`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, err := ParseString("rules", tt.source)
			if tt.wantErr != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			assert.NoError(t, err)
			if len(tt.want) == 0 {
				assert.Equal(t, 0, len(file.Rules))
				return
			}
			assert.Equal(t, tt.want, file.Rules)
		})
	}
}

func pos(line, column, offset int) lexer.Position {
	return lexer.Position{Filename: "rules", Line: line, Column: column, Offset: offset}
}

func TestAccessors(t *testing.T) {
	file, err := ParseString("rules", `
include path "index.js"
include package "extra"
include path "lib"
exclude package "aws-sdk"
exclude package "typescript"
`)
	assert.NoError(t, err)
	assert.Equal(t, []string{"index.js", "lib"}, file.IncludePaths())
	assert.Equal(t, []string{"extra"}, file.IncludePackages())
	assert.Equal(t, []string{"aws-sdk", "typescript"}, file.ExcludePackages())
	prefixes, ok := file.SkipPrefixes()
	assert.False(t, ok)
	assert.Equal(t, 0, len(prefixes))

	file, err = ParseString("rules", "skip prefix \"@pulumi\"\nskip prefix \"@acme\"\n")
	assert.NoError(t, err)
	prefixes, ok = file.SkipPrefixes()
	assert.True(t, ok)
	assert.Equal(t, []string{"@pulumi", "@acme"}, prefixes)
}

func TestString(t *testing.T) {
	source := strings.Join([]string{
		`include path "a \"quoted\" path"`,
		`include package "@scope/pkg"`,
		`exclude package "aws-sdk"`,
		`skip prefix "@pulumi"`,
	}, "\n") + "\n"
	file, err := ParseString("rules", source)
	assert.NoError(t, err)
	assert.Equal(t, source, file.String())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFilename)
	err := os.WriteFile(path, []byte(`exclude package "aws-sdk"`), 0600)
	assert.NoError(t, err)

	file, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, []string{"aws-sdk"}, file.ExcludePackages())

	_, err = Load(filepath.Join(dir, "missing.rules"))
	assert.IsError(t, err, os.ErrNotExist)
}
