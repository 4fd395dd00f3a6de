// Package rules implements a parser for rules files, which add to or prune the computed closure.
//
// A rules file contains one rule per line, and "#" starts a comment:
//
//	include path "assets/**/*.json"
//	include package "@scope/pkg"
//	exclude package "aws-sdk"
//	skip prefix "@pulumi"
package rules

import (
	"io"
	"os"
	"strconv"

	"github.com/alecthomas/errors"
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/alecthomas/nodeclosure/internal/manifest"
)

// DefaultFilename is looked for in the project directory when no rules file is given.
const DefaultFilename = ".nodeclosure.rules"

var (
	rulesParser = participle.MustBuild[File](
		participle.Lexer(rulesLexer),
		participle.Union[Rule](&Include{}, &Exclude{}, &Skip{}),
		participle.Elide("Whitespace", "Comment"),
		participle.Unquote("String"),
	)
	rulesLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `#[^\n]*`},
		{Name: "String", Pattern: `"(\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Whitespace", Pattern: `\s+`},
	})
)

// File is a parsed rules file.
type File struct {
	Rules []Rule `parser:"@@*"`
}

//sumtype:decl
type Rule interface {
	rule()
	// Validate the rule.
	Validate() error
	String() string
}

// Include adds a path or a package to the closure.
type Include struct {
	Pos     lexer.Position
	Path    string `parser:"'include' ( 'path' @String"`
	Package string `parser:"          | 'package' @String )"`
}

func (i *Include) rule() {}
func (i *Include) String() string {
	if i.Package != "" {
		return "include package " + strconv.Quote(i.Package)
	}
	return "include path " + strconv.Quote(i.Path)
}
func (i *Include) Validate() error {
	if i.Package != "" {
		return manifest.ValidateReference(i.Package)
	}
	if i.Path == "" {
		return errors.New("include path is empty")
	}
	return nil
}

// Exclude prunes a package wherever it is referenced.
type Exclude struct {
	Pos     lexer.Position
	Package string `parser:"'exclude' 'package' @String"`
}

func (e *Exclude) rule()           {}
func (e *Exclude) String() string  { return "exclude package " + strconv.Quote(e.Package) }
func (e *Exclude) Validate() error { return manifest.ValidateReference(e.Package) }

// Skip marks packages whose names start with Prefix as deployment tooling.
type Skip struct {
	Pos    lexer.Position
	Prefix string `parser:"'skip' 'prefix' @String"`
}

func (s *Skip) rule()          {}
func (s *Skip) String() string { return "skip prefix " + strconv.Quote(s.Prefix) }
func (s *Skip) Validate() error {
	if s.Prefix == "" {
		return errors.New("skip prefix is empty")
	}
	return nil
}

// Parse a rules file from r. filename is only used in error messages.
func Parse(filename string, r io.Reader) (*File, error) {
	file, err := rulesParser.Parse(filename, r)
	if err != nil {
		return nil, errors.Errorf("failed to parse rules: %w", err)
	}
	return validate(file)
}

// ParseString parses a rules file from a string.
func ParseString(filename, source string) (*File, error) {
	file, err := rulesParser.ParseString(filename, source)
	if err != nil {
		return nil, errors.Errorf("failed to parse rules: %w", err)
	}
	return validate(file)
}

// Load and parse the rules file at path.
func Load(path string) (*File, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("failed to open rules file: %w", err)
	}
	defer r.Close()
	return Parse(path, r)
}

func validate(file *File) (*File, error) {
	for _, rule := range file.Rules {
		if err := rule.Validate(); err != nil {
			return nil, errors.Errorf("%s: %w", position(rule), err)
		}
	}
	return file, nil
}

func position(rule Rule) lexer.Position {
	switch rule := rule.(type) {
	case *Include:
		return rule.Pos
	case *Exclude:
		return rule.Pos
	case *Skip:
		return rule.Pos
	}
	panic("unreachable")
}

// IncludePaths returns the paths from "include path" rules, in file order.
func (f *File) IncludePaths() []string {
	var out []string
	for _, rule := range f.Rules {
		if include, ok := rule.(*Include); ok && include.Package == "" {
			out = append(out, include.Path)
		}
	}
	return out
}

// IncludePackages returns the names from "include package" rules, in file order.
func (f *File) IncludePackages() []string {
	var out []string
	for _, rule := range f.Rules {
		if include, ok := rule.(*Include); ok && include.Package != "" {
			out = append(out, include.Package)
		}
	}
	return out
}

// ExcludePackages returns the names from "exclude package" rules, in file order.
func (f *File) ExcludePackages() []string {
	var out []string
	for _, rule := range f.Rules {
		if exclude, ok := rule.(*Exclude); ok {
			out = append(out, exclude.Package)
		}
	}
	return out
}

// SkipPrefixes returns the prefixes from "skip prefix" rules. ok is false if the file has no such rules, in
// which case the default prefixes apply.
func (f *File) SkipPrefixes() (prefixes []string, ok bool) {
	for _, rule := range f.Rules {
		if skip, isSkip := rule.(*Skip); isSkip {
			prefixes = append(prefixes, skip.Prefix)
			ok = true
		}
	}
	return prefixes, ok
}

func (f *File) String() string {
	out := ""
	for _, rule := range f.Rules {
		out += rule.String() + "\n"
	}
	return out
}
