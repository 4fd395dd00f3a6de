package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"

	"github.com/alecthomas/errors"
	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	"github.com/kballard/go-shellquote"

	"github.com/alecthomas/nodeclosure"
	"github.com/alecthomas/nodeclosure/internal/logging"
	"github.com/alecthomas/nodeclosure/internal/report"
	"github.com/alecthomas/nodeclosure/internal/rules"
)

// FlagsEnvar holds extra flags, split using shell quoting rules and applied before the command line.
const FlagsEnvar = "NODECLOSURE_FLAGS"

type CLI struct {
	Version kong.VersionFlag   `help:"Print the version and exit."`
	Chdir   kong.ChangeDirFlag `help:"Change to this directory before running." placeholder:"DIR" short:"C"`
	Config  kong.ConfigFlag    `help:"Load flags from this TOML file." placeholder:"FILE"`
	Log     logging.Config     `embed:"" prefix:"log-" group:"Logging:"`

	IncludePath    []string `help:"Include this file, directory or glob. Relative paths are resolved against the project directory." placeholder:"PATH" short:"i"`
	IncludePackage []string `help:"Include this package and its dependencies." placeholder:"NAME" short:"p"`
	ExcludePackage []string `help:"Exclude this package wherever it is required." placeholder:"NAME" short:"x"`
	SkipPrefix     []string `help:"Skip packages starting with this prefix unless they declare runtime dependencies (default: @pulumi)." placeholder:"PREFIX" xor:"skip"`
	NoLegacySkip   bool     `help:"Never skip packages by name prefix." xor:"skip"`
	Rules          string   `help:"Rules file. Defaults to ${default_rules} in the project directory, if present." placeholder:"FILE" type:"path"`
	Label          string   `help:"Label errors with this name, eg. the function being deployed." placeholder:"NAME"`
	Concurrency    int      `help:"Number of top-level packages to walk concurrently." default:"1"`
	Format         string   `help:"Output format (${enum})." enum:"text,json" default:"text"`
	Relative       bool     `help:"Write paths relative to the project directory."`

	Dir string `help:"Project directory." arg:"" default:"." type:"existingdir"`
}

func main() {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		version = info.Main.Version
	}
	var cli CLI
	parser := kong.Must(&cli,
		kong.Description("Compute the files and directories a Node.js program needs at run time."),
		kong.Configuration(kongtoml.Loader, "~/.config/nodeclosure.toml", ".nodeclosure.toml"),
		kong.Vars{"version": version, "default_rules": rules.DefaultFilename},
	)
	args, err := envArgs(os.Getenv(FlagsEnvar))
	parser.FatalIfErrorf(err)
	kctx, err := parser.Parse(append(args, os.Args[1:]...))
	parser.FatalIfErrorf(err)
	err = cli.Run(context.Background(), os.Stdout, os.Stderr)
	kctx.FatalIfErrorf(err)
}

// Run computes the closure of the project and writes the report to stdout. Logs are written to stderr.
func (c *CLI) Run(ctx context.Context, stdout, stderr io.Writer) error {
	logger := logging.New(stderr, c.Log)
	file, err := c.loadRules()
	if err != nil {
		return err
	}
	options := []nodeclosure.Option{
		nodeclosure.WithIncludePaths(slices.Concat(file.IncludePaths(), c.IncludePath)...),
		nodeclosure.WithIncludePackages(slices.Concat(file.IncludePackages(), c.IncludePackage)...),
		nodeclosure.WithExcludePackages(slices.Concat(file.ExcludePackages(), c.ExcludePackage)...),
		nodeclosure.WithErrorContext(c.Label),
		nodeclosure.WithLogger(logger),
		nodeclosure.WithConcurrency(c.Concurrency),
	}
	if prefixes, ok := legacyPrefixes(c.NoLegacySkip, c.SkipPrefix, file); ok {
		options = append(options, nodeclosure.WithLegacyPrefixes(prefixes...))
	}
	assets, err := nodeclosure.Compute(ctx, c.Dir, options...)
	if err != nil {
		return errors.WithStack(err)
	}
	var reportOptions []report.Option
	if c.Relative {
		dir, err := filepath.Abs(c.Dir)
		if err != nil {
			return errors.Errorf("failed to resolve project directory: %w", err)
		}
		reportOptions = append(reportOptions, report.WithRelativeTo(dir))
	}
	return errors.WithStack(report.Write(stdout, assets, report.Format(c.Format), reportOptions...))
}

// loadRules loads the rules file, or the default rules file from the project directory if present.
func (c *CLI) loadRules() (*rules.File, error) {
	if c.Rules != "" {
		file, err := rules.Load(c.Rules)
		return file, errors.WithStack(err)
	}
	file, err := rules.Load(filepath.Join(c.Dir, rules.DefaultFilename))
	if errors.Is(err, os.ErrNotExist) {
		return &rules.File{}, nil
	}
	return file, errors.WithStack(err)
}

// legacyPrefixes returns the legacy prefixes to use, and false if the defaults apply.
func legacyPrefixes(disabled bool, flags []string, file *rules.File) ([]string, bool) {
	if disabled {
		return nil, true
	}
	prefixes, ok := file.SkipPrefixes()
	if !ok && len(flags) == 0 {
		return nil, false
	}
	return slices.Concat(prefixes, flags), true
}

func envArgs(value string) ([]string, error) {
	args, err := shellquote.Split(value)
	if err != nil {
		return nil, errors.Errorf("invalid $%s: %w", FlagsEnvar, err)
	}
	return args, nil
}
