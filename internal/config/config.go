// Package config handles loading smap configuration from files.
//
// Configuration can be specified in a JSON file named smap.json or
// .smaprc. The config file is searched for in the current directory and
// parent directories.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/go-sourcemap/smap/internal/sourcemap"
)

// Config represents the configuration file structure.
// All fields are optional and will use default values if not specified.
type Config struct {
	// Bias selects the default tie-break strategy for position queries
	// that don't land on an exact segment: "floor", "ceiling" or
	// "exact".
	Bias string `json:"bias,omitempty"`

	// SnippetLinesBefore is the number of leading context lines a
	// snippet query includes around the resolved line.
	SnippetLinesBefore *int `json:"snippetLinesBefore,omitempty"`

	// SnippetLinesAfter is the number of trailing context lines.
	SnippetLinesAfter *int `json:"snippetLinesAfter,omitempty"`

	// ValidateSourcesContentArity requires that, on Concat, each
	// operand's sourcesContent (when present) has one entry per entry
	// in sources.
	ValidateSourcesContentArity *bool `json:"validateSourcesContentArity,omitempty"`
}

// ConfigFileNames are the names searched for config files, in order of preference.
var ConfigFileNames = []string{
	"smap.json",
	".smaprc",
	".smaprc.json",
}

// Load searches for a config file starting from the given directory
// and walking up to parent directories. Returns nil if no config file is found.
func Load(startDir string) (*Config, string, error) {
	dir := startDir
	for {
		for _, name := range ConfigFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := LoadFile(path)
				return cfg, path, err
			}
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, no config found
			return nil, "", nil
		}
		dir = parent
	}
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Options is the resolved, defaulted configuration a command actually
// runs with.
type Options struct {
	Bias                        sourcemap.Bias
	Snippet                     sourcemap.SnippetOptions
	ValidateSourcesContentArity bool
}

// DefaultOptions returns the options a command runs with when nothing
// overrides them: the library's default snippet window (three lines of
// leading context, four trailing), floor bias, and arity validation on.
// The library itself has no default bias, and its Concat never checks
// arity; the command does that check when this option is on.
func DefaultOptions() Options {
	return Options{
		Bias:                        sourcemap.BiasFloor,
		Snippet:                     sourcemap.DefaultSnippetOptions(),
		ValidateSourcesContentArity: true,
	}
}

// ToOptions converts a Config to Options, using defaults for unset fields.
func (c *Config) ToOptions() Options {
	opts := DefaultOptions()

	switch c.Bias {
	case "floor":
		opts.Bias = sourcemap.BiasFloor
	case "ceiling":
		opts.Bias = sourcemap.BiasCeiling
	case "exact":
		opts.Bias = sourcemap.BiasExact
	}

	if c.SnippetLinesBefore != nil {
		opts.Snippet.LinesBefore = *c.SnippetLinesBefore
	}
	if c.SnippetLinesAfter != nil {
		opts.Snippet.LinesAfter = *c.SnippetLinesAfter
	}
	if c.ValidateSourcesContentArity != nil {
		opts.ValidateSourcesContentArity = *c.ValidateSourcesContentArity
	}

	return opts
}

// MergeOptions carries CLI flags that override config file options when
// specified. A nil pointer means "not specified on the CLI".
type MergeOptions struct {
	Bias                        string
	SnippetLinesBefore          *int
	SnippetLinesAfter           *int
	ValidateSourcesContentArity *bool
}

// Merge merges CLI options with config file options. CLI options
// override config file options when specified.
func (c *Config) Merge(cli MergeOptions) Options {
	opts := c.ToOptions()

	switch cli.Bias {
	case "floor":
		opts.Bias = sourcemap.BiasFloor
	case "ceiling":
		opts.Bias = sourcemap.BiasCeiling
	case "exact":
		opts.Bias = sourcemap.BiasExact
	}

	if cli.SnippetLinesBefore != nil {
		opts.Snippet.LinesBefore = *cli.SnippetLinesBefore
	}
	if cli.SnippetLinesAfter != nil {
		opts.Snippet.LinesAfter = *cli.SnippetLinesAfter
	}
	if cli.ValidateSourcesContentArity != nil {
		opts.ValidateSourcesContentArity = *cli.ValidateSourcesContentArity
	}

	return opts
}
