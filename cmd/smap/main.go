// Command smap inspects and combines Source Map v3 files.
//
// Usage:
//
//	smap query [options] <map.json> <line> <column>
//	smap query [options] --generated <file> --offset <n> <map.json>
//	smap concat [options] <out.json> <map.json> <map.json>...
//
// Options are read only before the first positional argument; anything
// after it is taken as a positional argument, not as an option.
//
// Options (query):
//
//	--bias <floor|ceiling|exact>  Tie-break strategy for a non-exact match
//	--snippet                     Include surrounding source lines in the output
//	--config <file>               Use specific config file
//	--no-config                   Ignore config files
//	--generated <file>            Generated file --offset is resolved against
//	--offset <n>                  Byte offset into --generated, instead of <line> <column>
//	--utf16                       Count --offset's resolved column in UTF-16 units (default true)
//
// Options (concat):
//
//	--config <file>               Use specific config file
//	--no-config                   Ignore config files
//
// Config file:
//
//	smap looks for smap.json or .smaprc in the current directory and
//	parent directories. Config file options are overridden by CLI flags.
//
// Example smap.json:
//
//	{
//	    "bias": "floor",
//	    "snippetLinesBefore": 3,
//	    "snippetLinesAfter": 4,
//	    "validateSourcesContentArity": true
//	}
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-sourcemap/smap/internal/config"
	"github.com/go-sourcemap/smap/internal/sourcemap"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "smap v%s - Source Map v3 inspector\n\n", version)
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  smap query [options] <map.json> <line> <column>\n")
	fmt.Fprintf(os.Stderr, "  smap query [options] --generated <file> --offset <n> <map.json>\n")
	fmt.Fprintf(os.Stderr, "  smap concat [options] <out.json> <map.json> <map.json>...\n")
	fmt.Fprintf(os.Stderr, "  smap --version\n\n")
	fmt.Fprintf(os.Stderr, "Options must come before the positional arguments.\n\n")
	fmt.Fprintf(os.Stderr, "Examples:\n")
	fmt.Fprintf(os.Stderr, "  smap query --bias floor bundle.js.map 12 4\n")
	fmt.Fprintf(os.Stderr, "  smap query --snippet bundle.js.map 12 4\n")
	fmt.Fprintf(os.Stderr, "  smap query --generated bundle.js --offset 512 bundle.js.map\n")
	fmt.Fprintf(os.Stderr, "  smap concat combined.map a.map b.map\n")
}

func run() error {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		return fmt.Errorf("no command specified")
	}

	if args[0] == "--version" {
		fmt.Printf("smap v%s (%s)\n", version, commit)
		return nil
	}

	switch args[0] {
	case "query":
		return runQuery(args[1:])
	case "concat":
		return runConcat(args[1:])
	case "--help", "-h", "help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = usage
	return fs
}

func workingDir(mapPath string) string {
	dir := filepath.Dir(mapPath)
	if dir == "" {
		return "."
	}
	return dir
}

func loadConfigOptions(startDir, configFile string, noConfig bool, biasFlag string) (config.Options, error) {
	if noConfig {
		opts := config.DefaultOptions()
		applyBiasFlag(&opts, biasFlag)
		return opts, nil
	}

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
		if err != nil {
			return config.Options{}, fmt.Errorf("loading config file %s: %w", configFile, err)
		}
	} else {
		cfg, _, err = config.Load(startDir)
		if err != nil {
			return config.Options{}, fmt.Errorf("loading config: %w", err)
		}
	}

	if cfg == nil {
		opts := config.DefaultOptions()
		applyBiasFlag(&opts, biasFlag)
		return opts, nil
	}

	return cfg.Merge(config.MergeOptions{Bias: biasFlag}), nil
}

func applyBiasFlag(opts *config.Options, biasFlag string) {
	switch biasFlag {
	case "floor":
		opts.Bias = sourcemap.BiasFloor
	case "ceiling":
		opts.Bias = sourcemap.BiasCeiling
	case "exact":
		opts.Bias = sourcemap.BiasExact
	}
}

func loadService(path string) (*sourcemap.Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	svc, err := sourcemap.NewFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return svc, nil
}

func runQuery(args []string) error {
	fs := newFlagSet("query")
	var (
		biasFlag   string
		snippet    bool
		configFile string
		noConfig   bool
		generated  string
		offsetFlag int
		utf16      bool
	)
	fs.StringVar(&biasFlag, "bias", "", "Tie-break strategy: floor, ceiling or exact")
	fs.BoolVar(&snippet, "snippet", false, "Include surrounding source lines")
	fs.StringVar(&configFile, "config", "", "Use specific config `file`")
	fs.BoolVar(&noConfig, "no-config", false, "Ignore config files")
	fs.StringVar(&generated, "generated", "", "Generated file to resolve --offset against")
	fs.IntVar(&offsetFlag, "offset", -1, "Byte offset into --generated, instead of <line> <column>")
	fs.BoolVar(&utf16, "utf16", true, "Count --offset's resolved column in UTF-16 code units")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		usage()
		return fmt.Errorf("query requires <map.json>")
	}

	mapPath := fs.Arg(0)
	svc, err := loadService(mapPath)
	if err != nil {
		return err
	}

	opts, err := loadConfigOptions(workingDir(mapPath), configFile, noConfig, biasFlag)
	if err != nil {
		return err
	}

	var line, column int
	if offsetFlag >= 0 {
		if generated == "" {
			return fmt.Errorf("--offset requires --generated <file>")
		}
		text, err := os.ReadFile(generated)
		if err != nil {
			return fmt.Errorf("reading %s: %w", generated, err)
		}
		idx := sourcemap.NewLineIndex(string(text))
		pos, ok := svc.PositionByByteOffset(idx, offsetFlag, utf16, opts.Bias)
		if !ok {
			return fmt.Errorf("no mapping for byte offset %d", offsetFlag)
		}
		return printJSON(pos)
	}

	if fs.NArg() < 3 {
		usage()
		return fmt.Errorf("query requires <map.json> <line> <column>, or --generated <file> --offset <n> <map.json>")
	}
	line, err = strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("invalid line %q: %w", fs.Arg(1), err)
	}
	column, err = strconv.Atoi(fs.Arg(2))
	if err != nil {
		return fmt.Errorf("invalid column %q: %w", fs.Arg(2), err)
	}

	if snippet {
		pos, ok := svc.PositionWithSnippet(line, column, opts.Bias, opts.Snippet)
		if !ok {
			return fmt.Errorf("no mapping for %d:%d", line, column)
		}
		return printJSON(pos)
	}

	pos, ok := svc.PositionByGenerated(line, column, opts.Bias)
	if !ok {
		return fmt.Errorf("no mapping for %d:%d", line, column)
	}
	return printJSON(pos)
}

func runConcat(args []string) error {
	fs := newFlagSet("concat")
	var (
		configFile string
		noConfig   bool
	)
	fs.StringVar(&configFile, "config", "", "Use specific config `file`")
	fs.BoolVar(&noConfig, "no-config", false, "Ignore config files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 3 {
		usage()
		return fmt.Errorf("concat requires <out.json> <map.json> <map.json>...")
	}

	outPath := fs.Arg(0)
	base, err := loadService(fs.Arg(1))
	if err != nil {
		return err
	}

	opts, err := loadConfigOptions(workingDir(fs.Arg(1)), configFile, noConfig, "")
	if err != nil {
		return err
	}

	others := make([]*sourcemap.Service, 0, fs.NArg()-2)
	for i := 2; i < fs.NArg(); i++ {
		other, err := loadService(fs.Arg(i))
		if err != nil {
			return err
		}
		others = append(others, other)
	}

	if opts.ValidateSourcesContentArity {
		for i, svc := range append([]*sourcemap.Service{base}, others...) {
			if err := svc.ValidateSourcesContentArity(); err != nil {
				label := fs.Arg(1)
				if i > 0 {
					label = fs.Arg(i + 1)
				}
				return fmt.Errorf("validating %s: %w", label, err)
			}
		}
	}

	combined, err := base.ConcatNewMap(others...)
	if err != nil {
		return fmt.Errorf("concatenating maps: %w", err)
	}

	data, err := combined.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing combined map: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
