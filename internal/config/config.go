// Package config parses the command line and environment of etw-gecko.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/mrzor/etw-gecko/internal/output"
	"github.com/mrzor/etw-gecko/internal/target"
)

// Output formats.
const (
	FormatGecko = output.FormatGecko
	FormatPprof = output.FormatPprof
)

// DefaultInterval is the sampling interval recorded in the profile header
// when none is given (the kernel default of 8192 Hz).
const DefaultInterval = time.Second / 8192

// Config holds the parsed command-line configuration
type Config struct {
	// TracePath is the decoded trace export to read
	TracePath string
	// Selector picks the processes to profile
	Selector target.Selector
	// OutputPath is where the profile is written
	OutputPath string
	// Format is FormatGecko or FormatPprof
	Format string
	// Strict aborts on malformed events and missing image records instead of skipping them
	Strict bool
	// Product is the product name stored in the profile header
	Product string
	// Interval is the nominal sampling interval
	Interval time.Duration
	// TicksPerMillisecond is the resolution of the trace clock
	TicksPerMillisecond float64
	// ShowVersion requests the version banner only
	ShowVersion bool
}

// ParseArgs parses command-line arguments and returns a Config.
// Expected format: program_name [flags] <trace> <pid|image-name>
func ParseArgs(args []string, version string) (*Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no arguments provided")
	}

	programName := args[0]
	cfg := &Config{}
	var matchExpr string

	fs := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&cfg.OutputPath, "output", "o", "", "output file (default gecko.json, or profile.pb.gz for pprof)")
	fs.StringVarP(&cfg.Format, "format", "f", FormatGecko, "output format: gecko or pprof")
	fs.StringVar(&matchExpr, "match-expr", "", "admit processes whose start event matches this expression, e.g. 'Image endsWith \"firefox.exe\"'")
	fs.BoolVar(&cfg.Strict, "strict", false, "abort on malformed events instead of skipping them")
	fs.StringVar(&cfg.Product, "product", "firefox", "product name recorded in the profile")
	fs.DurationVar(&cfg.Interval, "interval", DefaultInterval, "sampling interval recorded in the profile")
	fs.Float64Var(&cfg.TicksPerMillisecond, "ticks-per-ms", 10000, "trace clock ticks per millisecond")
	fs.BoolVarP(&cfg.ShowVersion, "version", "v", false, "print version and exit")

	usage := func() string {
		return fmt.Sprintf("Usage: %s [flags] <trace.jsonl> <pid|image-name>\n%s", programName, fs.FlagUsages())
	}

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, errors.New(usage())
		}
		return nil, fmt.Errorf("%w\n%s", err, usage())
	}

	if cfg.ShowVersion {
		return cfg, nil
	}

	positional := fs.Args()
	if len(positional) == 0 {
		return nil, fmt.Errorf("no trace specified\n%s", usage())
	}
	if len(positional) > 2 {
		return nil, fmt.Errorf("unexpected arguments: %s\n%s", strings.Join(positional[2:], " "), usage())
	}
	cfg.TracePath = positional[0]

	switch {
	case len(positional) == 2 && matchExpr != "":
		return nil, fmt.Errorf("a process selector and --match-expr are mutually exclusive")
	case len(positional) == 2:
		sel, err := target.ParseSelector(positional[1])
		if err != nil {
			return nil, fmt.Errorf("%w\n%s", err, usage())
		}
		cfg.Selector = sel
	case matchExpr != "":
		cfg.Selector = target.Selector{Expr: matchExpr}
	default:
		return nil, fmt.Errorf("%w\n%s", target.ErrNoSelector, usage())
	}

	switch cfg.Format {
	case FormatGecko:
		if cfg.OutputPath == "" {
			cfg.OutputPath = "gecko.json"
		}
	case FormatPprof:
		if cfg.OutputPath == "" {
			cfg.OutputPath = "profile.pb.gz"
		}
	default:
		return nil, fmt.Errorf("unknown format %q (want %s or %s)", cfg.Format, FormatGecko, FormatPprof)
	}

	if cfg.TicksPerMillisecond <= 0 {
		return nil, fmt.Errorf("--ticks-per-ms must be positive, got %v", cfg.TicksPerMillisecond)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("--interval must be positive, got %v", cfg.Interval)
	}

	return cfg, nil
}
