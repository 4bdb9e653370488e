// Package main implements the CLI driver for the fb-contrib bytecode detectors.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"

	"github.com/phermsdorf/fb-contrib/internal/config"
	"github.com/phermsdorf/fb-contrib/internal/report"
	"github.com/phermsdorf/fb-contrib/pkg/detect"
	"github.com/phermsdorf/fb-contrib/pkg/detect/enumcollections"
	"github.com/phermsdorf/fb-contrib/pkg/fbcontrib"
)

// Config holds all command-line configuration options for the analyzer.
type Config struct {
	Paths      []string // class files, directories, and jars to analyze
	Verbose    bool     // enables detailed output and statistics
	Format     string   // output format: text, json, or table
	ConfigFile string   // explicit config file path
	Classpath  []string // extra metadata resolution roots
	Workers    int      // analysis parallelism
	Profile    bool     // enables CPU and memory profiling
}

const (
	exitFindings = 1
	exitError    = 2
)

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var cfg Config

func main() {
	var rootCmd = &cobra.Command{
		Use:   "fbcontrib [paths...]",
		Short: "Find bug patterns in JVM bytecode",
		Long: `fbcontrib analyzes compiled JVM class files for bug patterns.

Detectors:
- UseEnumCollections: sets and maps keyed by enums that should use the
  enum-optimized EnumSet/EnumMap instead of general hashing`,
		Example: `  fbcontrib ./build/classes            # Analyze a class directory
  fbcontrib app.jar                    # Analyze a jar
  fbcontrib -v --format=table classes  # Verbose output with a table report
  fbcontrib --format=json app.jar > report.json`,
		Args:               cobra.ArbitraryArgs,
		RunE:               runCommand,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Version:            version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("fbcontrib version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfg.Format, "format", "", "Output format: text, json, or table")
	rootCmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "Config file path (default .fbcontrib.yaml if present)")
	rootCmd.PersistentFlags().StringSliceVar(&cfg.Classpath, "classpath", nil, "Extra roots (dirs, jars) for class metadata resolution")
	rootCmd.PersistentFlags().IntVar(&cfg.Workers, "workers", 0, "Number of parallel class analyses (0 = NumCPU)")
	rootCmd.PersistentFlags().BoolVar(&cfg.Profile, "profile", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")

	if err := rootCmd.Execute(); err != nil {
		_ = teardown(nil, nil)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		var cErr *codedError
		if errors.As(err, &cErr) {
			os.Exit(cErr.code)
		}
		os.Exit(exitError)
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		cfg.Paths = args
	} else {
		cfg.Paths = []string{"."}
	}

	fileCfg, err := config.Load(cfg.ConfigFile)
	if err != nil {
		return errWithCode(err, exitError)
	}
	merged := mergeConfig(&cfg, fileCfg)

	slog.Info("starting bytecode analysis", "paths", merged.Paths)

	result, err := runAnalysis(cmd.Context(), merged, fileCfg)
	if err != nil {
		return errWithCode(fmt.Errorf("analyze: %w", err), exitError)
	}

	if err := report.Write(os.Stdout, result, report.Format(merged.Format)); err != nil {
		return errWithCode(fmt.Errorf("format results: %w", err), exitError)
	}

	if merged.Verbose {
		for _, m := range result.MissingClasses {
			slog.Warn("class could not be resolved", "class", m.ClassName, "error", m.Error)
		}
	}

	if len(result.Findings) > 0 {
		return errWithCode(nil, exitFindings)
	}
	return nil
}

// mergeConfig applies file config underneath explicit flags.
func mergeConfig(flags *Config, fileCfg *config.Config) *Config {
	merged := *flags
	if merged.Format == "" {
		merged.Format = fileCfg.Output.Format
	}
	if merged.Workers == 0 {
		merged.Workers = fileCfg.Workers
	}
	merged.Classpath = append(merged.Classpath, fileCfg.Classpath...)
	return &merged
}

func runAnalysis(ctx context.Context, cfg *Config, fileCfg *config.Config) (*fbcontrib.Result, error) {
	start := time.Now()

	slog.Info("loading classes", "paths", cfg.Paths)
	classes, err := fbcontrib.LoadClasses(ctx, fbcontrib.LoaderOptions{
		Paths:   cfg.Paths,
		Workers: cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("loading classes: %w", err)
	}
	slog.Info("loaded classes", "num", len(classes))

	var factories []detect.Factory
	if fileCfg.Enabled("UseEnumCollections") {
		factories = append(factories, enumcollections.Factory)
	}
	if len(factories) == 0 {
		return nil, fmt.Errorf("all detectors are disabled by configuration")
	}

	analyzer := fbcontrib.NewAnalyzer(fbcontrib.AnalyzerOptions{
		ClasspathRoots: cfg.Classpath,
		Workers:        cfg.Workers,
	}, factories...)
	result, err := analyzer.Analyze(classes)
	if err != nil {
		return nil, fmt.Errorf("analyze classes: %w", err)
	}
	slog.Info("analysis completed", "dur", time.Since(start))

	return result, nil
}

var cpuProfile *os.File

func setup(_ *cobra.Command, _ []string) error {
	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if cfg.Verbose {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.Format == "json" {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
	}

	if !cfg.Profile {
		return nil
	}

	var err error
	cpuProfile, err = os.Create("cpu.prof")
	if err != nil {
		return fmt.Errorf("creating cpu.prof: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		_ = cpuProfile.Close()
		return fmt.Errorf("starting CPU profile: %w", err)
	}
	slog.Info("cpu profiling started", "file", "cpu.prof")
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if !cfg.Profile || cpuProfile == nil {
		return nil
	}

	pprof.StopCPUProfile()
	defer cpuProfile.Close()
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	memFile, err := os.Create("mem.prof")
	if err != nil {
		return fmt.Errorf("creating mem.prof: %w", err)
	}
	defer memFile.Close()
	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	slog.Info("memory profiling completed", "file", "mem.prof")
	return nil
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}
