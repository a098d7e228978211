// Package main implements the CLI driver for the callgraph analyzer.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/715d/callgraph/internal/config"
	"github.com/715d/callgraph/internal/export"
	"github.com/715d/callgraph/pkg/analyzer"
	"github.com/715d/callgraph/pkg/dispatch"
	"github.com/715d/callgraph/pkg/model"
)

// Flags holds all command-line options for the callgraph analyzer.
type Flags struct {
	ConfigFile  string   // explicit config file path
	Algorithm   string   // dispatch strategy: cha or rta
	EntryPoints string   // entry-point seeding strategy
	Namespaces  []string // entry-point namespace filter
	Workers     int      // scanning parallelism
	Format      string   // output format: text, json, dot
	MaxEdges    int      // DOT edge cap, 0 = unlimited
	Verbose     bool     // enables detailed logging and statistics
	Profile     bool     // enables CPU and memory profiling
}

const exitError = 2

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var flags Flags

func main() {
	var rootCmd = &cobra.Command{
		Use:   "callgraph <snapshot-dir>",
		Short: "Build a whole-program call graph from a program snapshot",
		Long: `callgraph performs static reachability analysis over a compiled
object-oriented program snapshot, producing a caller/callee graph.

Virtual dispatch is resolved by one of two strategies:
- cha: every structurally possible overrider in the type hierarchy
- rta: only overriders on types proven constructed during the run`,
		Example: `  callgraph ./snapshot                      # CHA from program entry points
  callgraph --algorithm rta ./snapshot      # instantiation-filtered analysis
  callgraph --entrypoints public-concrete --namespace App.Web ./snapshot
  callgraph --format dot --max-edges 500 ./snapshot > graph.dot`,
		Args:               cobra.ExactArgs(1),
		RunE:               runCommand,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Version:            version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("callgraph version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	rootCmd.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "Config file path (default: discover .callgraph.{yaml,toml,json})")
	rootCmd.PersistentFlags().StringVar(&flags.Algorithm, "algorithm", "", "Dispatch strategy: cha or rta")
	rootCmd.PersistentFlags().StringVar(&flags.EntryPoints, "entrypoints", "", "Entry-point strategy: program-entry, public-concrete, accessible-concrete, concrete, all")
	rootCmd.PersistentFlags().StringSliceVar(&flags.Namespaces, "namespace", nil, "Namespace filter for entry-point types (repeatable)")
	rootCmd.PersistentFlags().IntVar(&flags.Workers, "workers", 0, "Scanning parallelism (default from config, 1 = sequential)")
	rootCmd.PersistentFlags().StringVar(&flags.Format, "format", "", "Output format: text, json, dot")
	rootCmd.PersistentFlags().IntVar(&flags.MaxEdges, "max-edges", -1, "Maximum edges in DOT output (0 = unlimited)")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&flags.Profile, "profile", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")

	if err := rootCmd.Execute(); err != nil {
		_ = teardown(nil, nil)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		os.Exit(exitError)
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	strategy, err := dispatch.ParseStrategy(cfg.Algorithm)
	if err != nil {
		return err
	}
	entry, err := analyzer.ParseEntryStrategy(cfg.EntryPoints)
	if err != nil {
		return err
	}

	slog.Info("loading program snapshot", "dir", args[0])
	bar := newLoadSpinner()
	program, err := model.LoadProgram(cmd.Context(), model.LoaderOptions{
		Dir: args[0],
		OnModule: func(name string) {
			_ = bar.Add(1)
		},
	})
	_ = bar.Finish()
	_ = bar.Clear()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	slog.Info("loaded program", "modules", len(program.Modules))

	a, err := analyzer.New(program, analyzer.Options{
		Strategy:    strategy,
		EntryPoints: entry,
		Namespaces:  cfg.Namespaces,
		Workers:     cfg.Workers,
	})
	if err != nil {
		return fmt.Errorf("configure analysis: %w", err)
	}

	slog.Info("running analysis", "algorithm", strategy, "entrypoints", entry)
	result, err := a.Run()
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	slog.Info("analysis completed",
		"nodes", result.Stats.Nodes,
		"edges", result.Stats.Edges,
		"dur", result.Stats.Duration)

	return writeResult(result, cfg)
}

// resolveConfig layers the config file over defaults and changed CLI flags
// over the file.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	path := flags.ConfigFile
	if path == "" {
		path = config.Discover(".")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("algorithm") {
		cfg.Algorithm = flags.Algorithm
	}
	if cmd.Flags().Changed("entrypoints") {
		cfg.EntryPoints = flags.EntryPoints
	}
	if cmd.Flags().Changed("namespace") {
		cfg.Namespaces = flags.Namespaces
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = flags.Workers
	}
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = flags.Format
	}
	if cmd.Flags().Changed("max-edges") {
		cfg.Output.MaxEdges = flags.MaxEdges
	}
	return cfg, nil
}

func newLoadSpinner() *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription("loading modules"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

func writeResult(result *analyzer.Result, cfg *config.Config) error {
	switch cfg.Output.Format {
	case "json":
		out, err := export.JSON(result, version)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case "dot":
		out, err := export.DOT(result.Graph, "callgraph", cfg.Output.MaxEdges)
		if err != nil {
			return err
		}
		fmt.Print(out)
	case "text":
		fmt.Print(formatTextOutput(result))
	default:
		return fmt.Errorf("unknown output format %q", cfg.Output.Format)
	}
	return nil
}

func formatTextOutput(result *analyzer.Result) string {
	var output strings.Builder

	for _, e := range result.Graph.Edges() {
		output.WriteString(e.Caller)
		output.WriteString(" -> ")
		output.WriteString(e.Callee)
		output.WriteByte('\n')
	}

	if flags.Verbose {
		output.WriteByte('\n')
		table := tablewriter.NewTable(&output)
		table.Header([]string{"Metric", "Value"})
		table.Append([]string{"Methods scanned", strconv.Itoa(result.Stats.MethodsScanned)})
		table.Append([]string{"Nodes", strconv.Itoa(result.Stats.Nodes)})
		table.Append([]string{"Edges", strconv.Itoa(result.Stats.Edges)})
		table.Append([]string{"Instantiated types", strconv.Itoa(result.Stats.InstantiatedTypes)})
		table.Append([]string{"Refinement passes", strconv.Itoa(result.Stats.RefinementPasses)})
		table.Append([]string{"Duration", result.Stats.Duration.String()})
		table.Append([]string{"Diagnostics", strconv.Itoa(len(result.Diagnostics))})
		_ = table.Render()

		for _, d := range result.Diagnostics {
			output.WriteString(fmt.Sprintf("diagnostic: %s: %s\n", d.Method, d.Detail))
		}
	}

	return output.String()
}

var cpuProfile *os.File

func setup(_ *cobra.Command, _ []string) error {
	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if flags.Verbose {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if flags.Format == "json" {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
	}

	if !flags.Profile {
		return nil
	}

	// Start CPU profiling.
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
	if !flags.Profile || cpuProfile == nil {
		return nil
	}

	// Stop CPU profiling and close file.
	pprof.StopCPUProfile()
	defer cpuProfile.Close()
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	// Write memory profile.
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
