package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/nicdma/dma/config"
	"github.com/joshuapare/nicdma/dma/dmalog"
	"github.com/joshuapare/nicdma/dma/render"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	noColor    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "dmactl",
	Short: "Inspect NIC DMA capabilities and exercise the DMA allocators",
	Long: `dmactl inspects the per-device DMA capability registry and drives the
boundary-safe pool allocator and per-device buffer rings against simulated or
real memory, reporting statistics, health and layout violations.`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := dmalog.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		dmalog.UseLogger(logger)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "Configuration file (YAML or JSON, default $"+config.EnvConfigFile+")")
}

func execute() {
	err := rootCmd.Execute()
	_ = dmalog.L().Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// newPrinter returns a table printer on stdout
func newPrinter() *render.Printer {
	return render.New(os.Stdout, !noColor)
}

// loadConfig loads --config, falling back to the environment and defaults
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}
