package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/nicdma/dma/config"
)

var dumpFormat string

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with dmactl configuration files",
	}
	dump := newConfigDumpCmd()
	dump.Flags().StringVarP(&dumpFormat, "format", "f", "yaml", "Output format (yaml, json)")
	cmd.AddCommand(dump)
	rootCmd.AddCommand(cmd)
}

func newConfigDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration",
		Long: `The dump command prints the configuration after defaults, the config
file and validation have been applied. The output can be used as a
starting point for a config file.

Example:
  dmactl config dump > dma.yaml
  dmactl config dump --config dma.yaml --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigDump()
		},
	}
}

func runConfigDump() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f := config.FormatYAML
	switch dumpFormat {
	case "yaml", "yml":
	case "json":
		f = config.FormatJSON
	default:
		return fmt.Errorf("unknown format: %s (must be yaml or json)", dumpFormat)
	}
	if jsonOut {
		f = config.FormatJSON
	}
	data, err := config.Marshal(cfg, f)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	if err == nil && f == config.FormatJSON {
		_, err = fmt.Fprintln(os.Stdout)
	}
	return err
}
