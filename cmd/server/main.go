package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Jehaaaa/sam-extractor/internal/config"
	"github.com/Jehaaaa/sam-extractor/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// app carries state shared by all subcommands once PersistentPreRunE ran.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.AppConfig
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "sam-extractor",
		Short: "Match Manifest/PCID text files and convert text archives to spreadsheets",
		Long: `sam-extractor turns archives of text files into spreadsheets.

  match    joins Manifest and PCID files of a RAR archive on a 6-character key
  convert  turns every text file of a ZIP archive into a (Prefix, Content) row
  serve    exposes both pipelines over HTTP`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to the XML config (default: next to the executable)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(a),
		newPipelineCmd(a, pipelineMatch),
		newPipelineCmd(a, pipelineConvert),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	path := a.configPath
	if path == "" {
		exePath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		path = filepath.Join(filepath.Dir(exePath), config.ConfigFileName)
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.logLevel != "" {
		cfg.Advanced.LogLevel = a.logLevel
	}

	logger, err := logging.New(cfg.Advanced.LogLevel, cfg.Advanced.DevelopmentLogging)
	if err != nil {
		return err
	}

	a.configPath = path
	a.cfg = cfg
	a.logger = logger
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skip config loading for version.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sam-extractor %s (built %s)\n", Version, BuildTime)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
