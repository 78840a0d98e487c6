package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/potential/internal/config"
	"github.com/danielpatrickdp/potential/internal/logging"
)

// #region root
var (
	logLevel  string
	logFormat string
	dbPath    string

	logger    *slog.Logger
	serverCfg config.ServerConfig

	rootCmd = &cobra.Command{
		Use:   "potential",
		Short: "Build, store and evaluate piecewise 1-D potentials",
		Long: `potential evaluates piecewise potentials described by parameter and
region definitions (.cfg, .yaml or .json), keeps a versioned catalog of
them in SQLite and serves the catalog over gRPC.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			serverCfg = cfg

			logger, err = logging.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			return err
		},
	}
)

func init() {
	// Empty flags fall back to the POTENTIAL_* environment.
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "catalog database path")

	rootCmd.AddCommand(evalCmd, saveCmd, rollbackCmd, checkCmd, serveCmd)
}

// #endregion root

// #region main
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main
