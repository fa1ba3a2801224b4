package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/user/ideascan/internal/config"
	"github.com/user/ideascan/internal/logging"
	"github.com/user/ideascan/internal/tui"
)

var (
	configPath string
	dataDir    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "ideascan",
	Short: "Reddit business idea scanner",
	Long:  "Scans subreddits for business ideas, scores them, optionally enriches them with an LLM, and reports the best ones.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		return tui.Run(cfg)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration, applies the persistent flag
// overrides and installs the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	return cfg, logger, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./config.yaml or ./data/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: data)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}
