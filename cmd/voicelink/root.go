package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rvald/voicelink/internal/config"
)

const version = "0.1.0"

var (
	// Persistent flags
	cfgPath     string
	cfgStateDir string
)

var rootCmd = &cobra.Command{
	Use:           "voicelink",
	Short:         "Guild voice link orchestrator",
	Long:          `Discord music bot that drives voice playback through remote audio nodes, or locally when none are configured.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to voicelink.yml")
	rootCmd.PersistentFlags().StringVar(&cfgStateDir, "state-dir", "", "Directory for logs and state (default XDG_STATE_HOME/voicelink)")
}

// loadConfig reads --config and applies --state-dir.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if cfgStateDir != "" {
		cfg.StateDir = cfgStateDir
	}
	return cfg, nil
}

func configError(err error) error {
	return fmt.Errorf("config: %w", err)
}
