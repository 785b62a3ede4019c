package cmd

import (
	"log/slog"
	"os"
	"path"

	"github.com/spf13/cobra"
)

var (
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "securereport",
	Short:         "securereport records incidents on an append-only on-chain ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// デフォルトはホームディレクトリのsecurereport.toml
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Error("Failed to get user home directory", slog.Any("error", err))
		os.Exit(1)
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", path.Join(home, "securereport.toml"), "config file path")
}
