package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/pyama86/securereport/handler"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Slack bot and the metrics endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireEnv("SLACK_BOT_TOKEN", "SLACK_APP_TOKEN"); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		slog.Info("Server started")
		if err := handler.Handle(ctx, a.config, a.workflow, a.lookup); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
