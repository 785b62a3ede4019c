package cmd

import (
	"strings"
	"time"

	"github.com/pyama86/securereport/presentation/report"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <description...>",
	Short: "Record an incident on the ledger and wait for confirmation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if _, err := a.workflow.Connect(cmd.Context()); err != nil {
			return err
		}

		a.workflow.SetPendingDescription(strings.Join(args, " "))
		incident, err := a.workflow.SubmitPending(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Print(report.Render(incident, time.Local))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
