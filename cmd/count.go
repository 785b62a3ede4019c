package cmd

import (
	"github.com/pyama86/securereport/presentation/report"
	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of incidents recorded on the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.lookup.Count(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Print(report.RenderCount(n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
}
