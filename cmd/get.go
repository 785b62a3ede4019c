package cmd

import (
	"time"

	"github.com/pyama86/securereport/domain/usecase"
	"github.com/pyama86/securereport/presentation/report"
	"github.com/spf13/cobra"
)

var byIndex bool

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch an incident from the ledger by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		if byIndex {
			index, err := usecase.ParseIncidentID(args[0])
			if err != nil {
				return err
			}
			incident, err := a.lookup.FetchByIndex(cmd.Context(), index)
			if err != nil {
				return err
			}
			cmd.Print(report.Render(incident, time.Local))
			return nil
		}

		incident, err := a.workflow.Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		cmd.Print(report.Render(incident, time.Local))
		return nil
	},
}

func init() {
	getCmd.Flags().BoolVar(&byIndex, "index", false, "read through the incidents storage accessor instead of getIncident")
	rootCmd.AddCommand(getCmd)
}
