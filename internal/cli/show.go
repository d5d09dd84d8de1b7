package cli

import (
	"github.com/spf13/cobra"

	"ffcalendar/internal/app"
)

var showOpts app.ShowOptions

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display stored events",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := getApp()
		a.SetOutput(cmd.OutOrStdout())
		return a.Show(cmd.Context(), showOpts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showOpts.From, "from", "", "First day (YYYY-MM-DD, defaults to today)")
	showCmd.Flags().StringVar(&showOpts.To, "to", "", "Last day (YYYY-MM-DD, inclusive, defaults to today)")
	showCmd.Flags().StringVar(&showOpts.Currency, "currency", "", "Only show this currency")
	showCmd.Flags().StringVar(&showOpts.MinImpact, "min-impact", "", "Minimum impact (High or Medium)")
}
