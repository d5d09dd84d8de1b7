package cli

import (
	"github.com/spf13/cobra"

	"ffcalendar/internal/app"
)

var exportOpts app.ExportOptions

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored events as CSV and/or a PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), exportOpts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOpts.From, "from", "", "First day (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportOpts.To, "to", "", "Last day (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().IntVar(&exportOpts.Days, "days", 0, "Days to export when --from is omitted (defaults to config)")
	exportCmd.Flags().StringVar(&exportOpts.PNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportOpts.CSVPath, "csv", "", "Path to write CSV data")
}
