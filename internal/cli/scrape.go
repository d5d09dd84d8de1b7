package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ffcalendar/internal/app"
)

var scrapeOpts app.ScrapeOptions

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape an inclusive range of calendar days",
	Example: `  ffcal scrape --start 2024-01-01 --end 2024-01-31
  ffcal scrape --start 2024-01-05 --end 2024-01-05 --details --tz Europe/London --csv out.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if scrapeOpts.Start == "" || scrapeOpts.End == "" {
			return fmt.Errorf("--start and --end must be provided")
		}
		a := getApp()
		a.SetOutput(cmd.OutOrStdout())
		return a.Scrape(cmd.Context(), scrapeOpts)
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeOpts.Start, "start", "", "First day (YYYY-MM-DD, inclusive)")
	scrapeCmd.Flags().StringVar(&scrapeOpts.End, "end", "", "Last day (YYYY-MM-DD, inclusive)")
	scrapeCmd.Flags().StringVar(&scrapeOpts.CSVPath, "csv", "", "CSV dataset path (selects the csv driver)")
	scrapeCmd.Flags().StringVar(&scrapeOpts.Timezone, "tz", "", "IANA timezone of the calendar (defaults to config)")
	scrapeCmd.Flags().BoolVar(&scrapeOpts.Details, "details", false, "Scrape event detail panels")
	scrapeCmd.Flags().BoolVar(&scrapeOpts.Fresh, "fresh", false, "Discard the stored dataset before scraping")
}
