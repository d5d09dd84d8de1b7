package cli

import (
	"github.com/spf13/cobra"

	"ffcalendar/internal/app"
)

var notifyOpts app.NotifyOptions

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send a digest of one stored day to the alert channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Notify(cmd.Context(), notifyOpts)
	},
}

func init() {
	notifyCmd.Flags().StringVar(&notifyOpts.Day, "day", "", "Day to announce (YYYY-MM-DD, defaults to today)")
}
