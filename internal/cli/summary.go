package cli

import (
	"github.com/spf13/cobra"
)

func newSummaryCommand(opts *RootOptions) *cobra.Command {
	var n int
	var interval string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show status distribution, activity and peak hours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			sum, err := c.Summary(cmd.Context(), n, interval)
			if err != nil {
				return err
			}
			return opts.printer(cmd).Summary(sum)
		},
	}
	cmd.Flags().IntVarP(&n, "top", "n", 3, "number of peak hours")
	cmd.Flags().StringVarP(&interval, "interval", "i", "daily", "activity bucket (hourly|daily|monthly)")
	return cmd
}
