package commands

import "github.com/spf13/cobra"

func (c *CLI) newRecordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "records [task]",
		Short: "List stored output records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var task string
			if len(args) == 1 {
				task = args[0]
			}
			return c.app.Records(cmd.Context(), task)
		},
	}
}
