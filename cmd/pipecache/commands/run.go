package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/pipecache/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [targets...]",
		Short: "Run the pipeline, or only the given tasks",
		Long: "Run the pipeline. With targets only the matching tasks run and the outputs\n" +
			"of their upstream tasks are read from the store.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			withUpstream, _ := cmd.Flags().GetBool("with-upstream")
			parallelism, _ := cmd.Flags().GetInt("parallelism")
			return c.app.Run(cmd.Context(), args, app.RunOptions{
				WithUpstream: withUpstream,
				Parallelism:  parallelism,
			})
		},
	}
	cmd.Flags().BoolP("with-upstream", "u", false, "Also run the upstream tasks of the targets")
	cmd.Flags().IntP("parallelism", "p", 0, "Maximum number of concurrent tasks (0 uses the configured value)")
	return cmd
}
