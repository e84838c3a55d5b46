// Package commands implements the CLI commands for pipecache.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/pipecache/internal/app"
	"go.trai.ch/pipecache/internal/build"
)

// CLI represents the command line interface for pipecache.
type CLI struct {
	app     Application
	logs    LogSettings
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Run(ctx context.Context, targets []string, opts app.RunOptions) error
	Records(ctx context.Context, task string) error
	Clean(ctx context.Context) error
}

// LogSettings adjusts the log output at startup.
type LogSettings interface {
	SetJSON(enabled bool)
	SetVerbose(enabled bool)
}

// New creates a new CLI instance with the given app. logs may be nil.
func New(a Application, logs LogSettings) *CLI {
	rootCmd := &cobra.Command{
		Use:           "pipecache",
		Short:         "Cached execution of task pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages")
	rootCmd.PersistentFlags().Bool("json", false, "Log one JSON object per line")

	c := &CLI{
		app:     a,
		logs:    logs,
		rootCmd: rootCmd,
	}
	rootCmd.PersistentPreRun = c.applyLogFlags

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newRecordsCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

func (c *CLI) applyLogFlags(cmd *cobra.Command, _ []string) {
	if c.logs == nil {
		return
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		c.logs.SetVerbose(true)
	}
	if cmd.Flags().Changed("json") {
		asJSON, _ := cmd.Flags().GetBool("json")
		c.logs.SetJSON(asJSON)
	}
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
