// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/logging"
)

// Root returns the root command for the awslbc CLI.
func Root() *cobra.Command {
	var (
		verbose bool
		jsonLog bool
	)

	cmd := &cobra.Command{
		Use:           "awslbc",
		Short:         "Install the AWS Load Balancer Controller with its IAM role",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SetContext(logging.Setup(cmd.Context(), logging.Options{
				Verbose: verbose,
				JSON:    jsonLog,
				Writer:  cmd.ErrOrStderr(),
			}))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging and show unchanged items")
	cmd.PersistentFlags().BoolVar(&jsonLog, "log-json", false, "Write logs as JSON")

	cmd.AddCommand(Init())
	cmd.AddCommand(Preview())
	cmd.AddCommand(Apply())
	cmd.AddCommand(Destroy())
	cmd.AddCommand(Render())
	cmd.AddCommand(Version())

	return cmd
}
