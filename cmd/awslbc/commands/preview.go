package commands

import (
	"github.com/spf13/cobra"

	"github.com/jaxxstorm/awsloadbalancercontroller/cmd/awslbc/handlers"
)

// Preview returns the command that shows the changes apply would make.
func Preview() *cobra.Command {
	var flags *stackFlags

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the changes apply would make",
		Long: `Compare the desired resources with the recorded state and list what
apply would create, update or delete. Nothing is changed.

Use -v to also list unchanged items.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Preview(cmd.Context(), flags.configPath, flags.resolve(cmd))
		},
	}

	flags = bindStackFlags(cmd)

	return cmd
}
