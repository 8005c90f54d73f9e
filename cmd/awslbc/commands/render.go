package commands

import (
	"github.com/spf13/cobra"

	"github.com/jaxxstorm/awsloadbalancercontroller/cmd/awslbc/handlers"
)

// Render returns the command that prints the desired objects as YAML.
func Render() *cobra.Command {
	var (
		flags   *stackFlags
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the desired objects without applying them",
		Long: `Print the Kubernetes objects of every declared resource as a YAML stream,
in apply order. IAM resources are listed as comments.

The cluster is consulted for object scopes and existing webhook
certificates when it is reachable; use --offline to skip it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := flags.resolve(cmd)
			o.Offline = offline
			return handlers.Render(cmd.Context(), flags.configPath, o)
		},
	}

	flags = bindStackFlags(cmd)
	cmd.Flags().BoolVar(&offline, "offline", false, "Render without contacting the cluster")

	return cmd
}
