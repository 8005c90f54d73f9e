package commands

import (
	"github.com/spf13/cobra"

	"github.com/jaxxstorm/awsloadbalancercontroller/cmd/awslbc/handlers"
)

// Destroy returns the command that deletes every recorded resource.
func Destroy() *cobra.Command {
	var flags *stackFlags

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete every resource recorded for the stack",
		Long: `Delete every resource recorded in the stack's state, dependents first.

Kubernetes objects are removed before the IAM role and policy of the
controller. The kube-system, kube-public, kube-node-lease and default
namespaces are never deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), flags.configPath, flags.resolve(cmd))
		},
	}

	flags = bindStackFlags(cmd)
	flags.bindTUIFlag(cmd)

	return cmd
}
