package commands

import (
	"github.com/spf13/cobra"

	"github.com/jaxxstorm/awsloadbalancercontroller/cmd/awslbc/handlers"
)

// Apply returns the command that creates or updates the declared resources.
//
// Flags:
//
//	--config, -c: Path to stack file (default: auto-detect awslbc.yaml)
//	--wait: Wait for Deployments to become available
//	--tui: Follow progress in an interactive terminal UI
//
// Environment variables:
//
//	AWS_REGION, AWS_PROFILE: AWS credentials and region
//	KUBECONFIG: cluster access
//	AWSLBC_BACKEND: state backend URL
func Apply() *cobra.Command {
	var flags *stackFlags

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update the declared resources",
		Long: `Create or update every resource declared in the stack file.

Resources are applied in dependency order. For the load balancer controller
this creates the IAM role and policy first, then the CRDs, and then the
controller objects. Resources recorded in state but removed from the stack
file are deleted once everything declared has been applied.

Examples:
  # Apply awslbc.yaml from the current directory
  awslbc apply

  # Apply a specific file and wait for the controller to become available
  awslbc apply -c production.yaml --wait

  # Follow progress resource by resource
  awslbc apply --tui`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), flags.configPath, flags.resolve(cmd))
		},
	}

	flags = bindStackFlags(cmd)
	flags.bindWaitFlag(cmd)
	flags.bindTUIFlag(cmd)

	return cmd
}
