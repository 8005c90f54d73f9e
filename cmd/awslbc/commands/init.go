package commands

import (
	"github.com/spf13/cobra"

	"github.com/jaxxstorm/awsloadbalancercontroller/cmd/awslbc/handlers"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/config"
)

// Init returns the command for interactively creating a stack file.
//
// Flags:
//
//	--output, -o: Path to output file (default "awslbc.yaml")
//	--force, -f: Overwrite an existing file without asking
func Init() *cobra.Command {
	var (
		outputPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a stack file",
		Long: `Interactively create an awslbc.yaml stack file.

The wizard asks for:

  - Stack name and state backend
  - EKS cluster name and IAM OIDC provider ARN
  - OIDC issuer and region (derived from the provider when possible)
  - Controller namespace, install method and CRD handling

The generated file declares a single controller deployment. Add
config_groups and config_files to manage related manifests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context(), outputPath, force)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", config.DefaultConfigFilename, "Output file path")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file without asking")

	return cmd
}
