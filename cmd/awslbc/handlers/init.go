package handlers

import (
	"context"
	"fmt"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/config"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/config/wizard"
)

// Factory function variables for init - can be replaced in tests.
var (
	wizardFileExists       = wizard.FileExists
	wizardConfirmOverwrite = wizard.ConfirmOverwrite
	wizardRunWizard        = wizard.RunWizard
	wizardWriteConfig      = wizard.WriteConfig
)

// Init runs the configuration wizard and writes the result to outputPath.
// An existing file is only replaced after confirmation, or when force is set.
func Init(ctx context.Context, outputPath string, force bool) error {
	if wizardFileExists(outputPath) && !force {
		overwrite, err := wizardConfirmOverwrite(outputPath)
		if err != nil {
			return fmt.Errorf("failed to confirm overwrite: %w", err)
		}
		if !overwrite {
			fmt.Fprintln(stdout, "Aborted; existing configuration kept.")
			return nil
		}
	}

	printWelcome()

	result, err := wizardRunWizard(ctx)
	if err != nil {
		return fmt.Errorf("wizard canceled: %w", err)
	}

	cfg := result.ToConfig()
	if err := wizardWriteConfig(cfg, outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath, cfg)
	return nil
}

func printWelcome() {
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, headerStyle.Render("awslbc - AWS Load Balancer Controller"))
	fmt.Fprintln(stdout, dimStyle.Render("====================================="))
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "This wizard creates a stack file that installs the controller")
	fmt.Fprintln(stdout, "with an IAM role for its service account.")
	fmt.Fprintln(stdout)
}

func printInitSuccess(outputPath string, cfg *config.Config) {
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, successStyle.Render("Configuration saved!"))
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  File: %s\n", outputPath)
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, "Stack Summary")
	fmt.Fprintln(stdout, "-------------")
	fmt.Fprintf(stdout, "  Stack:          %s\n", cfg.Stack)
	if d := cfg.Deployment; d != nil {
		fmt.Fprintf(stdout, "  Cluster:        %s\n", d.ClusterName)
		fmt.Fprintf(stdout, "  Namespace:      %s\n", d.Namespace)
		fmt.Fprintf(stdout, "  Install method: %s\n", d.InstallMethod)
		fmt.Fprintf(stdout, "  Install CRDs:   %t\n", d.InstallCRDs)
	}
	if cfg.Region != "" {
		fmt.Fprintf(stdout, "  Region:         %s\n", cfg.Region)
	}
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, "Next Steps")
	fmt.Fprintln(stdout, "----------")
	fmt.Fprintf(stdout, "  1. Review %s\n", outputPath)
	fmt.Fprintln(stdout, "  2. Preview the changes:")
	fmt.Fprintf(stdout, "     awslbc preview -c %s\n", outputPath)
	fmt.Fprintln(stdout, "  3. Install the controller:")
	fmt.Fprintf(stdout, "     awslbc apply -c %s\n", outputPath)
	fmt.Fprintln(stdout)
}
