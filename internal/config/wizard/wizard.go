package wizard

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/config"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/iam"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/awslbc"
)

// isTerminal reports whether the wizard can prompt. Replaced in tests.
var isTerminal = func() bool {
	return isInteractive(os.Stdin.Fd()) && isInteractive(os.Stdout.Fd())
}

func isInteractive(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// WizardResult holds the answers from the interactive wizard.
type WizardResult struct {
	Stack   string
	Backend string

	ClusterName  string
	OIDCProvider string
	// OIDCIssuer may be empty, in which case it is taken from the provider.
	OIDCIssuer string
	Region     string

	Namespace     string
	InstallMethod string
	InstallCRDs   bool
	Wait          bool
}

// RunWizard prompts for a stack file. It returns ErrNotTerminal when stdin
// or stdout is redirected.
func RunWizard(ctx context.Context) (*WizardResult, error) {
	if !isTerminal() {
		return nil, ErrNotTerminal
	}

	result := &WizardResult{
		Stack:         "dev",
		Namespace:     awslbc.DefaultNamespace,
		InstallMethod: string(awslbc.InstallMethodManifests),
		InstallCRDs:   true,
	}

	if err := runStackGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("stack: %w", err)
	}
	if err := runClusterGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}
	if err := runControllerGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}

	return result, nil
}

func runStackGroup(ctx context.Context, result *WizardResult) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Stack name").
				Description("Separates the state of independent installations").
				Placeholder("dev").
				Value(&result.Stack).
				Validate(validateStackName),
			huh.NewInput().
				Title("State backend (optional)").
				Description("file://<dir> or s3://<bucket>/<prefix>. Leave empty for ~/.awslbc/state.").
				Placeholder("s3://my-bucket/awslbc").
				Value(&result.Backend).
				Validate(validateBackend),
		).Title("Stack"),
	).RunWithContext(ctx)
}

func runClusterGroup(ctx context.Context, result *WizardResult) error {
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("EKS cluster name").
				Placeholder("my-cluster").
				Value(&result.ClusterName).
				Validate(validateClusterName),
			huh.NewInput().
				Title("IAM OIDC provider ARN").
				Description("aws iam list-open-id-connect-providers").
				Placeholder("arn:aws:iam::123456789012:oidc-provider/oidc.eks.us-west-2.amazonaws.com/id/EXAMPLE").
				Value(&result.OIDCProvider).
				Validate(validateProvider),
		).Title("Cluster"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	result.OIDCProvider = strings.TrimSpace(result.OIDCProvider)

	if provider, err := iam.ParseOIDCProviderARN(result.OIDCProvider); err == nil {
		result.OIDCIssuer = "https://" + provider.Issuer
		result.Region = iam.RegionFromIssuer(provider.Issuer)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("OIDC issuer URL").
				Description("Derived from the provider; change it only for non-EKS issuers").
				Value(&result.OIDCIssuer).
				Validate(validateIssuer(result.OIDCProvider)),
			huh.NewInput().
				Title("AWS region").
				Description("Leave empty to use AWS_REGION").
				Placeholder("us-west-2").
				Value(&result.Region),
		).Title("Issuer"),
	).RunWithContext(ctx)
}

func runControllerGroup(ctx context.Context, result *WizardResult) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Namespace").
				Options(NamespaceOptions...).
				Value(&result.Namespace).
				Validate(validateNamespace),
			huh.NewSelect[string]().
				Title("Install method").
				Options(InstallMethodOptions...).
				Value(&result.InstallMethod),
			huh.NewConfirm().
				Title("Install the controller CRDs?").
				Description("Say no when the CRDs are managed by another resource").
				Value(&result.InstallCRDs),
			huh.NewConfirm().
				Title("Wait for the controller to become available?").
				Value(&result.Wait),
		).Title("Controller"),
	).RunWithContext(ctx)
}

// ToConfig converts the answers to a stack file. Fields left empty are
// defaulted when the file is loaded.
func (r *WizardResult) ToConfig() *config.Config {
	issuer := r.OIDCIssuer
	if issuer == "" {
		if provider, err := iam.ParseOIDCProviderARN(r.OIDCProvider); err == nil {
			issuer = "https://" + provider.Issuer
		}
	}

	return &config.Config{
		Stack:   r.Stack,
		Region:  r.Region,
		Backend: r.Backend,
		Wait:    r.Wait,
		Deployment: &config.Deployment{
			Name:          config.DefaultDeploymentName,
			OIDCIssuer:    issuer,
			OIDCProvider:  r.OIDCProvider,
			ClusterName:   r.ClusterName,
			Namespace:     r.Namespace,
			InstallCRDs:   r.InstallCRDs,
			InstallMethod: r.InstallMethod,
		},
	}
}
