package wizard

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/iam"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/awslbc"
)

// clusterNamePattern matches EKS cluster names.
var clusterNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,99}$`)

// InstallMethodOptions are the choices for how the controller is installed.
var InstallMethodOptions = []huh.Option[string]{
	huh.NewOption("Typed manifests (no chart download)", string(awslbc.InstallMethodManifests)),
	huh.NewOption("eks-charts Helm chart", string(awslbc.InstallMethodHelm)),
}

// NamespaceOptions are the suggested controller namespaces.
var NamespaceOptions = []huh.Option[string]{
	huh.NewOption(awslbc.DefaultNamespace+" (created)", awslbc.DefaultNamespace),
	huh.NewOption("kube-system", "kube-system"),
}

func validateStackName(s string) error {
	if s == "" {
		return errStackNameRequired
	}
	return state.ValidateStackName(s)
}

func validateClusterName(s string) error {
	if s == "" {
		return errClusterNameRequired
	}
	if !clusterNamePattern.MatchString(s) {
		return errClusterNameInvalid
	}
	return nil
}

func validateProvider(s string) error {
	if strings.TrimSpace(s) == "" {
		return errProviderRequired
	}
	_, err := iam.ParseOIDCProviderARN(strings.TrimSpace(s))
	return err
}

// validateIssuer accepts an empty issuer, which is derived from the provider.
func validateIssuer(provider string) func(string) error {
	return func(s string) error {
		if s == "" {
			return nil
		}
		p, err := iam.ParseOIDCProviderARN(strings.TrimSpace(provider))
		if err != nil {
			return nil
		}
		if iam.NormalizeIssuer(s) != p.Issuer {
			return errIssuerMismatch
		}
		return nil
	}
}

func validateNamespace(s string) error {
	if len(validation.IsDNS1123Label(s)) > 0 {
		return errNamespaceInvalid
	}
	return nil
}

func validateBackend(s string) error {
	if s == "" || strings.HasPrefix(s, "file://") || strings.HasPrefix(s, "s3://") {
		return nil
	}
	return errBackendInvalid
}
