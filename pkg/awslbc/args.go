package awslbc

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/helm"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/iam"
)

// DefaultNamespace is the namespace the controller runs in when none is set.
const DefaultNamespace = "aws-loadbalancer-controller"

// InstallMethod selects how the controller's objects are produced.
type InstallMethod string

const (
	// InstallMethodManifests builds the objects from typed API structs.
	InstallMethodManifests InstallMethod = "manifests"
	// InstallMethodHelm renders the eks-charts aws-load-balancer-controller chart.
	InstallMethodHelm InstallMethod = "helm"
)

// systemNamespaces always exist, so no Namespace object is declared for them.
var systemNamespaces = []string{"kube-system", "kube-public", "default"}

// ChartArgs override the chart used by the helm install method.
type ChartArgs struct {
	Repository string
	Name       string
	Version    string
	// Values are deep merged over the values derived from DeploymentArgs.
	Values map[string]any
}

// DeploymentArgs configure a controller deployment.
type DeploymentArgs struct {
	// OIDCIssuer is the cluster's OIDC issuer URL, with or without https://.
	OIDCIssuer string
	// OIDCProvider is the ARN of the IAM OIDC identity provider for the issuer.
	OIDCProvider string
	// Namespace defaults to DefaultNamespace.
	Namespace string
	// InstallCRDs includes the TargetGroupBinding and IngressClassParams CRDs.
	// Leave it unset when the CRDs are declared separately, and make the
	// deployment depend on that resource.
	InstallCRDs bool
	// ClusterName scopes the IAM names and is passed to the controller.
	ClusterName string

	// Region defaults to the region of an EKS issuer, then the stack region.
	Region string
	// IngressClass defaults to "alb".
	IngressClass string
	// Replicas defaults to 1.
	Replicas int32
	// Image overrides the controller image.
	Image string
	// InstallMethod defaults to InstallMethodManifests.
	InstallMethod InstallMethod
	// Chart overrides the chart for InstallMethodHelm.
	Chart *ChartArgs
	// ExtraArgs are appended to the controller arguments. Only supported by
	// InstallMethodManifests; use Chart.Values with the helm method.
	ExtraArgs []string
	// Tags are added to the IAM role and policy.
	Tags map[string]string
}

// normalize validates args and returns a defaulted copy together with any
// warnings about corrected input.
func normalize(name string, in *DeploymentArgs) (*DeploymentArgs, []string, error) {
	if in == nil {
		return nil, nil, errors.New("deployment args are required")
	}
	args := *in
	args.ExtraArgs = slices.Clone(in.ExtraArgs)

	var warnings []string
	var errs []error

	if msgs := validation.IsDNS1123Label(name); len(msgs) > 0 {
		errs = append(errs, fmt.Errorf("invalid name %q: %s", name, strings.Join(msgs, "; ")))
	}
	if args.ClusterName == "" {
		errs = append(errs, errors.New("clusterName is required"))
	}

	// the provider ARN and the issuer are easy to mix up
	if !iam.IsOIDCProviderARN(args.OIDCProvider) && iam.IsOIDCProviderARN(args.OIDCIssuer) {
		args.OIDCIssuer, args.OIDCProvider = args.OIDCProvider, args.OIDCIssuer
		warnings = append(warnings, "oidcIssuer and oidcProvider were swapped; using the ARN as oidcProvider")
	}
	args.OIDCIssuer = iam.NormalizeIssuer(args.OIDCIssuer)

	if args.OIDCIssuer == "" {
		errs = append(errs, errors.New("oidcIssuer is required"))
	}
	if args.OIDCProvider == "" {
		errs = append(errs, errors.New("oidcProvider is required"))
	} else if provider, err := iam.ParseOIDCProviderARN(args.OIDCProvider); err != nil {
		errs = append(errs, err)
	} else if args.OIDCIssuer != "" && provider.Issuer != args.OIDCIssuer {
		errs = append(errs, fmt.Errorf("oidcIssuer %q does not match the issuer %q of oidcProvider", args.OIDCIssuer, provider.Issuer))
	}

	if args.Namespace == "" {
		args.Namespace = DefaultNamespace
	}
	if msgs := validation.IsDNS1123Label(args.Namespace); len(msgs) > 0 {
		errs = append(errs, fmt.Errorf("invalid namespace %q: %s", args.Namespace, strings.Join(msgs, "; ")))
	}

	if args.IngressClass != "" {
		if msgs := validation.IsDNS1123Subdomain(args.IngressClass); len(msgs) > 0 {
			errs = append(errs, fmt.Errorf("invalid ingressClass %q: %s", args.IngressClass, strings.Join(msgs, "; ")))
		}
	}
	if args.Replicas < 0 {
		errs = append(errs, fmt.Errorf("replicas must not be negative, got %d", args.Replicas))
	}

	switch args.InstallMethod {
	case "":
		args.InstallMethod = InstallMethodManifests
	case InstallMethodManifests:
	case InstallMethodHelm:
		if len(args.ExtraArgs) > 0 {
			errs = append(errs, errors.New("extraArgs is not supported with the helm install method; set chart values instead"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown install method %q: want %q or %q", args.InstallMethod, InstallMethodManifests, InstallMethodHelm))
	}
	if args.Chart != nil && args.InstallMethod != InstallMethodHelm {
		warnings = append(warnings, "chart is ignored unless installMethod is helm")
	}

	if err := errors.Join(errs...); err != nil {
		return nil, warnings, fmt.Errorf("invalid deployment %s: %w", name, err)
	}
	return &args, warnings, nil
}

// createsNamespace reports whether a Namespace object is declared.
func (a *DeploymentArgs) createsNamespace() bool {
	return !slices.Contains(systemNamespaces, a.Namespace)
}

// chartSpec returns the chart to render for the helm method.
func (a *DeploymentArgs) chartSpec() helm.ChartSpec {
	if a.Chart == nil {
		return helm.ControllerChart
	}
	return helm.ControllerChart.WithOverrides(helm.ChartSpec{
		Repository: a.Chart.Repository,
		Name:       a.Chart.Name,
		Version:    a.Chart.Version,
	})
}

// resolveRegion picks the explicit region, then the region of an EKS
// issuer, then the fallback.
func resolveRegion(explicit, issuer, fallback string) (string, error) {
	for _, r := range []string{explicit, iam.RegionFromIssuer(issuer), fallback} {
		if r != "" {
			return r, nil
		}
	}
	return "", errors.New("region could not be determined: set region, use an EKS OIDC issuer or configure the stack region")
}
