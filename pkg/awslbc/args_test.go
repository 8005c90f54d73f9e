package awslbc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/helm"
	fakes "github.com/jaxxstorm/awsloadbalancercontroller/internal/testing"
)

func validArgs() *DeploymentArgs {
	return &DeploymentArgs{
		OIDCIssuer:   "https://" + fakes.OIDCIssuer,
		OIDCProvider: fakes.OIDCProvider,
		ClusterName:  fakes.ClusterName,
	}
}

func TestNormalize_Defaults(t *testing.T) {
	t.Parallel()

	args, warnings, err := normalize("lbc", validArgs())
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, fakes.OIDCIssuer, args.OIDCIssuer)
	assert.Equal(t, DefaultNamespace, args.Namespace)
	assert.Equal(t, InstallMethodManifests, args.InstallMethod)
	assert.True(t, args.createsNamespace())
}

func TestNormalize_DoesNotModifyInput(t *testing.T) {
	t.Parallel()

	in := validArgs()
	in.ExtraArgs = []string{"--feature-gates=A=true"}
	args, _, err := normalize("lbc", in)
	require.NoError(t, err)
	args.ExtraArgs[0] = "changed"
	assert.Equal(t, "https://"+fakes.OIDCIssuer, in.OIDCIssuer)
	assert.Empty(t, in.Namespace)
	assert.Equal(t, "--feature-gates=A=true", in.ExtraArgs[0])
}

func TestNormalize_SwappedIssuerAndProvider(t *testing.T) {
	t.Parallel()

	in := validArgs()
	in.OIDCIssuer, in.OIDCProvider = in.OIDCProvider, in.OIDCIssuer

	args, warnings, err := normalize("lbc", in)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "swapped")
	assert.Equal(t, fakes.OIDCProvider, args.OIDCProvider)
	assert.Equal(t, fakes.OIDCIssuer, args.OIDCIssuer)
}

func TestNormalize_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		resName string
		mutate  func(*DeploymentArgs)
		wantErr string
	}{
		{"invalid name", "LBC_1", func(*DeploymentArgs) {}, "invalid name"},
		{"missing cluster", "lbc", func(a *DeploymentArgs) { a.ClusterName = "" }, "clusterName is required"},
		{"missing issuer", "lbc", func(a *DeploymentArgs) { a.OIDCIssuer = "" }, "oidcIssuer is required"},
		{"missing provider", "lbc", func(a *DeploymentArgs) { a.OIDCProvider = "" }, "oidcProvider is required"},
		{"malformed provider", "lbc", func(a *DeploymentArgs) {
			a.OIDCProvider = "arn:aws:iam::123:oidc-provider/x"
		}, "12 digits"},
		{"issuer mismatch", "lbc", func(a *DeploymentArgs) {
			a.OIDCIssuer = "oidc.eks.eu-west-1.amazonaws.com/id/OTHER"
		}, "does not match"},
		{"invalid namespace", "lbc", func(a *DeploymentArgs) { a.Namespace = "Not_Valid" }, "invalid namespace"},
		{"invalid ingress class", "lbc", func(a *DeploymentArgs) { a.IngressClass = "ALB!" }, "invalid ingressClass"},
		{"negative replicas", "lbc", func(a *DeploymentArgs) { a.Replicas = -1 }, "replicas"},
		{"unknown method", "lbc", func(a *DeploymentArgs) { a.InstallMethod = "kustomize" }, "unknown install method"},
		{"extra args with helm", "lbc", func(a *DeploymentArgs) {
			a.InstallMethod = InstallMethodHelm
			a.ExtraArgs = []string{"--x"}
		}, "extraArgs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := validArgs()
			tt.mutate(in)
			_, _, err := normalize(tt.resName, in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalize_NilArgs(t *testing.T) {
	t.Parallel()
	_, _, err := normalize("lbc", nil)
	assert.Error(t, err)
}

func TestNormalize_ChartWithoutHelmWarns(t *testing.T) {
	t.Parallel()

	in := validArgs()
	in.Chart = &ChartArgs{Version: "1.8.0"}
	_, warnings, err := normalize("lbc", in)
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
}

func TestCreatesNamespace(t *testing.T) {
	t.Parallel()

	for ns, want := range map[string]bool{
		"kube-system":                 false,
		"kube-public":                 false,
		"default":                     false,
		"aws-loadbalancer-controller": true,
		"ingress":                     true,
	} {
		assert.Equal(t, want, (&DeploymentArgs{Namespace: ns}).createsNamespace(), ns)
	}
}

func TestChartSpec(t *testing.T) {
	t.Parallel()

	assert.Equal(t, helm.ControllerChart, (&DeploymentArgs{}).chartSpec())

	spec := (&DeploymentArgs{Chart: &ChartArgs{Version: "1.8.0"}}).chartSpec()
	assert.Equal(t, "1.8.0", spec.Version)
	assert.Equal(t, helm.ControllerChart.Repository, spec.Repository)
}

func TestResolveRegion(t *testing.T) {
	t.Parallel()

	r, err := resolveRegion("eu-central-1", fakes.OIDCIssuer, "ap-south-1")
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", r)

	r, err = resolveRegion("", fakes.OIDCIssuer, "ap-south-1")
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", r)

	r, err = resolveRegion("", "issuer.example.com", "ap-south-1")
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", r)

	_, err = resolveRegion("", "issuer.example.com", "")
	assert.Error(t, err)
}
