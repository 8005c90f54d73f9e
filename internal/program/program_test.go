package program

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/config"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/graph"
	fakes "github.com/jaxxstorm/awsloadbalancercontroller/internal/testing"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/awslbc"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/manifest"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

const workloadYAML = `apiVersion: v1
kind: ConfigMap
metadata:
  name: settings
data:
  mode: demo
`

// testConfig lists dependents before their dependencies on purpose.
func testConfig() *config.Config {
	return &config.Config{
		Stack:       "dev",
		Region:      "us-west-2",
		Backend:     "file:///tmp/awslbc",
		Wait:        true,
		WaitTimeout: time.Minute,
		Parallelism: 2,
		ConfigFiles: []config.ConfigFile{{
			Name:      "workload",
			YAML:      workloadYAML,
			Namespace: "demo",
			DependsOn: []string{"lbc"},
		}},
		Deployment: &config.Deployment{
			Name:          "lbc",
			OIDCIssuer:    fakes.OIDCIssuer,
			OIDCProvider:  fakes.OIDCProvider,
			ClusterName:   "demo",
			Namespace:     "kube-system",
			InstallMethod: "manifests",
			Replicas:      2,
			Tags:          map[string]string{"team": "platform"},
			DependsOn:     []string{"crds"},
		},
		ConfigGroups: []config.ConfigGroup{{
			Name: "crds",
			YAML: workloadYAML,
		}},
	}
}

func declare(t *testing.T, cfg *config.Config) *stack.Stack {
	t.Helper()
	s, err := stack.New(cfg.Stack)
	require.NoError(t, err)
	require.NoError(t, FromConfig(cfg)(context.Background(), s))
	return s
}

func TestOptions(t *testing.T) {
	t.Parallel()
	opts := Options(testConfig())

	assert.Equal(t, "dev", opts.Stack)
	assert.Equal(t, "us-west-2", opts.Region)
	assert.Equal(t, "file:///tmp/awslbc", opts.Backend)
	assert.True(t, opts.Wait)
	assert.Equal(t, time.Minute, opts.WaitTimeout)
	assert.Equal(t, 2, opts.Parallelism)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()
	s := declare(t, testConfig())

	resources := s.Resources()
	require.Len(t, resources, 3)

	group, ok := resources[0].(*manifest.ConfigGroup)
	require.True(t, ok, "dependencies are registered first")
	assert.Equal(t, stack.URN("urn:awslbc:dev::kubernetes:yaml:ConfigGroup::crds"), group.URN())

	lbc, ok := resources[1].(*awslbc.Deployment)
	require.True(t, ok)
	assert.Equal(t, "kube-system", lbc.Namespace())
	assert.Equal(t, []stack.Resource{group}, lbc.Dependencies())

	file, ok := resources[2].(*manifest.ConfigFile)
	require.True(t, ok)
	assert.Equal(t, []stack.Resource{lbc}, file.Dependencies())

	ordered, err := s.Order()
	require.NoError(t, err)
	assert.Equal(t, resources, ordered)
}

func TestFromConfig_Render(t *testing.T) {
	t.Parallel()
	s := declare(t, testConfig())

	rendered, err := s.Render(context.Background(), &stack.Env{})
	require.NoError(t, err)
	require.Len(t, rendered, 3)

	workload := rendered[2]
	require.Len(t, workload.Desired.Objects, 1)
	assert.Equal(t, "demo", workload.Desired.Objects[0].GetNamespace())

	var kinds []string
	for _, c := range rendered[1].Desired.Cloud {
		kinds = append(kinds, c.Kind)
	}
	assert.Contains(t, kinds, stack.KindIAMRole)
}

func TestFromConfig_HelmChart(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Deployment.InstallMethod = "helm"
	cfg.Deployment.Chart = &config.Chart{Version: "1.13.0", Values: map[string]any{"logLevel": "debug"}}

	args := deploymentArgs(cfg.Deployment)
	assert.Equal(t, awslbc.InstallMethodHelm, args.InstallMethod)
	require.NotNil(t, args.Chart)
	assert.Equal(t, "1.13.0", args.Chart.Version)
	assert.Equal(t, "debug", args.Chart.Values["logLevel"])
	assert.Equal(t, int32(2), args.Replicas)
	assert.Equal(t, "platform", args.Tags["team"])
}

func TestFromConfig_Cycle(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.ConfigGroups[0].DependsOn = []string{"workload"}

	s, err := stack.New("dev")
	require.NoError(t, err)
	err = FromConfig(cfg)(context.Background(), s)
	require.Error(t, err)

	var cycle *graph.CycleError
	assert.True(t, errors.As(err, &cycle))
	assert.Empty(t, s.Resources())
}

func TestFromConfig_InvalidDeployment(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Deployment.OIDCIssuer = "https://oidc.example.com"

	s, err := stack.New("dev")
	require.NoError(t, err)
	err = FromConfig(cfg)(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to declare lbc")
}
