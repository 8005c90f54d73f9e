package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{stack.EnvStack, EnvRegion, EnvKubeconfig, state.EnvBackend} {
		t.Setenv(key, "")
	}
}

func validConfig() *Config {
	cfg := &Config{
		Stack: "dev",
		Deployment: &Deployment{
			Name:         "lbc",
			OIDCIssuer:   "oidc.eks.us-west-2.amazonaws.com/id/EXAMPLE",
			OIDCProvider: "arn:aws:iam::123456789012:oidc-provider/oidc.eks.us-west-2.amazonaws.com/id/EXAMPLE",
			ClusterName:  "demo",
		},
		ConfigGroups: []ConfigGroup{{Name: "crds", Files: []string{"crds/*.yaml"}}},
		ConfigFiles:  []ConfigFile{{Name: "workload", File: "app.yaml", DependsOn: []string{"lbc"}}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(state.EnvBackend, "file:///tmp/state")

	cfg := &Config{Deployment: &Deployment{}}
	cfg.ApplyDefaults()

	assert.Equal(t, "dev", cfg.Stack)
	assert.Equal(t, "file:///tmp/state", cfg.Backend)
	assert.Equal(t, stack.DefaultWaitTimeout, cfg.WaitTimeout)
	assert.Equal(t, stack.DefaultParallelism, cfg.Parallelism)
	assert.Equal(t, DefaultDeploymentName, cfg.Deployment.Name)
	assert.Equal(t, "manifests", cfg.Deployment.InstallMethod)
}

func TestApplyDefaults_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv(stack.EnvStack, "prod")
	t.Setenv(EnvRegion, "eu-west-1")
	t.Setenv(EnvKubeconfig, "/tmp/kubeconfig")

	t.Run("fills empty fields", func(t *testing.T) {
		cfg := &Config{}
		cfg.ApplyDefaults()
		assert.Equal(t, "prod", cfg.Stack)
		assert.Equal(t, "eu-west-1", cfg.Region)
		assert.Equal(t, "/tmp/kubeconfig", cfg.Kubeconfig)
	})

	t.Run("keeps file values", func(t *testing.T) {
		cfg := &Config{Stack: "staging", Region: "us-east-1", Kubeconfig: "/etc/kube", WaitTimeout: time.Minute}
		cfg.ApplyDefaults()
		assert.Equal(t, "staging", cfg.Stack)
		assert.Equal(t, "us-east-1", cfg.Region)
		assert.Equal(t, "/etc/kube", cfg.Kubeconfig)
		assert.Equal(t, time.Minute, cfg.WaitTimeout)
	})
}

func TestValidate_Valid(t *testing.T) {
	clearEnv(t)
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "invalid stack",
			mutate: func(c *Config) { c.Stack = "-bad" },
			want:   "invalid stack name",
		},
		{
			name: "no resources",
			mutate: func(c *Config) {
				c.Deployment = nil
				c.ConfigGroups = nil
				c.ConfigFiles = nil
			},
			want: "at least one of",
		},
		{
			name:   "duplicate name",
			mutate: func(c *Config) { c.ConfigFiles[0].Name = "crds" },
			want:   `resource name "crds" is used more than once`,
		},
		{
			name:   "missing issuer",
			mutate: func(c *Config) { c.Deployment.OIDCIssuer = "" },
			want:   "deployment.oidc_issuer is required",
		},
		{
			name:   "missing provider",
			mutate: func(c *Config) { c.Deployment.OIDCProvider = "" },
			want:   "deployment.oidc_provider is required",
		},
		{
			name:   "missing cluster name",
			mutate: func(c *Config) { c.Deployment.ClusterName = "" },
			want:   "deployment.cluster_name is required",
		},
		{
			name:   "unknown install method",
			mutate: func(c *Config) { c.Deployment.InstallMethod = "kustomize" },
			want:   "deployment.install_method must be",
		},
		{
			name:   "chart without helm",
			mutate: func(c *Config) { c.Deployment.Chart = &Chart{Version: "1.0.0"} },
			want:   "deployment.chart requires install_method helm",
		},
		{
			name:   "empty group",
			mutate: func(c *Config) { c.ConfigGroups[0].Files = nil },
			want:   "config_groups[0] requires files or yaml",
		},
		{
			name:   "file and yaml",
			mutate: func(c *Config) { c.ConfigFiles[0].YAML = "kind: ConfigMap" },
			want:   "config_files[0] requires exactly one of file or yaml",
		},
		{
			name:   "invalid namespace",
			mutate: func(c *Config) { c.ConfigFiles[0].Namespace = "Not_Valid" },
			want:   `config_files[0].namespace "Not_Valid" is invalid`,
		},
		{
			name:   "invalid name",
			mutate: func(c *Config) { c.ConfigGroups[0].Name = "CRDs!" },
			want:   `config_groups[0].name "CRDs!" is invalid`,
		},
		{
			name:   "unknown dependency",
			mutate: func(c *Config) { c.Deployment.DependsOn = []string{"missing"} },
			want:   `deployment depends on unknown resource "missing"`,
		},
		{
			name:   "self dependency",
			mutate: func(c *Config) { c.ConfigGroups[0].DependsOn = []string{"crds"} },
			want:   "config_groups[0] depends on itself",
		},
		{
			name:   "repeated dependency",
			mutate: func(c *Config) { c.ConfigFiles[0].DependsOn = []string{"lbc", "lbc"} },
			want:   "config_files[0] lists a dependency more than once",
		},
		{
			name:   "negative parallelism",
			mutate: func(c *Config) { c.Parallelism = -1 },
			want:   "parallelism must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	clearEnv(t)
	cfg := validConfig()
	cfg.Deployment.OIDCIssuer = ""
	cfg.Deployment.ClusterName = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oidc_issuer")
	assert.Contains(t, err.Error(), "cluster_name")
}

func TestResourceNames(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, []string{"lbc", "crds", "workload"}, validConfig().ResourceNames())
}
