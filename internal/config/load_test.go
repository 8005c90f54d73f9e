package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
stack: prod
region: us-west-2
backend: s3://state-bucket/awslbc
wait: true
wait_timeout: 10m
deployment:
  name: lbc
  oidc_issuer: https://oidc.eks.us-west-2.amazonaws.com/id/EXAMPLE
  oidc_provider: arn:aws:iam::123456789012:oidc-provider/oidc.eks.us-west-2.amazonaws.com/id/EXAMPLE
  cluster_name: demo
  namespace: kube-system
  depends_on: [crds]
config_groups:
  - name: crds
    files:
      - crds/*.yaml
      - https://example.com/crds.yaml
config_files:
  - name: workload
    file: app.yaml
    namespace: demo
    depends_on: [lbc]
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Stack)
	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, "s3://state-bucket/awslbc", cfg.Backend)
	assert.True(t, cfg.Wait)
	assert.Equal(t, 10*time.Minute, cfg.WaitTimeout)

	require.NotNil(t, cfg.Deployment)
	assert.Equal(t, "lbc", cfg.Deployment.Name)
	assert.Equal(t, "kube-system", cfg.Deployment.Namespace)
	assert.Equal(t, []string{"crds"}, cfg.Deployment.DependsOn)
	assert.Equal(t, "manifests", cfg.Deployment.InstallMethod)

	require.Len(t, cfg.ConfigGroups, 1)
	assert.Equal(t, []string{filepath.Join(dir, "crds/*.yaml"), "https://example.com/crds.yaml"}, cfg.ConfigGroups[0].Files)
	require.Len(t, cfg.ConfigFiles, 1)
	assert.Equal(t, filepath.Join(dir, "app.yaml"), cfg.ConfigFiles[0].File)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), "stack: dev\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "stack: [unterminated\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadWithoutValidation(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, t.TempDir(), "deployment:\n  cluster_name: demo\n")

	cfg, err := LoadWithoutValidation(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultDeploymentName, cfg.Deployment.Name)
	assert.Error(t, cfg.Validate())
}

func TestLoadFromBytes(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromBytes([]byte(sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "app.yaml", cfg.ConfigFiles[0].File, "paths stay relative without a file location")

	_, err = LoadFromBytes([]byte("stack: dev\n"))
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromBytes([]byte(sampleConfig))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "wait_timeout: 10m0s")

	loaded, err := LoadFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestFindConfigFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	want := writeConfig(t, root, sampleConfig)

	t.Chdir(nested)
	got, err := FindConfigFile()
	require.NoError(t, err)

	// Resolve symlinked temp directories before comparing.
	wantResolved, err := filepath.EvalSymlinks(want)
	require.NoError(t, err)
	gotResolved, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	assert.Equal(t, wantResolved, gotResolved)
}

func TestFindConfigFile_NotFound(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := FindConfigFile()
	if err == nil {
		t.Skip("an awslbc.yaml exists above the temp directory")
	}
	assert.Contains(t, err.Error(), "awslbc.yaml not found")
}

func TestDefaultConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	assert.Equal(t, DefaultConfigFilename, filepath.Base(DefaultConfigPath()))
}

func TestLoad_ExampleStackFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join("..", "..", "examples", DefaultConfigFilename))
	require.NoError(t, err)
	assert.Equal(t, []string{"crds"}, cfg.Deployment.DependsOn)
	assert.False(t, cfg.Deployment.InstallCRDs)
	assert.Equal(t, []string{"example"}, cfg.ConfigFiles[0].DependsOn)
}
