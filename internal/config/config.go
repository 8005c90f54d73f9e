package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/awslbc"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

// DefaultDeploymentName names the deployment when the file leaves it empty.
const DefaultDeploymentName = "aws-load-balancer-controller"

// Environment variables consulted for fields the file leaves empty.
const (
	EnvRegion     = "AWS_REGION"
	EnvKubeconfig = "KUBECONFIG"
)

// Config is the awslbc.yaml stack file.
type Config struct {
	// Stack names the state kept for these resources.
	Stack string `yaml:"stack"`

	// Region is the AWS region for IAM and the S3 backend.
	Region string `yaml:"region,omitempty"`

	// Kubeconfig and Context select the target cluster.
	Kubeconfig string `yaml:"kubeconfig,omitempty"`
	Context    string `yaml:"context,omitempty"`

	// Backend is a state URL: file://<dir> or s3://<bucket>/<prefix>.
	Backend string `yaml:"backend,omitempty"`

	// Wait blocks until declared Deployments are available.
	Wait        bool          `yaml:"wait,omitempty"`
	WaitTimeout time.Duration `yaml:"wait_timeout,omitempty"`
	Parallelism int           `yaml:"parallelism,omitempty"`

	Deployment   *Deployment   `yaml:"deployment,omitempty"`
	ConfigGroups []ConfigGroup `yaml:"config_groups,omitempty"`
	ConfigFiles  []ConfigFile  `yaml:"config_files,omitempty"`
}

// Deployment declares the load balancer controller.
type Deployment struct {
	Name          string            `yaml:"name"`
	OIDCIssuer    string            `yaml:"oidc_issuer"`
	OIDCProvider  string            `yaml:"oidc_provider"`
	ClusterName   string            `yaml:"cluster_name"`
	Namespace     string            `yaml:"namespace,omitempty"`
	InstallCRDs   bool              `yaml:"install_crds,omitempty"`
	Region        string            `yaml:"region,omitempty"`
	IngressClass  string            `yaml:"ingress_class,omitempty"`
	Replicas      int32             `yaml:"replicas,omitempty"`
	Image         string            `yaml:"image,omitempty"`
	InstallMethod string            `yaml:"install_method,omitempty"`
	Chart         *Chart            `yaml:"chart,omitempty"`
	ExtraArgs     []string          `yaml:"extra_args,omitempty"`
	Tags          map[string]string `yaml:"tags,omitempty"`
	DependsOn     []string          `yaml:"depends_on,omitempty"`
}

// Chart overrides the chart used by the helm install method.
type Chart struct {
	Repository string         `yaml:"repository,omitempty"`
	Name       string         `yaml:"name,omitempty"`
	Version    string         `yaml:"version,omitempty"`
	Values     map[string]any `yaml:"values,omitempty"`
}

// ConfigGroup declares a set of manifests applied as one resource.
type ConfigGroup struct {
	Name      string   `yaml:"name"`
	Files     []string `yaml:"files,omitempty"`
	YAML      string   `yaml:"yaml,omitempty"`
	Namespace string   `yaml:"namespace,omitempty"`
	DependsOn []string `yaml:"depends_on,omitempty"`
}

// ConfigFile declares a single manifest source.
type ConfigFile struct {
	Name      string   `yaml:"name"`
	File      string   `yaml:"file,omitempty"`
	YAML      string   `yaml:"yaml,omitempty"`
	Namespace string   `yaml:"namespace,omitempty"`
	DependsOn []string `yaml:"depends_on,omitempty"`
}

// ApplyDefaults fills empty fields from the environment and built-in
// defaults. Values already set in the file are kept.
func (c *Config) ApplyDefaults() {
	if c.Stack == "" {
		c.Stack = os.Getenv(stack.EnvStack)
	}
	if c.Stack == "" {
		c.Stack = "dev"
	}
	if c.Region == "" {
		c.Region = os.Getenv(EnvRegion)
	}
	if c.Kubeconfig == "" {
		c.Kubeconfig = os.Getenv(EnvKubeconfig)
	}
	if c.Backend == "" {
		c.Backend = state.DefaultURL()
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = stack.DefaultWaitTimeout
	}
	if c.Parallelism == 0 {
		c.Parallelism = stack.DefaultParallelism
	}
	if c.Deployment != nil {
		if c.Deployment.Name == "" {
			c.Deployment.Name = DefaultDeploymentName
		}
		if c.Deployment.InstallMethod == "" {
			c.Deployment.InstallMethod = string(awslbc.InstallMethodManifests)
		}
	}
}

// Validate checks the configuration and reports every problem found.
// Dependency cycles are reported when the resources are declared.
func (c *Config) Validate() error {
	var errs []error

	if err := state.ValidateStackName(c.Stack); err != nil {
		errs = append(errs, err)
	}
	if c.Parallelism < 0 {
		errs = append(errs, errors.New("parallelism must not be negative"))
	}
	if c.WaitTimeout < 0 {
		errs = append(errs, errors.New("wait_timeout must not be negative"))
	}

	names := c.ResourceNames()
	if len(names) == 0 {
		errs = append(errs, errors.New("at least one of deployment, config_groups or config_files is required"))
	}
	seen := map[string]bool{}
	for _, name := range names {
		if seen[name] {
			errs = append(errs, fmt.Errorf("resource name %q is used more than once", name))
		}
		seen[name] = true
	}

	if d := c.Deployment; d != nil {
		errs = append(errs, validateName("deployment", d.Name)...)
		if d.OIDCIssuer == "" {
			errs = append(errs, errors.New("deployment.oidc_issuer is required"))
		}
		if d.OIDCProvider == "" {
			errs = append(errs, errors.New("deployment.oidc_provider is required"))
		}
		if d.ClusterName == "" {
			errs = append(errs, errors.New("deployment.cluster_name is required"))
		}
		method := awslbc.InstallMethod(d.InstallMethod)
		if method != awslbc.InstallMethodManifests && method != awslbc.InstallMethodHelm {
			errs = append(errs, fmt.Errorf("deployment.install_method must be %q or %q", awslbc.InstallMethodManifests, awslbc.InstallMethodHelm))
		}
		if d.Chart != nil && method != awslbc.InstallMethodHelm {
			errs = append(errs, errors.New("deployment.chart requires install_method helm"))
		}
		errs = append(errs, validateDependsOn("deployment", d.Name, d.DependsOn, seen)...)
	}

	for i, g := range c.ConfigGroups {
		field := fmt.Sprintf("config_groups[%d]", i)
		errs = append(errs, validateName(field, g.Name)...)
		if len(g.Files) == 0 && g.YAML == "" {
			errs = append(errs, fmt.Errorf("%s requires files or yaml", field))
		}
		errs = append(errs, validateNamespace(field, g.Namespace)...)
		errs = append(errs, validateDependsOn(field, g.Name, g.DependsOn, seen)...)
	}

	for i, f := range c.ConfigFiles {
		field := fmt.Sprintf("config_files[%d]", i)
		errs = append(errs, validateName(field, f.Name)...)
		if (f.File == "") == (f.YAML == "") {
			errs = append(errs, fmt.Errorf("%s requires exactly one of file or yaml", field))
		}
		errs = append(errs, validateNamespace(field, f.Namespace)...)
		errs = append(errs, validateDependsOn(field, f.Name, f.DependsOn, seen)...)
	}

	return errors.Join(errs...)
}

// ResourceNames returns the declared resource names in file order.
func (c *Config) ResourceNames() []string {
	var names []string
	if c.Deployment != nil {
		names = append(names, c.Deployment.Name)
	}
	for _, g := range c.ConfigGroups {
		names = append(names, g.Name)
	}
	for _, f := range c.ConfigFiles {
		names = append(names, f.Name)
	}
	return names
}

func validateName(field, name string) []error {
	if name == "" {
		return []error{fmt.Errorf("%s.name is required", field)}
	}
	if msgs := validation.IsDNS1123Subdomain(name); len(msgs) > 0 {
		return []error{fmt.Errorf("%s.name %q is invalid: %s", field, name, msgs[0])}
	}
	return nil
}

func validateNamespace(field, ns string) []error {
	if ns == "" {
		return nil
	}
	if msgs := validation.IsDNS1123Label(ns); len(msgs) > 0 {
		return []error{fmt.Errorf("%s.namespace %q is invalid: %s", field, ns, msgs[0])}
	}
	return nil
}

func validateDependsOn(field, self string, deps []string, names map[string]bool) []error {
	var errs []error
	for _, dep := range deps {
		switch {
		case dep == self:
			errs = append(errs, fmt.Errorf("%s depends on itself", field))
		case !names[dep]:
			errs = append(errs, fmt.Errorf("%s depends on unknown resource %q", field, dep))
		}
	}
	if len(deps) != len(slices.Compact(slices.Sorted(slices.Values(deps)))) {
		errs = append(errs, fmt.Errorf("%s lists a dependency more than once", field))
	}
	return errs
}
