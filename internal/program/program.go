// Package program turns an awslbc.yaml stack file into stack declarations.
package program

import (
	"context"
	"fmt"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/config"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/graph"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/awslbc"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/manifest"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

// Options returns the stack options described by cfg.
func Options(cfg *config.Config) stack.Options {
	return stack.Options{
		Stack:       cfg.Stack,
		Region:      cfg.Region,
		Kubeconfig:  cfg.Kubeconfig,
		Context:     cfg.Context,
		Backend:     cfg.Backend,
		Wait:        cfg.Wait,
		WaitTimeout: cfg.WaitTimeout,
		Parallelism: cfg.Parallelism,
	}
}

// declaration registers one configured resource once its dependencies exist.
type declaration struct {
	dependsOn []string
	declare   func(s *stack.Stack, opts ...stack.ResourceOption) (stack.Resource, error)
}

// FromConfig returns a program that declares every resource in cfg.
// Resources are registered dependencies first, so the file may list them
// in any order.
func FromConfig(cfg *config.Config) stack.Program {
	return func(_ context.Context, s *stack.Stack) error {
		decls := declarations(cfg)

		dag := graph.NewDirectedAcyclicGraph()
		for _, name := range cfg.ResourceNames() {
			if err := dag.AddVertex(name); err != nil {
				return fmt.Errorf("failed to declare %s: %w", name, err)
			}
		}
		for _, name := range cfg.ResourceNames() {
			for _, dep := range decls[name].dependsOn {
				if err := dag.AddEdge(name, dep); err != nil {
					return fmt.Errorf("failed to declare %s: %w", name, err)
				}
			}
		}

		order, err := dag.TopologicalSort()
		if err != nil {
			return err
		}

		declared := make(map[string]stack.Resource, len(order))
		for _, name := range order {
			d := decls[name]
			deps := make([]stack.Resource, 0, len(d.dependsOn))
			for _, dep := range d.dependsOn {
				deps = append(deps, declared[dep])
			}
			res, err := d.declare(s, stack.DependsOn(deps...))
			if err != nil {
				return fmt.Errorf("failed to declare %s: %w", name, err)
			}
			declared[name] = res
		}
		return nil
	}
}

func declarations(cfg *config.Config) map[string]declaration {
	decls := map[string]declaration{}

	if d := cfg.Deployment; d != nil {
		args := deploymentArgs(d)
		decls[d.Name] = declaration{
			dependsOn: d.DependsOn,
			declare: func(s *stack.Stack, opts ...stack.ResourceOption) (stack.Resource, error) {
				return awslbc.NewDeployment(s, d.Name, args, opts...)
			},
		}
	}

	for _, g := range cfg.ConfigGroups {
		args := &manifest.ConfigGroupArgs{Files: g.Files, Namespace: g.Namespace}
		if g.YAML != "" {
			args.YAML = []string{g.YAML}
		}
		decls[g.Name] = declaration{
			dependsOn: g.DependsOn,
			declare: func(s *stack.Stack, opts ...stack.ResourceOption) (stack.Resource, error) {
				return manifest.NewConfigGroup(s, g.Name, args, opts...)
			},
		}
	}

	for _, f := range cfg.ConfigFiles {
		args := &manifest.ConfigFileArgs{File: f.File, YAML: f.YAML, Namespace: f.Namespace}
		decls[f.Name] = declaration{
			dependsOn: f.DependsOn,
			declare: func(s *stack.Stack, opts ...stack.ResourceOption) (stack.Resource, error) {
				return manifest.NewConfigFile(s, f.Name, args, opts...)
			},
		}
	}

	return decls
}

func deploymentArgs(d *config.Deployment) *awslbc.DeploymentArgs {
	args := &awslbc.DeploymentArgs{
		OIDCIssuer:    d.OIDCIssuer,
		OIDCProvider:  d.OIDCProvider,
		Namespace:     d.Namespace,
		InstallCRDs:   d.InstallCRDs,
		ClusterName:   d.ClusterName,
		Region:        d.Region,
		IngressClass:  d.IngressClass,
		Replicas:      d.Replicas,
		Image:         d.Image,
		InstallMethod: awslbc.InstallMethod(d.InstallMethod),
		ExtraArgs:     d.ExtraArgs,
		Tags:          d.Tags,
	}
	if d.Chart != nil {
		args.Chart = &awslbc.ChartArgs{
			Repository: d.Chart.Repository,
			Name:       d.Chart.Name,
			Version:    d.Chart.Version,
			Values:     d.Chart.Values,
		}
	}
	return args
}
