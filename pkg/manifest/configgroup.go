package manifest

import (
	"context"
	"fmt"
	"slices"

	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

// ConfigGroupType is the resource type token of a ConfigGroup.
const ConfigGroupType = "kubernetes:yaml:ConfigGroup"

// ConfigGroupArgs configure a ConfigGroup.
type ConfigGroupArgs struct {
	// Files are http(s) URLs, local paths or local globs.
	Files []string
	// YAML holds inline manifests, each possibly multi-document.
	YAML []string
	// Namespace is set on namespaced objects that have none.
	Namespace string
}

// ConfigGroup is a set of manifests applied together.
type ConfigGroup struct {
	stack.ResourceState

	args ConfigGroupArgs
}

var _ stack.Resource = (*ConfigGroup)(nil)

// NewConfigGroup registers a group of manifests on s.
func NewConfigGroup(s *stack.Stack, name string, args *ConfigGroupArgs, opts ...stack.ResourceOption) (*ConfigGroup, error) {
	if args == nil || (len(args.Files) == 0 && len(args.YAML) == 0) {
		return nil, fmt.Errorf("config group %s: at least one file or YAML document is required", name)
	}
	if slices.Contains(args.Files, "") {
		return nil, fmt.Errorf("config group %s: file entries must not be empty", name)
	}
	if err := validateNamespace(args.Namespace); err != nil {
		return nil, fmt.Errorf("config group %s: %w", name, err)
	}

	g := &ConfigGroup{args: ConfigGroupArgs{
		Files:     slices.Clone(args.Files),
		YAML:      slices.Clone(args.YAML),
		Namespace: args.Namespace,
	}}
	if err := s.RegisterResource(ConfigGroupType, name, g, opts...); err != nil {
		return nil, err
	}
	return g, nil
}

// Files returns the configured sources.
func (g *ConfigGroup) Files() []string { return slices.Clone(g.args.Files) }

// Desired loads every source of the group.
func (g *ConfigGroup) Desired(ctx context.Context, env *stack.Env) (*stack.Desired, error) {
	objs, err := load(ctx, env, g.args.Files, g.args.YAML)
	if err != nil {
		return nil, err
	}
	setNamespace(ctx, env, objs, g.args.Namespace)
	return &stack.Desired{Objects: objs}, nil
}
