package manifest

import (
	"context"
	"fmt"

	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

// ConfigFileType is the resource type token of a ConfigFile.
const ConfigFileType = "kubernetes:yaml:ConfigFile"

// ConfigFileArgs configure a ConfigFile. Exactly one of File and YAML is set.
type ConfigFileArgs struct {
	// File is an http(s) URL or a local path.
	File string
	// YAML is inline manifest content.
	YAML string
	// Namespace is set on namespaced objects that have none.
	Namespace string
}

// ConfigFile is a single manifest source.
type ConfigFile struct {
	stack.ResourceState

	args ConfigFileArgs
}

var _ stack.Resource = (*ConfigFile)(nil)

// NewConfigFile registers a single manifest on s.
func NewConfigFile(s *stack.Stack, name string, args *ConfigFileArgs, opts ...stack.ResourceOption) (*ConfigFile, error) {
	if args == nil || (args.File == "") == (args.YAML == "") {
		return nil, fmt.Errorf("config file %s: exactly one of file or YAML is required", name)
	}
	if err := validateNamespace(args.Namespace); err != nil {
		return nil, fmt.Errorf("config file %s: %w", name, err)
	}

	f := &ConfigFile{args: *args}
	if err := s.RegisterResource(ConfigFileType, name, f, opts...); err != nil {
		return nil, err
	}
	return f, nil
}

// Desired loads the manifest.
func (f *ConfigFile) Desired(ctx context.Context, env *stack.Env) (*stack.Desired, error) {
	var sources, inline []string
	if f.args.File != "" {
		sources = []string{f.args.File}
	} else {
		inline = []string{f.args.YAML}
	}
	objs, err := load(ctx, env, sources, inline)
	if err != nil {
		return nil, err
	}
	setNamespace(ctx, env, objs, f.args.Namespace)
	return &stack.Desired{Objects: objs}, nil
}
