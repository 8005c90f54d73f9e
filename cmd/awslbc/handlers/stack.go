// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/config"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/logging"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/program"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/ui/tui"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

// Overrides are command line values that take precedence over the stack file.
// Empty values leave the file untouched.
type Overrides struct {
	Stack      string
	Region     string
	Kubeconfig string
	Context    string
	Backend    string
	// Wait is set only when the flag was given.
	Wait        *bool
	Parallelism int
	MetricsFile string
	Verbose     bool
	// Offline renders without contacting the cluster.
	Offline bool
	// TUI follows apply and destroy in the terminal UI when stdout is a
	// terminal.
	TUI bool
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// findConfigFile locates awslbc.yaml when no path is given.
	findConfigFile = config.FindConfigFile

	// loadConfigFile loads and validates a stack file.
	loadConfigFile = config.LoadWithoutValidation

	// newEnv connects to AWS, the cluster and the state backend.
	newEnv = stack.NewEnv

	// stdout receives command output.
	stdout io.Writer = os.Stdout

	// runTUI displays progress while an operation runs.
	runTUI = tui.Run

	// isTerminal reports whether stdout is a terminal.
	isTerminal = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
)

// session is a declared stack ready for an operation.
type session struct {
	cfg   *config.Config
	opts  stack.Options
	stack *stack.Stack
	env   *stack.Env
	tui   bool
}

func loadConfig(configPath string) (*config.Config, string, error) {
	if configPath == "" {
		found, err := findConfigFile()
		if err != nil {
			return nil, "", fmt.Errorf("%w (run 'awslbc init' to create one)", err)
		}
		configPath = found
	}

	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

func (o Overrides) apply(cfg *config.Config) {
	if o.Stack != "" {
		cfg.Stack = o.Stack
	}
	if o.Region != "" {
		cfg.Region = o.Region
	}
	if o.Kubeconfig != "" {
		cfg.Kubeconfig = o.Kubeconfig
	}
	if o.Context != "" {
		cfg.Context = o.Context
	}
	if o.Backend != "" {
		cfg.Backend = o.Backend
	}
	if o.Wait != nil {
		cfg.Wait = *o.Wait
	}
	if o.Parallelism > 0 {
		cfg.Parallelism = o.Parallelism
	}
}

// open loads the stack file, declares its resources and builds the
// environment for operation.
func open(ctx context.Context, operation, configPath string, o Overrides) (*session, error) {
	cfg, path, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	s, err := stack.New(cfg.Stack)
	if err != nil {
		return nil, err
	}
	if err := program.FromConfig(cfg)(ctx, s); err != nil {
		return nil, err
	}

	if operation != "render" {
		printHeader(operation, cfg.Stack, path)
	}

	opts := program.Options(cfg)
	opts.Verbose = o.Verbose
	opts.MetricsFile = o.MetricsFile
	opts.Offline = o.Offline

	logger := logging.FromContext(ctx)
	env, err := newEnv(ctx, opts)
	if err != nil && operation == "render" && !opts.Offline {
		logger.Info("cluster unreachable, rendering offline", "error", err.Error())
		opts.Offline = true
		env, err = newEnv(ctx, opts)
	}
	if err != nil {
		return nil, err
	}

	return &session{cfg: cfg, opts: opts, stack: s, env: env, tui: o.TUI && isTerminal()}, nil
}

// execute runs op against the session environment, following its progress
// in the terminal UI when enabled.
func (s *session) execute(ctx context.Context, operation string, op func(context.Context, *stack.Env) (*stack.Summary, error)) (*stack.Summary, error) {
	if !s.tui {
		return op(ctx, s.env)
	}

	var urns []stack.URN
	for _, res := range s.stack.Resources() {
		urns = append(urns, res.URN())
	}

	var summary *stack.Summary
	model := tui.NewModel(s.cfg.Stack, operation, urns)
	err := runTUI(ctx, model, func(ctx context.Context, observer stack.Observer) error {
		env := *s.env
		env.Observer = observer
		var err error
		summary, err = op(ctx, &env)
		return err
	})
	return summary, err
}

// finish writes the metrics file when one was requested.
func (s *session) finish(ctx context.Context) {
	if s.opts.MetricsFile == "" {
		return
	}
	if err := s.env.Metrics.WriteTextfile(s.opts.MetricsFile); err != nil {
		logging.FromContext(ctx).Error(err, "failed to write metrics", "path", s.opts.MetricsFile)
	}
}
