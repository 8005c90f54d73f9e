package stack

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/iam"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/k8sclient"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/logging"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/metrics"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
)

// EnvStack overrides the default stack name.
const EnvStack = "AWSLBC_STACK"

// Options are the settings shared by every stack operation.
type Options struct {
	Stack       string
	Region      string
	Kubeconfig  string
	Context     string
	Backend     string
	Wait        bool
	WaitTimeout time.Duration
	Parallelism int
	Verbose     bool
	MetricsFile string
	// Offline skips the cluster connection. Render falls back to offline
	// when the cluster is unreachable.
	Offline bool
}

// NewEnv builds the environment for opts. It is a variable so tests can
// substitute fakes.
var NewEnv = func(ctx context.Context, opts Options) (*Env, error) {
	recorder := metrics.NewRecorder()
	env := &Env{
		Region:      opts.Region,
		Metrics:     recorder,
		Wait:        opts.Wait,
		WaitTimeout: opts.WaitTimeout,
		Parallelism: opts.Parallelism,
	}

	if !opts.Offline {
		kube, err := k8sclient.NewFromKubeconfigPath(opts.Kubeconfig, opts.Context)
		if err != nil {
			return nil, err
		}
		env.Kube = kube
	}

	iamClient, err := iam.NewFromDefaultConfig(ctx, opts.Region, iam.WithMetrics(recorder))
	if err != nil {
		return nil, err
	}
	env.IAM = iamClient

	backend, err := state.Open(ctx, opts.Backend, opts.Region)
	if err != nil {
		return nil, err
	}
	env.Backend = backend
	return env, nil
}

// DefaultOptions returns options populated from the environment.
func DefaultOptions() Options {
	name := os.Getenv(EnvStack)
	if name == "" {
		name = "dev"
	}
	return Options{
		Stack:       name,
		Region:      os.Getenv("AWS_REGION"),
		Backend:     state.DefaultURL(),
		WaitTimeout: DefaultWaitTimeout,
		Parallelism: DefaultParallelism,
	}
}

// Program declares resources on a stack.
type Program func(ctx context.Context, s *Stack) error

// Run executes a program as a command line tool and exits the process.
func Run(fn Program) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewCommand(fn).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

// NewCommand returns a command with up, preview, destroy and render
// subcommands that run fn to declare resources.
func NewCommand(fn Program) *cobra.Command {
	opts := DefaultOptions()

	cmd := &cobra.Command{
		Use:           "program",
		Short:         "Manage the resources declared by this program",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cmd.SetContext(logging.Setup(cmd.Context(), logging.Options{Verbose: opts.Verbose, Writer: cmd.ErrOrStderr()}))
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.Stack, "stack", "s", opts.Stack, "Stack name (env: "+EnvStack+")")
	flags.StringVar(&opts.Region, "region", opts.Region, "AWS region (env: AWS_REGION)")
	flags.StringVar(&opts.Kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: $KUBECONFIG or ~/.kube/config)")
	flags.StringVar(&opts.Context, "context", "", "Kubeconfig context to use")
	flags.StringVar(&opts.Backend, "backend", opts.Backend, "State backend URL: file://<dir> or s3://<bucket>/<prefix> (env: "+state.EnvBackend+")")
	flags.BoolVar(&opts.Wait, "wait", false, "Wait for Deployments to become available")
	flags.DurationVar(&opts.WaitTimeout, "wait-timeout", opts.WaitTimeout, "Timeout for CRD and Deployment readiness")
	flags.IntVar(&opts.Parallelism, "parallelism", opts.Parallelism, "Maximum resources applied concurrently")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Create or update the declared resources",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return execute(cmd, fn, opts, func(ctx context.Context, s *Stack, env *Env) error {
					summary, err := s.Up(ctx, env)
					if summary != nil {
						fmt.Fprint(cmd.OutOrStdout(), FormatSummary("up", summary))
					}
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "preview",
			Short: "Show the changes up would make",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return execute(cmd, fn, opts, func(ctx context.Context, s *Stack, env *Env) error {
					changes, err := s.Preview(ctx, env)
					if err != nil {
						return err
					}
					fmt.Fprint(cmd.OutOrStdout(), FormatChanges(s.Name(), changes, opts.Verbose))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "destroy",
			Short: "Delete every resource recorded for the stack",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return execute(cmd, fn, opts, func(ctx context.Context, s *Stack, env *Env) error {
					summary, err := s.Destroy(ctx, env)
					if summary != nil {
						fmt.Fprint(cmd.OutOrStdout(), FormatSummary("destroy", summary))
					}
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "render",
			Short: "Print the desired objects without applying them",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return execute(cmd, fn, opts, func(ctx context.Context, s *Stack, env *Env) error {
					rendered, err := s.Render(ctx, env)
					if err != nil {
						return err
					}
					return WriteRendered(cmd.OutOrStdout(), rendered)
				})
			},
		},
	)
	return cmd
}

func execute(cmd *cobra.Command, fn Program, opts Options, op func(context.Context, *Stack, *Env) error) error {
	ctx := cmd.Context()
	logger := log.FromContext(ctx)

	s, err := New(opts.Stack)
	if err != nil {
		return err
	}
	if err := fn(ctx, s); err != nil {
		return fmt.Errorf("failed to declare resources: %w", err)
	}

	env, err := NewEnv(ctx, opts)
	if err != nil && cmd.Name() == "render" && !opts.Offline {
		logger.Info("cluster unreachable, rendering offline", "error", err.Error())
		opts.Offline = true
		env, err = NewEnv(ctx, opts)
	}
	if err != nil {
		return err
	}

	opErr := op(ctx, s, env)
	if opts.MetricsFile != "" {
		if err := env.Metrics.WriteTextfile(opts.MetricsFile); err != nil {
			logger.Error(err, "failed to write metrics")
		}
	}
	return opErr
}
