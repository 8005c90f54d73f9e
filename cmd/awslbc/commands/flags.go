package commands

import (
	"github.com/spf13/cobra"

	"github.com/jaxxstorm/awsloadbalancercontroller/cmd/awslbc/handlers"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
)

// stackFlags are shared by every command that operates on a stack file.
type stackFlags struct {
	configPath string
	overrides  handlers.Overrides
	wait       bool
}

func bindStackFlags(cmd *cobra.Command) *stackFlags {
	f := &stackFlags{}
	flags := cmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "", "Path to stack file (default: awslbc.yaml in this or a parent directory)")
	flags.StringVarP(&f.overrides.Stack, "stack", "s", "", "Stack name (overrides the stack file)")
	flags.StringVar(&f.overrides.Region, "region", "", "AWS region (env: AWS_REGION)")
	flags.StringVar(&f.overrides.Kubeconfig, "kubeconfig", "", "Path to kubeconfig (env: KUBECONFIG)")
	flags.StringVar(&f.overrides.Context, "context", "", "Kubeconfig context to use")
	flags.StringVar(&f.overrides.Backend, "backend", "", "State backend URL: file://<dir> or s3://<bucket>/<prefix> (env: "+state.EnvBackend+")")
	flags.IntVar(&f.overrides.Parallelism, "parallelism", 0, "Maximum resources applied concurrently")
	flags.StringVar(&f.overrides.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	return f
}

// bindWaitFlag adds --wait to commands that apply objects.
func (f *stackFlags) bindWaitFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.wait, "wait", false, "Wait for Deployments to become available")
}

// bindTUIFlag adds --tui to commands that change resources.
func (f *stackFlags) bindTUIFlag(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.overrides.TUI, "tui", false, "Follow progress in an interactive terminal UI")
}

// resolve returns the overrides for cmd once its flags are parsed.
func (f *stackFlags) resolve(cmd *cobra.Command) handlers.Overrides {
	o := f.overrides
	if cmd.Flags().Changed("wait") {
		wait := f.wait
		o.Wait = &wait
	}
	o.Verbose, _ = cmd.Flags().GetBool("verbose")
	return o
}
