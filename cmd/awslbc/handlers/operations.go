package handlers

import (
	"context"
	"fmt"

	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

// Apply creates or updates every resource declared in the stack file and
// removes resources that are recorded in state but no longer declared.
func Apply(ctx context.Context, configPath string, o Overrides) error {
	sess, err := open(ctx, "apply", configPath, o)
	if err != nil {
		return err
	}
	defer sess.finish(ctx)

	summary, err := sess.execute(ctx, "apply", sess.stack.Up)
	if summary != nil {
		fmt.Fprint(stdout, stack.FormatSummary("apply", summary))
	}
	return err
}

// Preview prints the changes Apply would make without making them.
func Preview(ctx context.Context, configPath string, o Overrides) error {
	sess, err := open(ctx, "preview", configPath, o)
	if err != nil {
		return err
	}
	defer sess.finish(ctx)

	changes, err := sess.stack.Preview(ctx, sess.env)
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, stack.FormatChanges(sess.stack.Name(), changes, o.Verbose))
	return nil
}

// Destroy deletes every resource recorded for the stack, dependents first.
func Destroy(ctx context.Context, configPath string, o Overrides) error {
	sess, err := open(ctx, "destroy", configPath, o)
	if err != nil {
		return err
	}
	defer sess.finish(ctx)

	summary, err := sess.execute(ctx, "destroy", sess.stack.Destroy)
	if summary != nil {
		fmt.Fprint(stdout, stack.FormatSummary("destroy", summary))
	}
	return err
}

// Render writes the desired objects of every resource as YAML. It renders
// offline when the cluster cannot be reached.
func Render(ctx context.Context, configPath string, o Overrides) error {
	sess, err := open(ctx, "render", configPath, o)
	if err != nil {
		return err
	}
	defer sess.finish(ctx)

	rendered, err := sess.stack.Render(ctx, sess.env)
	if err != nil {
		return err
	}
	return stack.WriteRendered(stdout, rendered)
}
