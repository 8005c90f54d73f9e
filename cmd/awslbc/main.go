// Package main is the entry point for the awslbc CLI.
//
// awslbc installs the AWS Load Balancer Controller into a Kubernetes cluster
// together with the IAM role its service account assumes, and manages any
// related manifests declared in the same awslbc.yaml stack file. Resources
// are applied in dependency order and recorded in a state backend so later
// runs can update or remove them.
//
// Commands: init, preview, apply, destroy, render, version.
//
// For detailed usage information, run:
//
//	awslbc --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaxxstorm/awsloadbalancercontroller/cmd/awslbc/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	commands.SetVersionInfo(version, commit, date)
	err := commands.Root().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
