// Package logging builds the logr.Logger used by the awslbc CLI and example
// programs and carries it through context.Context.
package logging

import (
	"context"
	"io"
	"os"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Options configures logger construction.
type Options struct {
	// Verbose enables debug output (logr V(1)) and development encoding.
	Verbose bool
	// Writer receives log output. Defaults to os.Stderr.
	Writer io.Writer
	// JSON forces the JSON encoder even in verbose mode.
	JSON bool
}

// New returns a zap-backed logr.Logger.
func New(opts Options) logr.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	zapOpts := []zap.Opts{
		zap.WriteTo(w),
		zap.Level(level),
		zap.UseDevMode(opts.Verbose),
	}
	if opts.JSON {
		zapOpts = append(zapOpts, zap.JSONEncoder())
	} else {
		zapOpts = append(zapOpts, zap.ConsoleEncoder())
	}

	return zap.New(zapOpts...)
}

// Setup builds a logger, installs it as the controller-runtime global logger
// and returns a context carrying it.
func Setup(ctx context.Context, opts Options) context.Context {
	logger := New(opts)
	ctrl.SetLogger(logger)
	return log.IntoContext(ctx, logger)
}

// FromContext returns the logger stored in ctx.
func FromContext(ctx context.Context, names ...string) logr.Logger {
	logger := log.FromContext(ctx)
	for _, n := range names {
		logger = logger.WithName(n)
	}
	return logger
}
