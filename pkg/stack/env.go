package stack

import (
	"errors"
	"time"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/fetch"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/iam"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/k8sclient"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/metrics"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
)

const (
	// DefaultWaitTimeout bounds CRD and Deployment readiness waits.
	DefaultWaitTimeout = 5 * time.Minute

	// DefaultParallelism bounds concurrent resources within a level.
	DefaultParallelism = 4
)

var (
	errNoKube    = errors.New("no Kubernetes client configured")
	errNoIAM     = errors.New("no IAM client configured")
	errNoBackend = errors.New("no state backend configured")
)

// Env carries the collaborators the engine and resources use.
type Env struct {
	// Region is the AWS region of the stack.
	Region string

	Kube    k8sclient.Client
	IAM     *iam.Client
	Fetcher *fetch.Fetcher
	Backend state.Backend
	Metrics *metrics.Recorder
	// Observer receives progress events. Defaults to logging them.
	Observer Observer

	FieldManager string
	// Wait blocks on Deployments becoming available after apply.
	Wait        bool
	WaitTimeout time.Duration
	Parallelism int
}

// withDefaults returns a copy of env with unset fields defaulted. A nil env
// is treated as empty.
func (e *Env) withDefaults() *Env {
	out := &Env{}
	if e != nil {
		*out = *e
	}
	if out.FieldManager == "" {
		out.FieldManager = k8sclient.DefaultFieldManager
	}
	if out.WaitTimeout <= 0 {
		out.WaitTimeout = DefaultWaitTimeout
	}
	if out.Parallelism <= 0 {
		out.Parallelism = DefaultParallelism
	}
	if out.Fetcher == nil {
		out.Fetcher = fetch.New(out.Metrics)
	}
	if out.Observer == nil {
		out.Observer = LogObserver{}
	}
	return out
}

// Online reports whether the environment can reach the cluster.
func (e *Env) Online() bool {
	return e != nil && e.Kube != nil
}
