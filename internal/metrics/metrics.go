// Package metrics records Prometheus metrics for engine operations.
//
// Metrics live in a dedicated registry per Recorder so that a CLI run can
// write them out as a node-exporter textfile and tests stay isolated.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "awslbc"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Recorder holds the engine metric vectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	registry *prometheus.Registry

	resourceOperations *prometheus.CounterVec
	resourceDuration   *prometheus.HistogramVec
	objectsApplied     *prometheus.CounterVec
	objectsDeleted     *prometheus.CounterVec
	cloudCalls         *prometheus.CounterVec
	cloudCallDuration  *prometheus.HistogramVec
	fetches            *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		resourceOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "resource_operations_total",
				Help:      "Total number of resource operations by operation, type and result",
			},
			[]string{"operation", "type", "result"},
		),
		resourceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "resource_operation_duration_seconds",
				Help:      "Duration of resource operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
			},
			[]string{"operation", "type"},
		),
		objectsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kubernetes",
				Name:      "objects_applied_total",
				Help:      "Total number of Kubernetes objects applied by kind",
			},
			[]string{"kind"},
		),
		objectsDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kubernetes",
				Name:      "objects_deleted_total",
				Help:      "Total number of Kubernetes objects deleted by kind",
			},
			[]string{"kind"},
		),
		cloudCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "aws",
				Name:      "api_calls_total",
				Help:      "Total number of AWS API calls by service, operation and result",
			},
			[]string{"service", "operation", "result"},
		),
		cloudCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "aws",
				Name:      "api_call_duration_seconds",
				Help:      "Latency of AWS API calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~10s
			},
			[]string{"service", "operation"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "manifest",
				Name:      "fetches_total",
				Help:      "Total number of manifest fetches by source kind and result",
			},
			[]string{"source", "result"},
		),
	}

	r.registry.MustRegister(
		r.resourceOperations,
		r.resourceDuration,
		r.objectsApplied,
		r.objectsDeleted,
		r.cloudCalls,
		r.cloudCallDuration,
		r.fetches,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveResource records the outcome of one engine operation on a resource.
func (r *Recorder) ObserveResource(operation, resourceType string, err error, duration time.Duration) {
	if r == nil {
		return
	}
	r.resourceOperations.WithLabelValues(operation, resourceType, resultOf(err)).Inc()
	r.resourceDuration.WithLabelValues(operation, resourceType).Observe(duration.Seconds())
}

// SkipResource records a resource that was not processed because a
// dependency failed.
func (r *Recorder) SkipResource(operation, resourceType string) {
	if r == nil {
		return
	}
	r.resourceOperations.WithLabelValues(operation, resourceType, ResultSkipped).Inc()
}

// ObjectApplied counts an applied Kubernetes object.
func (r *Recorder) ObjectApplied(kind string) {
	if r == nil {
		return
	}
	r.objectsApplied.WithLabelValues(kind).Inc()
}

// ObjectDeleted counts a deleted Kubernetes object.
func (r *Recorder) ObjectDeleted(kind string) {
	if r == nil {
		return
	}
	r.objectsDeleted.WithLabelValues(kind).Inc()
}

// ObserveCloudCall records one AWS API call.
func (r *Recorder) ObserveCloudCall(service, operation string, err error, latency time.Duration) {
	if r == nil {
		return
	}
	r.cloudCalls.WithLabelValues(service, operation, resultOf(err)).Inc()
	r.cloudCallDuration.WithLabelValues(service, operation).Observe(latency.Seconds())
}

// ObserveFetch records one manifest fetch.
func (r *Recorder) ObserveFetch(source string, err error) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(source, resultOf(err)).Inc()
}

// WriteTextfile writes all metrics in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
