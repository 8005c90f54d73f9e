// Package labels provides consistent labeling utilities for the Kubernetes
// objects declared by awslbc.
//
// Every object carries the recommended app.kubernetes.io labels so that
// selectors, kubectl queries and the engine's pruning logic agree on which
// objects belong to a component instance.
package labels
