// Package k8sclient provides the Kubernetes operations the engine needs,
// wrapping k8s.io/client-go for Server-Side Apply of unstructured objects,
// deletion, secret reads and readiness waits for CRDs and Deployments.
package k8sclient
