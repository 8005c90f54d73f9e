// Package render builds the Kubernetes objects that run the AWS Load
// Balancer Controller.
//
// Objects are constructed as typed k8s.io/api values and converted to
// unstructured form for server-side apply. The TargetGroupBinding and
// IngressClassParams CRDs are embedded and returned by CRDs.
package render
