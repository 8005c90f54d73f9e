// Package stack is a small declaration engine for the AWS Load Balancer
// Controller and the manifests around it.
//
// Programs register resources on a Stack. Each resource knows its desired
// state: AWS IAM resources plus Kubernetes objects. The engine orders
// resources by their declared dependencies and can render, preview, apply
// (Up) or tear down (Destroy) the whole stack. What was applied is recorded
// in a state backend so later runs can detect changes and prune objects that
// are no longer declared.
//
// Within a dependency level resources are applied concurrently; a resource is
// never applied before every resource it depends on has succeeded.
package stack
