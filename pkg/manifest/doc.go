// Package manifest declares plain Kubernetes manifests as stack resources.
//
// A ConfigGroup loads any number of manifest sources (http(s) URLs, local
// files and globs, or inline YAML); a ConfigFile loads exactly one. Both are
// typically used to install CRDs ahead of a Deployment, or to deploy
// workloads after it, with stack.DependsOn expressing the order.
package manifest
