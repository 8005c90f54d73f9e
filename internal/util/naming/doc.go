// Package naming provides consistent naming functions for the resources a
// controller deployment creates.
//
// Kubernetes object names follow the pattern {name}-{type}. IAM names are
// scoped by cluster as well, because IAM is account-global while the same
// component name is commonly reused across clusters.
package naming
