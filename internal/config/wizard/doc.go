// Package wizard implements the interactive prompts behind awslbc init.
//
// The wizard asks for the cluster's IAM OIDC provider, derives the issuer
// and region from it where possible, and writes a commented awslbc.yaml
// that declares a single controller deployment.
package wizard
