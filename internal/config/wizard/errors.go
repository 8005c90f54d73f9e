package wizard

import "errors"

// ErrNotTerminal is returned when stdin or stdout is not a terminal.
var ErrNotTerminal = errors.New("awslbc init needs an interactive terminal")

// Validation errors for the interactive wizard.
var (
	errStackNameRequired   = errors.New("stack name is required")
	errClusterNameRequired = errors.New("cluster name is required")
	errClusterNameInvalid  = errors.New("cluster name must be 1-100 alphanumeric characters, hyphens or underscores, starting with a letter")
	errProviderRequired    = errors.New("OIDC provider ARN is required")
	errIssuerMismatch      = errors.New("issuer does not match the OIDC provider")
	errNamespaceInvalid    = errors.New("namespace must be a lowercase DNS label")
	errBackendInvalid      = errors.New("backend must start with file:// or s3://")
)
