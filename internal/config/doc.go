// Package config provides the awslbc.yaml stack file.
//
// A stack file names the stack and its state backend and declares the
// resources the awslbc CLI manages: at most one load balancer controller
// deployment, plus any number of manifest groups and single manifest files.
// Resources reference each other by name through depends_on.
//
// Loading parses the YAML, applies defaults from the environment and
// validates the result. Command line flags take precedence over both.
package config
