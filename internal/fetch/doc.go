// Package fetch loads Kubernetes manifests from remote URLs, local files,
// local globs or inline content and decodes them into unstructured objects.
//
// Remote downloads are retried with exponential backoff. A 4xx response is
// treated as permanent and returned immediately; 5xx responses and transport
// errors are retried.
package fetch
