// Package pki issues the certificates that secure the controller's admission
// webhooks.
//
// A self-signed CA signs a serving certificate for the webhook Service. The
// CA certificate becomes the caBundle of the webhook configurations and the
// bundle is stored in a kubernetes.io/tls Secret. An existing bundle is
// reused while it is still valid for the requested names, so repeated
// applies do not rotate certificates and restart the controller.
package pki
