// Package helm renders Helm charts into Kubernetes objects.
//
// Charts are downloaded at runtime from their repositories and cached on
// disk and in memory. Rendering uses the Helm template engine directly; no
// release is recorded in the cluster, the rendered objects are applied by
// the declaration engine like any other desired object.
package helm
