package k8sclient

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// DeleteObject deletes an object with background propagation. A missing
// object, or a kind the API server no longer serves, is not an error.
func (c *client) DeleteObject(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string) error {
	resource, _, err := c.resourceFor(ctx, gvk, namespace)
	if err != nil {
		if meta.IsNoMatchError(err) {
			log.FromContext(ctx).V(1).Info("kind no longer served, skipping delete", "kind", gvk.Kind, "name", name)
			return nil
		}
		return fmt.Errorf("failed to get REST mapping for %v: %w", gvk, err)
	}

	policy := metav1.DeletePropagationBackground
	err = resource.Delete(ctx, name, metav1.DeleteOptions{PropagationPolicy: &policy})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete %s %s: %w", gvk.Kind, objectKey(namespace, name), err)
	}
	return nil
}
