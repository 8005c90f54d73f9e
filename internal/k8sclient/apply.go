package k8sclient

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
)

// ApplyObjects applies objects in install order.
func (c *client) ApplyObjects(ctx context.Context, objs []*unstructured.Unstructured, fieldManager string) error {
	for _, obj := range SortForInstall(objs) {
		if err := c.ApplyObject(ctx, obj, fieldManager); err != nil {
			return err
		}
	}
	return nil
}

// ApplyObject applies a single unstructured object using Server-Side Apply.
// Conflicts with other field managers are forced.
func (c *client) ApplyObject(ctx context.Context, obj *unstructured.Unstructured, fieldManager string) error {
	gvk := obj.GroupVersionKind()
	if gvk.Kind == "" {
		return fmt.Errorf("object %q has no kind set", obj.GetName())
	}
	if obj.GetName() == "" {
		return fmt.Errorf("%s object has no name set", gvk.Kind)
	}
	if fieldManager == "" {
		fieldManager = DefaultFieldManager
	}

	resource, mapping, err := c.resourceFor(ctx, gvk, obj.GetNamespace())
	if err != nil {
		return fmt.Errorf("failed to get REST mapping for %v: %w", gvk, err)
	}

	patch := obj
	if mapping.Scope.Name() != meta.RESTScopeNameNamespace && obj.GetNamespace() != "" {
		patch = obj.DeepCopy()
		patch.SetNamespace("")
	}

	data, err := patch.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal object to JSON: %w", err)
	}

	force := true
	_, err = resource.Patch(ctx, obj.GetName(), types.ApplyPatchType, data, metav1.PatchOptions{
		FieldManager: fieldManager,
		Force:        &force,
	})
	if err != nil {
		return fmt.Errorf("failed to apply %s %s: %w", gvk.Kind, objectKey(obj.GetNamespace(), obj.GetName()), err)
	}
	return nil
}

func objectKey(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}
