package k8sclient

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	k8stesting "k8s.io/client-go/testing"
)

// recordPatches installs a reactor that records every apply patch and
// echoes the patched object back.
func recordPatches(t *testing.T, dyn interface {
	PrependReactor(verb, resource string, reaction k8stesting.ReactionFunc)
}) *[]k8stesting.PatchAction {
	t.Helper()
	var patches []k8stesting.PatchAction
	dyn.PrependReactor("patch", "*", func(action k8stesting.Action) (bool, runtime.Object, error) {
		patch := action.(k8stesting.PatchAction)
		patches = append(patches, patch)

		obj := &unstructured.Unstructured{}
		if err := json.Unmarshal(patch.GetPatch(), &obj.Object); err != nil {
			return true, nil, err
		}
		return true, obj, nil
	})
	return &patches
}

func TestApplyObject_ServerSideApply(t *testing.T) {
	t.Parallel()
	c, dyn, _, _ := newTestClient(t)
	patches := recordPatches(t, dyn)

	err := c.ApplyObject(context.Background(), configMap("demo", "settings"), "test-manager")
	require.NoError(t, err)

	require.Len(t, *patches, 1)
	p := (*patches)[0]
	assert.Equal(t, types.ApplyPatchType, p.GetPatchType())
	assert.Equal(t, "demo", p.GetNamespace())
	assert.Equal(t, "settings", p.GetName())
	assert.Equal(t, "configmaps", p.GetResource().Resource)
}

func TestApplyObject_DefaultsNamespace(t *testing.T) {
	t.Parallel()
	c, dyn, _, _ := newTestClient(t)
	patches := recordPatches(t, dyn)

	require.NoError(t, c.ApplyObject(context.Background(), configMap("", "settings"), ""))

	require.Len(t, *patches, 1)
	assert.Equal(t, "default", (*patches)[0].GetNamespace())
}

func TestApplyObject_ClusterScopedDropsNamespace(t *testing.T) {
	t.Parallel()
	c, dyn, _, _ := newTestClient(t)
	patches := recordPatches(t, dyn)

	ns := &unstructured.Unstructured{}
	ns.SetAPIVersion("v1")
	ns.SetKind("Namespace")
	ns.SetName("demo")
	ns.SetNamespace("ignored")

	require.NoError(t, c.ApplyObject(context.Background(), ns, "test-manager"))

	require.Len(t, *patches, 1)
	assert.Empty(t, (*patches)[0].GetNamespace())
	assert.NotContains(t, string((*patches)[0].GetPatch()), "ignored")
	assert.Equal(t, "ignored", ns.GetNamespace(), "input object must not be mutated")
}

func TestApplyObject_Validation(t *testing.T) {
	t.Parallel()
	c, _, _, _ := newTestClient(t)

	noKind := &unstructured.Unstructured{Object: map[string]any{"metadata": map[string]any{"name": "x"}}}
	assert.ErrorContains(t, c.ApplyObject(context.Background(), noKind, "m"), "has no kind set")

	noName := configMap("demo", "")
	assert.ErrorContains(t, c.ApplyObject(context.Background(), noName, "m"), "has no name set")

	unknown := &unstructured.Unstructured{}
	unknown.SetAPIVersion("example.com/v1")
	unknown.SetKind("Widget")
	unknown.SetName("w")
	assert.ErrorContains(t, c.ApplyObject(context.Background(), unknown, "m"), "failed to get REST mapping")
}

func TestApplyObject_PatchError(t *testing.T) {
	t.Parallel()
	c, dyn, _, _ := newTestClient(t)
	dyn.PrependReactor("patch", "*", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("conflict")
	})

	err := c.ApplyObject(context.Background(), configMap("demo", "settings"), "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply ConfigMap demo/settings")
}

func TestApplyObjects_InstallOrder(t *testing.T) {
	t.Parallel()
	c, dyn, _, _ := newTestClient(t)
	patches := recordPatches(t, dyn)

	deploy := &unstructured.Unstructured{}
	deploy.SetAPIVersion("apps/v1")
	deploy.SetKind("Deployment")
	deploy.SetNamespace("demo")
	deploy.SetName("web")

	ns := &unstructured.Unstructured{}
	ns.SetAPIVersion("v1")
	ns.SetKind("Namespace")
	ns.SetName("demo")

	err := c.ApplyObjects(context.Background(), []*unstructured.Unstructured{deploy, configMap("demo", "cfg"), ns}, "m")
	require.NoError(t, err)

	require.Len(t, *patches, 3)
	var order []string
	for _, p := range *patches {
		order = append(order, p.GetResource().Resource)
	}
	assert.Equal(t, []string{"namespaces", "configmaps", "deployments"}, order)
}
