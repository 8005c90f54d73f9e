package testing

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/k8sclient"
)

var _ k8sclient.Client = (*FakeKube)(nil)

// clusterScopedKinds are the built-in kinds that live outside namespaces.
var clusterScopedKinds = map[string]bool{
	"Namespace":                      true,
	"Node":                           true,
	"PersistentVolume":               true,
	"StorageClass":                   true,
	"PriorityClass":                  true,
	"ClusterRole":                    true,
	"ClusterRoleBinding":             true,
	"CustomResourceDefinition":       true,
	"APIService":                     true,
	"IngressClass":                   true,
	"MutatingWebhookConfiguration":   true,
	"ValidatingWebhookConfiguration": true,
}

// builtinGroups are served without a CRD.
var builtinGroups = map[string]bool{
	"":                             true,
	"apps":                         true,
	"batch":                        true,
	"policy":                       true,
	"autoscaling":                  true,
	"networking.k8s.io":            true,
	"rbac.authorization.k8s.io":    true,
	"admissionregistration.k8s.io": true,
	"apiextensions.k8s.io":         true,
	"apiregistration.k8s.io":       true,
	"coordination.k8s.io":          true,
	"scheduling.k8s.io":            true,
	"storage.k8s.io":               true,
	"discovery.k8s.io":             true,
	"extensions":                   true,
}

// namespaces that exist in every cluster.
var systemNamespaces = []string{"default", "kube-system", "kube-public", "kube-node-lease"}

// FakeKube is an in-memory k8sclient.Client. It rejects custom resources
// whose CRD has not been applied and namespaced objects whose namespace does
// not exist, so install ordering mistakes surface in tests.
type FakeKube struct {
	mu sync.Mutex

	objects map[string]*unstructured.Unstructured
	// customKinds maps group/kind of applied CRDs to whether they are namespaced.
	customKinds map[string]bool
	applied     []string
	deleted     []string
	waits       []string
	errors      map[string][]error
	refreshes   int
}

// NewFakeKube returns an empty fake cluster.
func NewFakeKube() *FakeKube {
	return &FakeKube{
		objects:     map[string]*unstructured.Unstructured{},
		customKinds: map[string]bool{},
		errors:      map[string][]error{},
	}
}

// ObjectKey identifies an object in the fake by kind, namespace and name.
func ObjectKey(kind, namespace, name string) string {
	if namespace == "" {
		return kind + "/" + name
	}
	return kind + "/" + namespace + "/" + name
}

// FailNext makes the next call of operation return err. Operations are
// method names, optionally qualified with an object key, for example
// "ApplyObject:Deployment/demo/web".
func (f *FakeKube) FailNext(operation string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[operation] = append(f.errors[operation], err)
}

func (f *FakeKube) injected(operations ...string) error {
	for _, op := range operations {
		if queue := f.errors[op]; len(queue) > 0 {
			f.errors[op] = queue[1:]
			return queue[0]
		}
	}
	return nil
}

// Object returns a copy of a stored object, or nil.
func (f *FakeKube) Object(kind, namespace, name string) *unstructured.Unstructured {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj, ok := f.objects[ObjectKey(kind, namespace, name)]; ok {
		return obj.DeepCopy()
	}
	return nil
}

// Keys returns the keys of all stored objects, sorted.
func (f *FakeKube) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Applied returns the keys of applied objects in apply order.
func (f *FakeKube) Applied() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.applied)
}

// Deleted returns the keys of deleted objects in delete order.
func (f *FakeKube) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.deleted)
}

// Waits returns the readiness waits performed, such as "crd/widgets.example.com".
func (f *FakeKube) Waits() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.waits)
}

// Refreshes returns how often discovery was refreshed.
func (f *FakeKube) Refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

// AddSecret stores a secret as if it already existed in the cluster.
func (f *FakeKube) AddSecret(secret *corev1.Secret) error {
	content, err := runtime.DefaultUnstructuredConverter.ToUnstructured(secret)
	if err != nil {
		return err
	}
	obj := &unstructured.Unstructured{Object: content}
	obj.SetAPIVersion("v1")
	obj.SetKind("Secret")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[ObjectKey("Secret", secret.Namespace, secret.Name)] = obj
	return nil
}

func (f *FakeKube) namespaced(gvk schema.GroupVersionKind) (bool, error) {
	if builtinGroups[gvk.Group] {
		return !clusterScopedKinds[gvk.Kind], nil
	}
	namespaced, ok := f.customKinds[gvk.Group+"/"+gvk.Kind]
	if !ok {
		return false, &meta.NoKindMatchError{GroupKind: gvk.GroupKind(), SearchedVersions: []string{gvk.Version}}
	}
	return namespaced, nil
}

func (f *FakeKube) namespaceExists(name string) bool {
	if slices.Contains(systemNamespaces, name) {
		return true
	}
	_, ok := f.objects[ObjectKey("Namespace", "", name)]
	return ok
}

// ApplyObject stores the object, replacing any previous version.
func (f *FakeKube) ApplyObject(_ context.Context, obj *unstructured.Unstructured, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apply(obj)
}

func (f *FakeKube) apply(obj *unstructured.Unstructured) error {
	gvk := obj.GroupVersionKind()
	namespaced, err := f.namespaced(gvk)
	if err != nil {
		return fmt.Errorf("failed to apply %s %s: %w", gvk.Kind, obj.GetName(), err)
	}

	stored := obj.DeepCopy()
	if !namespaced {
		stored.SetNamespace("")
	} else {
		if stored.GetNamespace() == "" {
			stored.SetNamespace("default")
		}
		if !f.namespaceExists(stored.GetNamespace()) {
			return fmt.Errorf("failed to apply %s %s: %w", gvk.Kind, obj.GetName(),
				apierrors.NewNotFound(schema.GroupResource{Resource: "namespaces"}, stored.GetNamespace()))
		}
	}

	key := ObjectKey(gvk.Kind, stored.GetNamespace(), stored.GetName())
	if err := f.injected("ApplyObject:"+key, "ApplyObject"); err != nil {
		return fmt.Errorf("failed to apply %s %s: %w", gvk.Kind, obj.GetName(), err)
	}

	if gvk.Kind == "CustomResourceDefinition" {
		group, _, _ := unstructured.NestedString(stored.Object, "spec", "group")
		kind, _, _ := unstructured.NestedString(stored.Object, "spec", "names", "kind")
		scope, _, _ := unstructured.NestedString(stored.Object, "spec", "scope")
		f.customKinds[group+"/"+kind] = scope != "Cluster"
	}

	f.objects[key] = stored
	f.applied = append(f.applied, key)
	return nil
}

// ApplyObjects applies objects in install order.
func (f *FakeKube) ApplyObjects(ctx context.Context, objs []*unstructured.Unstructured, fieldManager string) error {
	for _, obj := range k8sclient.SortForInstall(objs) {
		if err := f.ApplyObject(ctx, obj, fieldManager); err != nil {
			return err
		}
	}
	return nil
}

// DeleteObject removes an object. Missing objects are ignored.
func (f *FakeKube) DeleteObject(_ context.Context, gvk schema.GroupVersionKind, namespace, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	namespaced, err := f.namespaced(gvk)
	if meta.IsNoMatchError(err) {
		return nil
	}
	if !namespaced {
		namespace = ""
	}
	key := ObjectKey(gvk.Kind, namespace, name)
	if err := f.injected("DeleteObject:"+key, "DeleteObject"); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", gvk.Kind, name, err)
	}

	obj, ok := f.objects[key]
	if !ok {
		return nil
	}
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)

	switch gvk.Kind {
	case "CustomResourceDefinition":
		group, _, _ := unstructured.NestedString(obj.Object, "spec", "group")
		kind, _, _ := unstructured.NestedString(obj.Object, "spec", "names", "kind")
		delete(f.customKinds, group+"/"+kind)
	case "Namespace":
		prefix := "/" + name + "/"
		for k := range f.objects {
			if strings.Contains(k, prefix) {
				delete(f.objects, k)
			}
		}
	}
	return nil
}

// GetSecret returns a stored secret, or nil.
func (f *FakeKube) GetSecret(_ context.Context, namespace, name string) (*corev1.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("GetSecret"); err != nil {
		return nil, err
	}
	obj, ok := f.objects[ObjectKey("Secret", namespace, name)]
	if !ok {
		return nil, nil
	}
	secret := &corev1.Secret{}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// IsNamespaced reports the scope of built-in kinds and applied CRDs.
func (f *FakeKube) IsNamespaced(_ context.Context, gvk schema.GroupVersionKind) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.namespaced(gvk)
}

// RefreshDiscovery counts refreshes.
func (f *FakeKube) RefreshDiscovery(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.injected("RefreshDiscovery")
}

// WaitForCRDsEstablished succeeds once every named CRD has been applied.
func (f *FakeKube) WaitForCRDsEstablished(_ context.Context, names []string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("WaitForCRDsEstablished"); err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := f.objects[ObjectKey("CustomResourceDefinition", "", name)]; !ok {
			return fmt.Errorf("timed out waiting for CRD %s to be established", name)
		}
		f.waits = append(f.waits, "crd/"+name)
	}
	return nil
}

// WaitForDeploymentAvailable succeeds once the Deployment has been applied.
func (f *FakeKube) WaitForDeploymentAvailable(_ context.Context, namespace, name string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.injected("WaitForDeploymentAvailable"); err != nil {
		return err
	}
	if _, ok := f.objects[ObjectKey("Deployment", namespace, name)]; !ok {
		return fmt.Errorf("timed out waiting for deployment %s/%s to become available", namespace, name)
	}
	f.waits = append(f.waits, "deployment/"+namespace+"/"+name)
	return nil
}
