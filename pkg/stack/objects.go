package stack

import (
	"context"
	"fmt"
	"slices"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/k8sclient"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
)

const kindCRD = "CustomResourceDefinition"

// protectedNamespaces are never deleted.
var protectedNamespaces = []string{"default", "kube-system", "kube-public", "kube-node-lease"}

func splitCRDs(objs []*unstructured.Unstructured) (crds, rest []*unstructured.Unstructured) {
	for _, obj := range objs {
		if obj.GetKind() == kindCRD {
			crds = append(crds, obj)
		} else {
			rest = append(rest, obj)
		}
	}
	return crds, rest
}

// applyObjects applies CRDs, waits for them to be established and refreshes
// discovery, then applies the remaining objects in install order. Namespaces
// of the remaining objects are defaulted once their kinds are discoverable.
func applyObjects(ctx context.Context, env *Env, objs []*unstructured.Unstructured) error {
	if len(objs) == 0 {
		return nil
	}
	logger := log.FromContext(ctx)
	crds, rest := splitCRDs(objs)

	if len(crds) > 0 {
		if err := env.Kube.ApplyObjects(ctx, crds, env.FieldManager); err != nil {
			return err
		}
		names := make([]string, 0, len(crds))
		for _, crd := range crds {
			names = append(names, crd.GetName())
			env.Metrics.ObjectApplied(kindCRD)
		}
		logger.V(1).Info("waiting for CRDs", "crds", names)
		if err := env.Kube.WaitForCRDsEstablished(ctx, names, env.WaitTimeout); err != nil {
			return err
		}
		if err := env.Kube.RefreshDiscovery(ctx); err != nil {
			return fmt.Errorf("failed to refresh discovery: %w", err)
		}
	}

	defaultNamespaces(ctx, env, rest)
	if err := env.Kube.ApplyObjects(ctx, rest, env.FieldManager); err != nil {
		return err
	}
	for _, obj := range rest {
		env.Metrics.ObjectApplied(obj.GetKind())
	}
	return nil
}

// waitForDeployments blocks until every Deployment in objs is available.
func waitForDeployments(ctx context.Context, env *Env, objs []*unstructured.Unstructured) error {
	for _, obj := range objs {
		if obj.GetKind() != "Deployment" {
			continue
		}
		if err := env.Kube.WaitForDeploymentAvailable(ctx, obj.GetNamespace(), obj.GetName(), env.WaitTimeout); err != nil {
			return err
		}
	}
	return nil
}

// deleteObjects deletes the referenced objects in uninstall order. Missing
// objects and kinds are ignored by the client.
func deleteObjects(ctx context.Context, env *Env, refs []state.ObjectRef) error {
	if len(refs) == 0 {
		return nil
	}
	stubs := make([]*unstructured.Unstructured, 0, len(refs))
	for _, ref := range refs {
		if ref.Kind == "Namespace" && slices.Contains(protectedNamespaces, ref.Name) {
			continue
		}
		obj := &unstructured.Unstructured{}
		obj.SetAPIVersion(ref.APIVersion)
		obj.SetKind(ref.Kind)
		obj.SetNamespace(ref.Namespace)
		obj.SetName(ref.Name)
		stubs = append(stubs, obj)
	}

	logger := log.FromContext(ctx)
	for _, obj := range k8sclient.SortForUninstall(stubs) {
		logger.V(1).Info("deleting object", "kind", obj.GetKind(), "namespace", obj.GetNamespace(), "name", obj.GetName())
		if err := env.Kube.DeleteObject(ctx, obj.GroupVersionKind(), obj.GetNamespace(), obj.GetName()); err != nil {
			return err
		}
		env.Metrics.ObjectDeleted(obj.GetKind())
	}
	return nil
}

// staleObjects returns the refs of prev that are not in desired.
func staleObjects(prev []state.ObjectRef, desired []*unstructured.Unstructured) []state.ObjectRef {
	keep := map[string]bool{}
	for _, obj := range desired {
		keep[ObjectRef(obj).Key()] = true
	}
	var out []state.ObjectRef
	for _, ref := range prev {
		if !keep[ref.Key()] {
			out = append(out, ref)
		}
	}
	return out
}
