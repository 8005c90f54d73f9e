package stack

import (
	"context"
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
)

const (
	objectKeyPrefix = "object:"
	cloudKeyPrefix  = "cloud:"
)

// ObjectRef returns the state reference of a Kubernetes object.
func ObjectRef(obj *unstructured.Unstructured) state.ObjectRef {
	return state.ObjectRef{
		APIVersion: obj.GetAPIVersion(),
		Kind:       obj.GetKind(),
		Namespace:  obj.GetNamespace(),
		Name:       obj.GetName(),
	}
}

// CloudRef returns the state reference of a cloud resource.
func CloudRef(c CloudResource) state.CloudRef {
	return state.CloudRef{
		Kind:      c.Kind,
		Name:      c.Name,
		ARN:       c.ARN,
		Role:      c.Role,
		PolicyARN: c.PolicyARN,
	}
}

// fingerprints returns the fingerprint of every desired item keyed by the
// item's state key. Two objects with the same key are an error.
func fingerprints(d *Desired) (map[string]string, error) {
	out := make(map[string]string, len(d.Objects)+len(d.Cloud))
	for _, c := range d.Cloud {
		key := cloudKeyPrefix + CloudRef(c).Key()
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("duplicate cloud resource %s", key)
		}
		fp, err := state.Fingerprint(c)
		if err != nil {
			return nil, err
		}
		out[key] = fp
	}
	for _, obj := range d.Objects {
		key := objectKeyPrefix + ObjectRef(obj).Key()
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("duplicate object %s", ObjectRef(obj))
		}
		fp, err := state.Fingerprint(obj.Object)
		if err != nil {
			return nil, err
		}
		out[key] = fp
	}
	return out, nil
}

// defaultNamespaces sets the "default" namespace on namespaced objects that
// have none, so state records match what the API server stores.
func defaultNamespaces(ctx context.Context, env *Env, objs []*unstructured.Unstructured) {
	if !env.Online() {
		return
	}
	for _, obj := range objs {
		if obj.GetNamespace() != "" || obj.GetKind() == "CustomResourceDefinition" {
			continue
		}
		namespaced, err := env.Kube.IsNamespaced(ctx, obj.GroupVersionKind())
		if err != nil {
			// kind may be served by a CRD that is applied later in the
			// same resource; the caller retries after CRDs are established
			continue
		}
		if namespaced {
			obj.SetNamespace("default")
		}
	}
}

// newRecord builds the state record of an applied resource.
func newRecord(res Resource, d *Desired, fps map[string]string, outputs map[string]string) state.Record {
	rec := state.Record{
		URN:          string(res.URN()),
		Type:         res.URN().Type(),
		Fingerprints: fps,
		Outputs:      outputs,
	}
	for _, dep := range res.Dependencies() {
		rec.Dependencies = append(rec.Dependencies, string(dep.URN()))
	}
	sort.Strings(rec.Dependencies)
	for _, c := range d.Cloud {
		rec.Cloud = append(rec.Cloud, CloudRef(c))
	}
	for _, obj := range d.Objects {
		rec.Objects = append(rec.Objects, ObjectRef(obj))
	}
	return rec
}
