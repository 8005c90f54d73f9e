package manifest

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/validation"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/fetch"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

// clusterScopedKinds are built-in kinds that never take a namespace. They
// are used when the cluster cannot be asked.
var clusterScopedKinds = map[string]bool{
	"Namespace":                      true,
	"CustomResourceDefinition":       true,
	"ClusterRole":                    true,
	"ClusterRoleBinding":             true,
	"IngressClass":                   true,
	"StorageClass":                   true,
	"PriorityClass":                  true,
	"PersistentVolume":               true,
	"APIService":                     true,
	"MutatingWebhookConfiguration":   true,
	"ValidatingWebhookConfiguration": true,
	"ValidatingAdmissionPolicy":      true,
	"RuntimeClass":                   true,
	"Node":                           true,
}

func validateNamespace(ns string) error {
	if ns == "" {
		return nil
	}
	if msgs := validation.IsDNS1123Label(ns); len(msgs) > 0 {
		return fmt.Errorf("invalid namespace %q: %s", ns, strings.Join(msgs, "; "))
	}
	return nil
}

// load fetches and decodes every source, then inline document, in order.
func load(ctx context.Context, env *stack.Env, sources, inline []string) ([]*unstructured.Unstructured, error) {
	fetcher := env.Fetcher
	if fetcher == nil {
		fetcher = fetch.New(env.Metrics)
	}

	var docs []fetch.Document
	for _, src := range sources {
		fetched, err := fetcher.Fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		docs = append(docs, fetched...)
	}
	for _, content := range inline {
		docs = append(docs, fetcher.Inline(content))
	}
	log.FromContext(ctx).V(1).Info("loaded manifests", "documents", len(docs))
	return fetch.DecodeAll(docs)
}

// setNamespace places objects without a namespace into ns. Cluster-scoped
// objects are left alone; scope is looked up in the cluster when possible.
func setNamespace(ctx context.Context, env *stack.Env, objs []*unstructured.Unstructured, ns string) {
	if ns == "" {
		return
	}
	for _, obj := range objs {
		if obj.GetNamespace() != "" {
			continue
		}
		if env.Online() {
			namespaced, err := env.Kube.IsNamespaced(ctx, obj.GroupVersionKind())
			if err == nil {
				if namespaced {
					obj.SetNamespace(ns)
				}
				continue
			}
		}
		if !clusterScopedKinds[obj.GetKind()] {
			obj.SetNamespace(ns)
		}
	}
}
