package k8sclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func objOfKind(kind, name string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{}
	obj.SetKind(kind)
	obj.SetName(name)
	return obj
}

func kinds(objs []*unstructured.Unstructured) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.GetKind()+"/"+o.GetName())
	}
	return out
}

func TestSortForInstall(t *testing.T) {
	t.Parallel()
	objs := []*unstructured.Unstructured{
		objOfKind("ValidatingWebhookConfiguration", "v"),
		objOfKind("TargetGroupBinding", "tgb"),
		objOfKind("Deployment", "d"),
		objOfKind("CustomResourceDefinition", "crd"),
		objOfKind("ServiceAccount", "sa"),
		objOfKind("Namespace", "ns"),
		objOfKind("Deployment", "a"),
	}

	got := kinds(SortForInstall(objs))
	assert.Equal(t, []string{
		"Namespace/ns",
		"ServiceAccount/sa",
		"CustomResourceDefinition/crd",
		"Deployment/d",
		"Deployment/a",
		"ValidatingWebhookConfiguration/v",
		"TargetGroupBinding/tgb",
	}, got)

	// input untouched
	assert.Equal(t, "ValidatingWebhookConfiguration", objs[0].GetKind())
}

func TestSortForUninstall(t *testing.T) {
	t.Parallel()
	objs := []*unstructured.Unstructured{
		objOfKind("Namespace", "ns"),
		objOfKind("CustomResourceDefinition", "crd"),
		objOfKind("Deployment", "d"),
	}

	got := kinds(SortForUninstall(objs))
	assert.Equal(t, "Deployment/d", got[0])
	assert.Equal(t, "Namespace/ns", got[len(got)-1])
}

func TestKindRank(t *testing.T) {
	t.Parallel()
	assert.Less(t, KindRank("Namespace"), KindRank("CustomResourceDefinition"))
	assert.Less(t, KindRank("CustomResourceDefinition"), KindRank("Deployment"))
	assert.Equal(t, KindRank("Unknown"), KindRank("AlsoUnknown"))
}
