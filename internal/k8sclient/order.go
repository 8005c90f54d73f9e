package k8sclient

import (
	"slices"

	"helm.sh/helm/v3/pkg/releaseutil"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// SortForInstall returns objects ordered the way Helm installs them:
// namespaces, CRDs and RBAC before workloads, webhooks last. Objects of
// kinds Helm does not know keep their relative order after known kinds.
func SortForInstall(objs []*unstructured.Unstructured) []*unstructured.Unstructured {
	return sortByKind(objs, releaseutil.InstallOrder)
}

// SortForUninstall returns objects in Helm's uninstall order.
func SortForUninstall(objs []*unstructured.Unstructured) []*unstructured.Unstructured {
	return sortByKind(objs, releaseutil.UninstallOrder)
}

// KindRank returns the position of kind in Helm's install order. Unknown
// kinds rank after every known kind.
func KindRank(kind string) int {
	return rank(releaseutil.InstallOrder, kind)
}

func sortByKind(objs []*unstructured.Unstructured, order releaseutil.KindSortOrder) []*unstructured.Unstructured {
	sorted := slices.Clone(objs)
	slices.SortStableFunc(sorted, func(a, b *unstructured.Unstructured) int {
		return rank(order, a.GetKind()) - rank(order, b.GetKind())
	})
	return sorted
}

func rank(order releaseutil.KindSortOrder, kind string) int {
	if i := slices.Index(order, kind); i >= 0 {
		return i
	}
	return len(order)
}
