package render

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"
)

//go:embed crds/*.yaml
var crdFS embed.FS

// CRDDefinitions returns the embedded CustomResourceDefinitions sorted by name.
func CRDDefinitions() ([]*apiextensionsv1.CustomResourceDefinition, error) {
	files, err := fs.Glob(crdFS, "crds/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	crds := make([]*apiextensionsv1.CustomResourceDefinition, 0, len(files))
	for _, file := range files {
		data, err := crdFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		crd := &apiextensionsv1.CustomResourceDefinition{}
		if err := yaml.UnmarshalStrict(data, crd); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		crds = append(crds, crd)
	}
	sort.Slice(crds, func(i, j int) bool { return crds[i].Name < crds[j].Name })
	return crds, nil
}

// CRDs returns the embedded CRDs as unstructured objects carrying the given
// labels.
func CRDs(labels map[string]string) ([]*unstructured.Unstructured, error) {
	defs, err := CRDDefinitions()
	if err != nil {
		return nil, err
	}
	out := make([]*unstructured.Unstructured, 0, len(defs))
	for _, crd := range defs {
		crd.Labels = labels
		u, err := ToUnstructured(crd)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
