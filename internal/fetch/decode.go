package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	utiljson "k8s.io/apimachinery/pkg/util/json"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
)

// Decode splits a multi-document YAML or JSON stream into unstructured
// objects. Empty documents are skipped and List kinds are flattened into
// their items.
func Decode(data []byte) ([]*unstructured.Unstructured, error) {
	decoder := utilyaml.NewYAMLOrJSONDecoder(bytes.NewReader(data), 4096)

	var objects []*unstructured.Unstructured
	for i := 0; ; i++ {
		var ext runtime.RawExtension
		if err := decoder.Decode(&ext); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode document %d: %w", i, err)
		}
		trimmed := bytes.TrimSpace(ext.Raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}

		var raw map[string]any
		if err := utiljson.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode document %d: %w", i, err)
		}
		if len(raw) == 0 {
			continue
		}

		obj := &unstructured.Unstructured{Object: raw}
		if obj.GetKind() == "" {
			return nil, fmt.Errorf("document %d has no kind", i)
		}

		if obj.IsList() {
			list, err := obj.ToList()
			if err != nil {
				return nil, fmt.Errorf("failed to flatten %s in document %d: %w", obj.GetKind(), i, err)
			}
			for j := range list.Items {
				objects = append(objects, &list.Items[j])
			}
			continue
		}

		objects = append(objects, obj)
	}
	return objects, nil
}

// DecodeAll decodes every document and concatenates the results, prefixing
// errors with the document source.
func DecodeAll(docs []Document) ([]*unstructured.Unstructured, error) {
	var objects []*unstructured.Unstructured
	for _, doc := range docs {
		objs, err := Decode(doc.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.Source, err)
		}
		objects = append(objects, objs...)
	}
	return objects, nil
}
