package labels

import (
	"maps"
	"sort"
	"strings"
)

// Recommended Kubernetes label keys.
const (
	KeyName      = "app.kubernetes.io/name"
	KeyInstance  = "app.kubernetes.io/instance"
	KeyComponent = "app.kubernetes.io/component"
	KeyManagedBy = "app.kubernetes.io/managed-by"
	KeyVersion   = "app.kubernetes.io/version"
)

// Annotation keys written by the engine.
const (
	// AnnotationURN records the URN of the resource that declared the object.
	AnnotationURN = "awslbc.io/urn"
)

const (
	// AppName is the value of app.kubernetes.io/name for controller objects.
	AppName = "aws-loadbalancer-controller"

	// ManagedBy is the value of app.kubernetes.io/managed-by.
	ManagedBy = "awslbc"
)

// LabelBuilder provides a fluent interface for building object labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a builder pre-set with the name, instance and
// managed-by labels for a component instance.
func NewLabelBuilder(instance string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyName:      AppName,
			KeyInstance:  instance,
			KeyManagedBy: ManagedBy,
		},
	}
}

// WithComponent sets app.kubernetes.io/component.
func (lb *LabelBuilder) WithComponent(component string) *LabelBuilder {
	lb.labels[KeyComponent] = component
	return lb
}

// WithVersion sets app.kubernetes.io/version when version is non-empty.
func (lb *LabelBuilder) WithVersion(version string) *LabelBuilder {
	if version != "" {
		lb.labels[KeyVersion] = version
	}
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	maps.Copy(lb.labels, extra)
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	return maps.Clone(lb.labels)
}

// Selector returns the immutable subset of labels used in pod selectors.
// It never includes labels that may change between releases.
func Selector(instance string) map[string]string {
	return map[string]string{
		KeyName:     AppName,
		KeyInstance: instance,
	}
}

// SelectorString renders a label map as a comma-separated selector string
// with keys in sorted order.
func SelectorString(set map[string]string) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+set[k])
	}
	return strings.Join(parts, ",")
}
