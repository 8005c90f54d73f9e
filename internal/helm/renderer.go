package helm

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chartutil"
	"helm.sh/helm/v3/pkg/engine"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/fetch"
)

// DefaultKubeVersion is the Kubernetes version templates are rendered for.
const DefaultKubeVersion = "v1.31.0"

// Renderer renders Helm charts with provided values.
type Renderer struct {
	releaseName string
	namespace   string
	kubeVersion string
	includeCRDs bool
}

// NewRenderer creates a renderer for a release in namespace.
func NewRenderer(releaseName, namespace string) *Renderer {
	return &Renderer{
		releaseName: releaseName,
		namespace:   namespace,
		kubeVersion: DefaultKubeVersion,
	}
}

// WithCRDs includes the chart's crds/ directory in the output.
func (r *Renderer) WithCRDs(include bool) *Renderer {
	r.includeCRDs = include
	return r
}

// WithKubeVersion sets the cluster version visible to templates.
func (r *Renderer) WithKubeVersion(version string) *Renderer {
	if version != "" {
		r.kubeVersion = version
	}
	return r
}

// RenderFromSpec downloads a chart and renders it to objects.
func (r *Renderer) RenderFromSpec(ctx context.Context, spec ChartSpec, values Values) ([]*unstructured.Unstructured, error) {
	ch, err := DownloadChart(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to download chart: %w", err)
	}
	return r.RenderObjects(ch, values)
}

// RenderObjects renders a loaded chart and decodes the manifests.
func (r *Renderer) RenderObjects(ch *chart.Chart, values Values) ([]*unstructured.Unstructured, error) {
	manifests, err := r.renderChart(ch, values)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart %s: %w", ch.Name(), err)
	}
	objs, err := fetch.Decode(manifests)
	if err != nil {
		return nil, fmt.Errorf("failed to decode chart %s: %w", ch.Name(), err)
	}
	return objs, nil
}

// renderChart uses the helm engine to render the chart with values. Chart
// defaults are deep merged under the provided values.
func (r *Renderer) renderChart(ch *chart.Chart, values Values) ([]byte, error) {
	chartDefaults := make(Values)
	if len(ch.Values) > 0 {
		chartDefaults = Values(ch.Values)
	}
	merged := DeepMerge(chartDefaults, values)

	releaseOptions := chartutil.ReleaseOptions{
		Name:      r.releaseName,
		Namespace: r.namespace,
		IsInstall: true,
	}

	kubeVersion, err := chartutil.ParseKubeVersion(r.kubeVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid kube version %q: %w", r.kubeVersion, err)
	}
	capabilities := chartutil.DefaultCapabilities.Copy()
	capabilities.KubeVersion = *kubeVersion

	valuesToRender, err := chartutil.ToRenderValues(ch, chartutil.Values(merged.ToMap()), releaseOptions, capabilities)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare values: %w", err)
	}

	rendered, err := engine.Render(ch, valuesToRender)
	if err != nil {
		return nil, fmt.Errorf("failed to render templates: %w", err)
	}

	// map iteration is random; sort for stable output
	names := make([]string, 0, len(rendered))
	for name := range rendered {
		names = append(names, name)
	}
	sort.Strings(names)

	var combined bytes.Buffer
	if r.includeCRDs {
		for _, crd := range ch.CRDObjects() {
			appendDocument(&combined, string(crd.File.Data))
		}
	}
	for _, name := range names {
		if filepath.Base(name) == "NOTES.txt" || strings.HasPrefix(filepath.Base(name), "_") {
			continue
		}
		appendDocument(&combined, rendered[name])
	}
	return combined.Bytes(), nil
}

func appendDocument(buf *bytes.Buffer, content string) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return
	}
	if buf.Len() > 0 {
		buf.WriteString("\n---\n")
	}
	buf.WriteString(trimmed)
	buf.WriteString("\n")
}
