package awslbc

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/helm"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/render"
)

// loadChart fetches a chart. Tests replace it with an in-memory chart.
var loadChart = helm.DownloadChart

// chartObjects renders the upstream chart. The service account stays ours so
// it carries the role annotation, and the webhook certificate is passed in so
// the chart does not generate a new one on every render.
func (d *Deployment) chartObjects(ctx context.Context, p render.Params) ([]*unstructured.Unstructured, error) {
	spec := d.args.chartSpec()
	ch, err := loadChart(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart %s: %w", spec, err)
	}

	values := buildChartValues(p)
	if d.args.Chart != nil && len(d.args.Chart.Values) > 0 {
		values = helm.DeepMerge(values, helm.Values(d.args.Chart.Values))
	}

	objs, err := helm.NewRenderer(d.name, p.Namespace).
		WithCRDs(p.InstallCRDs).
		RenderObjects(ch, values)
	if err != nil {
		return nil, err
	}

	var own []*unstructured.Unstructured
	if p.CreateNamespace {
		ns, err := render.ToUnstructured(render.Namespace(p))
		if err != nil {
			return nil, err
		}
		own = append(own, ns)
	}
	sa, err := render.ToUnstructured(render.ServiceAccount(p))
	if err != nil {
		return nil, err
	}
	own = append(own, sa)

	return append(own, objs...), nil
}

// buildChartValues maps deployment parameters to aws-load-balancer-controller
// chart values.
func buildChartValues(p render.Params) helm.Values {
	image := p.Image
	if image == "" {
		image = render.DefaultImage
	}
	repository, tag := splitImage(image)

	replicas := p.Replicas
	if replicas == 0 {
		replicas = 1
	}
	ingressClass := p.IngressClass
	if ingressClass == "" {
		ingressClass = render.DefaultIngressClass
	}

	values := helm.Values{
		"fullnameOverride": p.Name,
		"clusterName":      p.ClusterName,
		"region":           p.Region,
		"replicaCount":     int(replicas),
		"image": helm.Values{
			"repository": repository,
			"tag":        tag,
		},
		"serviceAccount": helm.Values{
			"create": false,
			"name":   render.ServiceAccount(p).Name,
		},
		"ingressClass":               ingressClass,
		"createIngressClassResource": true,
		"enableCertManager":          false,
		"keepTLSSecret":              true,
	}
	if p.Certs != nil {
		values["webhookTLS"] = helm.Values{
			"caCert": string(p.Certs.CACert),
			"cert":   string(p.Certs.TLSCert),
			"key":    string(p.Certs.TLSKey),
		}
	}
	return values
}

// splitImage splits an image reference into repository and tag. A missing
// tag yields "latest".
func splitImage(image string) (repository, tag string) {
	if i := strings.LastIndex(image, "@"); i >= 0 {
		return image[:i], image[i+1:]
	}
	slash := strings.LastIndex(image, "/")
	if colon := strings.LastIndex(image, ":"); colon > slash {
		return image[:colon], image[colon+1:]
	}
	return image, "latest"
}
