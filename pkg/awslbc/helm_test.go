package awslbc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"helm.sh/helm/v3/pkg/chart"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/helm"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/pki"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/render"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

// controllerChart mimics the parts of the eks-charts chart the values target.
func controllerChart() *chart.Chart {
	return &chart.Chart{
		Metadata: &chart.Metadata{APIVersion: chart.APIVersionV2, Name: "aws-load-balancer-controller", Version: "1.7.2"},
		Values: map[string]any{
			"replicaCount":   2,
			"serviceAccount": map[string]any{"create": true, "name": ""},
			"webhookTLS":     map[string]any{"caCert": "", "cert": "", "key": ""},
		},
		Templates: []*chart.File{
			{
				Name: "templates/deployment.yaml",
				Data: []byte(`apiVersion: apps/v1
kind: Deployment
metadata:
  name: {{ .Values.fullnameOverride }}
  namespace: {{ .Release.Namespace }}
spec:
  replicas: {{ .Values.replicaCount }}
  template:
    spec:
      serviceAccountName: {{ .Values.serviceAccount.name }}
      containers:
      - name: controller
        image: {{ .Values.image.repository }}:{{ .Values.image.tag }}
        args:
        - --cluster-name={{ .Values.clusterName }}
        - --aws-region={{ .Values.region }}
        - --ingress-class={{ .Values.ingressClass }}
`),
			},
			{
				Name: "templates/serviceaccount.yaml",
				Data: []byte(`{{- if .Values.serviceAccount.create }}
apiVersion: v1
kind: ServiceAccount
metadata:
  name: chart-sa
  namespace: {{ .Release.Namespace }}
{{- end }}
`),
			},
			{
				Name: "templates/webhook.yaml",
				Data: []byte(`apiVersion: v1
kind: Secret
metadata:
  name: {{ .Values.fullnameOverride }}-tls
  namespace: {{ .Release.Namespace }}
type: kubernetes.io/tls
data:
  ca.crt: {{ .Values.webhookTLS.caCert | b64enc }}
`),
			},
		},
		Files: []*chart.File{{
			Name: "crds/crds.yaml",
			Data: []byte(`apiVersion: apiextensions.k8s.io/v1
kind: CustomResourceDefinition
metadata:
  name: targetgroupbindings.elbv2.k8s.aws
`),
		}},
	}
}

func useChart(t *testing.T, ch *chart.Chart, err error) *helm.ChartSpec {
	t.Helper()
	var requested helm.ChartSpec
	orig := loadChart
	t.Cleanup(func() { loadChart = orig })
	loadChart = func(_ context.Context, spec helm.ChartSpec) (*chart.Chart, error) {
		requested = spec
		return ch, err
	}
	return &requested
}

func TestDesired_Helm(t *testing.T) {
	requested := useChart(t, controllerChart(), nil)

	s := newStack(t)
	args := validArgs()
	args.InstallMethod = InstallMethodHelm
	args.Image = "registry.example.com/lbc:v9"
	args.Chart = &ChartArgs{Version: "1.8.0", Values: map[string]any{"replicaCount": 5}}
	d, err := NewDeployment(s, "lbc", args)
	require.NoError(t, err)

	desired, err := d.Desired(context.Background(), &stack.Env{})
	require.NoError(t, err)
	assert.Equal(t, "1.8.0", requested.Version)
	assert.Len(t, desired.Cloud, 3)

	assert.Equal(t, []string{"Namespace", "ServiceAccount", "Deployment", "Secret"}, kinds(desired.Objects))
	own := find(desired.Objects, "ServiceAccount", "lbc-serviceaccount")
	require.NotNil(t, own)
	assert.Equal(t, d.RoleARN(), own.GetAnnotations()[render.RoleARNAnnotation])

	deploy := find(desired.Objects, "Deployment", "lbc")
	require.NotNil(t, deploy)
	assert.Equal(t, DefaultNamespace, deploy.GetNamespace())
	replicas, _, _ := unstructured.NestedInt64(deploy.Object, "spec", "replicas")
	assert.EqualValues(t, 5, replicas)
	sa, _, _ := unstructured.NestedString(deploy.Object, "spec", "template", "spec", "serviceAccountName")
	assert.Equal(t, "lbc-serviceaccount", sa)
}

func TestDesired_HelmIncludesChartCRDsOnlyWhenRequested(t *testing.T) {
	useChart(t, controllerChart(), nil)

	s := newStack(t)
	args := validArgs()
	args.InstallMethod = InstallMethodHelm
	args.InstallCRDs = true
	args.Namespace = "kube-system"
	d, err := NewDeployment(s, "lbc", args)
	require.NoError(t, err)

	desired, err := d.Desired(context.Background(), &stack.Env{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ServiceAccount", "CustomResourceDefinition", "Deployment", "Secret"}, kinds(desired.Objects))
}

func TestDesired_HelmChartError(t *testing.T) {
	useChart(t, nil, errors.New("repository unreachable"))

	s := newStack(t)
	args := validArgs()
	args.InstallMethod = InstallMethodHelm
	d, err := NewDeployment(s, "lbc", args)
	require.NoError(t, err)

	_, err = d.Desired(context.Background(), &stack.Env{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository unreachable")
}

func TestBuildChartValues(t *testing.T) {
	t.Parallel()

	certs, err := pki.Generate(pki.Request{CommonName: "ca", Service: "lbc-webhook-service", Namespace: "ns"})
	require.NoError(t, err)

	values := buildChartValues(render.Params{
		Name:        "lbc",
		Namespace:   "ns",
		ClusterName: "demo",
		Region:      "eu-west-1",
		Certs:       certs,
	})

	assert.Equal(t, "lbc", values["fullnameOverride"])
	assert.Equal(t, "demo", values["clusterName"])
	assert.Equal(t, "eu-west-1", values["region"])
	assert.Equal(t, 1, values["replicaCount"])
	assert.Equal(t, "alb", values["ingressClass"])
	assert.Equal(t, helm.Values{"create": false, "name": "lbc-serviceaccount"}, values["serviceAccount"])
	assert.Equal(t, helm.Values{"repository": "public.ecr.aws/eks/aws-load-balancer-controller", "tag": "v2.7.2"}, values["image"])
	assert.Equal(t, string(certs.CACert), values["webhookTLS"].(helm.Values)["caCert"])
}

func TestSplitImage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		image, repo, tag string
	}{
		{"public.ecr.aws/eks/aws-load-balancer-controller:v2.7.2", "public.ecr.aws/eks/aws-load-balancer-controller", "v2.7.2"},
		{"localhost:5000/lbc", "localhost:5000/lbc", "latest"},
		{"localhost:5000/lbc:dev", "localhost:5000/lbc", "dev"},
		{"lbc@sha256:abc", "lbc", "sha256:abc"},
	}
	for _, tt := range tests {
		repo, tag := splitImage(tt.image)
		assert.Equal(t, tt.repo, repo, tt.image)
		assert.Equal(t, tt.tag, tag, tt.image)
	}
}
