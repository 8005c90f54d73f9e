package awslbc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/iam"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/render"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/state"
	fakes "github.com/jaxxstorm/awsloadbalancercontroller/internal/testing"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/util/retry"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

func newStack(t *testing.T) *stack.Stack {
	t.Helper()
	s, err := stack.New("dev")
	require.NoError(t, err)
	return s
}

func find(objs []*unstructured.Unstructured, kind, name string) *unstructured.Unstructured {
	for _, obj := range objs {
		if obj.GetKind() == kind && obj.GetName() == name {
			return obj
		}
	}
	return nil
}

func kinds(objs []*unstructured.Unstructured) []string {
	out := make([]string, 0, len(objs))
	for _, obj := range objs {
		out = append(out, obj.GetKind())
	}
	return out
}

func TestNewDeployment(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	d, err := NewDeployment(s, "lbc", validArgs())
	require.NoError(t, err)
	assert.Equal(t, stack.NewURN("dev", Type, "lbc"), d.URN())
	assert.Equal(t, DefaultNamespace, d.Namespace())
	assert.Equal(t, "lbc-serviceaccount", d.ServiceAccountName())
	assert.Equal(t, "lbc-"+fakes.ClusterName+"-lbc", d.RoleName())
	assert.Equal(t, "arn:aws:iam::"+fakes.AccountID+":role/lbc-"+fakes.ClusterName+"-lbc", d.RoleARN())
	assert.Equal(t, "arn:aws:iam::"+fakes.AccountID+":policy/lbc-"+fakes.ClusterName+"-lbc-policy", d.PolicyARN())
	assert.Equal(t, "alb", d.IngressClass())

	_, err = NewDeployment(s, "lbc", validArgs())
	assert.Error(t, err, "duplicate name")

	_, err = NewDeployment(s, "other", &DeploymentArgs{})
	assert.Error(t, err)
}

func TestNewDeployment_DependsOn(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	first, err := NewDeployment(s, "first", validArgs())
	require.NoError(t, err)
	second, err := NewDeployment(s, "second", validArgs(), stack.DependsOn(first))
	require.NoError(t, err)
	require.Len(t, second.Dependencies(), 1)
	assert.Equal(t, first.URN(), second.Dependencies()[0].URN())
}

func TestDesired_Offline(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	args := validArgs()
	args.InstallCRDs = true
	d, err := NewDeployment(s, "lbc", args)
	require.NoError(t, err)

	desired, err := d.Desired(context.Background(), &stack.Env{})
	require.NoError(t, err)

	require.Len(t, desired.Cloud, 3)
	assert.Equal(t, stack.KindIAMRole, desired.Cloud[0].Kind)
	assert.Equal(t, d.RoleARN(), desired.Cloud[0].ARN)
	assert.Contains(t, desired.Cloud[0].Document, "system:serviceaccount:"+DefaultNamespace+":lbc-serviceaccount")
	assert.Contains(t, desired.Cloud[0].Document, "sts.amazonaws.com")
	assert.Equal(t, string(d.URN()), desired.Cloud[0].Tags["awslbc.io/urn"])
	assert.Equal(t, stack.KindIAMPolicy, desired.Cloud[1].Kind)
	assert.True(t, iam.DocumentsEqual(iam.ControllerPolicy(), desired.Cloud[1].Document))
	assert.Equal(t, stack.KindIAMPolicyAttachment, desired.Cloud[2].Kind)
	assert.Equal(t, d.PolicyARN(), desired.Cloud[2].PolicyARN)

	assert.Equal(t, []string{
		"CustomResourceDefinition", "CustomResourceDefinition",
		"Namespace", "ServiceAccount", "ClusterRole", "ClusterRoleBinding",
		"Role", "RoleBinding", "Secret", "Service", "Deployment", "IngressClass",
		"MutatingWebhookConfiguration", "ValidatingWebhookConfiguration",
	}, kinds(desired.Objects))

	sa := find(desired.Objects, "ServiceAccount", "lbc-serviceaccount")
	require.NotNil(t, sa)
	assert.Equal(t, d.RoleARN(), sa.GetAnnotations()[render.RoleARNAnnotation])

	deploy := find(desired.Objects, "Deployment", "lbc-deployment")
	require.NotNil(t, deploy)
	containers, _, err := unstructured.NestedSlice(deploy.Object, "spec", "template", "spec", "containers")
	require.NoError(t, err)
	require.Len(t, containers, 1)
	containerArgs, _, _ := unstructured.NestedStringSlice(containers[0].(map[string]any), "args")
	assert.Contains(t, containerArgs, "--cluster-name="+fakes.ClusterName)
	assert.Contains(t, containerArgs, "--aws-region=us-west-2")

	assert.Equal(t, map[string]string{
		OutputRoleARN:        d.RoleARN(),
		OutputPolicyARN:      d.PolicyARN(),
		OutputNamespace:      DefaultNamespace,
		OutputServiceAccount: "lbc-serviceaccount",
		OutputIngressClass:   "alb",
		OutputRegion:         "us-west-2",
	}, desired.Outputs)
}

func TestDesired_SystemNamespaceWithoutCRDs(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	args := validArgs()
	args.Namespace = "kube-system"
	args.Region = "us-east-1"
	d, err := NewDeployment(s, "lbc", args)
	require.NoError(t, err)

	desired, err := d.Desired(context.Background(), &stack.Env{})
	require.NoError(t, err)
	assert.NotContains(t, kinds(desired.Objects), "Namespace")
	assert.NotContains(t, kinds(desired.Objects), "CustomResourceDefinition")
	assert.Equal(t, "us-east-1", desired.Outputs[OutputRegion])
}

func TestDesired_CertificatesStableWithinProcess(t *testing.T) {
	t.Parallel()

	s := newStack(t)
	d, err := NewDeployment(s, "lbc", validArgs())
	require.NoError(t, err)

	first, err := d.Desired(context.Background(), &stack.Env{})
	require.NoError(t, err)
	second, err := d.Desired(context.Background(), &stack.Env{})
	require.NoError(t, err)
	assert.Equal(t,
		find(first.Objects, "Secret", "lbc-tls-secret").Object,
		find(second.Objects, "Secret", "lbc-tls-secret").Object)
}

func newEnv(t *testing.T) (*stack.Env, *fakes.FakeKube, *fakes.FakeIAM) {
	t.Helper()
	kube := fakes.NewFakeKube()
	api := fakes.NewFakeIAM()
	env := &stack.Env{
		Kube: kube,
		IAM: iam.NewClient(api, iam.WithRetryOptions(
			retry.WithInitialDelay(time.Millisecond),
			retry.WithMaxDelay(2*time.Millisecond),
			retry.WithMaxRetries(2),
		)),
		Backend: state.NewFileBackend(t.TempDir()),
	}
	return env, kube, api
}

func TestDeployment_UpThenPreviewIsUnchanged(t *testing.T) {
	t.Parallel()
	env, kube, api := newEnv(t)
	ctx := fakes.TestContext(t)

	s := newStack(t)
	args := validArgs()
	args.InstallCRDs = true
	d, err := NewDeployment(s, "lbc", args)
	require.NoError(t, err)

	summary, err := s.Up(ctx, env)
	require.NoError(t, err)
	assert.Equal(t, []stack.URN{d.URN()}, summary.Applied)

	assert.NotNil(t, api.Role(d.RoleName()))
	assert.True(t, api.Attached(d.RoleName(), d.PolicyARN()))
	assert.NotNil(t, kube.Object("Deployment", DefaultNamespace, "lbc-deployment"))
	assert.NotNil(t, kube.Object("CustomResourceDefinition", "", "targetgroupbindings.elbv2.k8s.aws"))
	assert.NotNil(t, kube.Object("IngressClass", "", "alb"))

	// a fresh process reuses the certificates stored in the cluster
	again := newStack(t)
	_, err = NewDeployment(again, "lbc", args)
	require.NoError(t, err)
	changes, err := again.Preview(ctx, env)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, stack.ActionSame, changes[0].Action, "%+v", changes[0].Items)

	_, err = again.Destroy(ctx, env)
	require.NoError(t, err)
	assert.True(t, api.Empty())
	assert.Nil(t, kube.Object("Deployment", DefaultNamespace, "lbc-deployment"))
}
