package iam

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/metrics"
	fakes "github.com/jaxxstorm/awsloadbalancercontroller/internal/testing"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/util/retry"
)

const testPolicyARN = "arn:aws:iam::" + fakes.AccountID + ":policy/lb-policy"

func newTestClient(api API) *Client {
	return NewClient(api, WithRetryOptions(
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(2*time.Millisecond),
		retry.WithMaxRetries(3),
	))
}

func trust(t *testing.T, sa string) string {
	t.Helper()
	doc, err := TrustPolicy(fakes.OIDCProvider, fakes.OIDCIssuer, "kube-system", sa)
	require.NoError(t, err)
	return doc
}

func TestEnsureRole_CreateThenNoop(t *testing.T) {
	t.Parallel()
	api := fakes.NewFakeIAM()
	c := newTestClient(api)
	ctx := context.Background()

	roleARN, err := c.EnsureRole(ctx, "lb-role", trust(t, "lb-serviceaccount"), map[string]string{"awslbc.io/stack": "dev"})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123456789012:role/lb-role", roleARN)

	_, err = c.EnsureRole(ctx, "lb-role", trust(t, "lb-serviceaccount"), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"GetRole", "CreateRole", "GetRole"}, api.Calls())
	assert.Equal(t, "awslbc.io/stack", aws.ToString(api.Role("lb-role").Tags[0].Key))
}

func TestEnsureRole_UpdatesTrustPolicy(t *testing.T) {
	t.Parallel()
	api := fakes.NewFakeIAM()
	c := newTestClient(api)
	ctx := context.Background()

	_, err := c.EnsureRole(ctx, "lb-role", trust(t, "old-serviceaccount"), nil)
	require.NoError(t, err)
	_, err = c.EnsureRole(ctx, "lb-role", trust(t, "new-serviceaccount"), nil)
	require.NoError(t, err)

	assert.Contains(t, api.Calls(), "UpdateAssumeRolePolicy")
	assert.True(t, DocumentsEqual(aws.ToString(api.Role("lb-role").AssumeRolePolicyDocument), trust(t, "new-serviceaccount")))
}

func TestEnsureRole_GetError(t *testing.T) {
	t.Parallel()
	api := fakes.NewFakeIAM()
	api.FailNext("GetRole", &smithy.GenericAPIError{Code: "AccessDenied"})

	_, err := newTestClient(api).EnsureRole(context.Background(), "lb-role", trust(t, "sa"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get role lb-role")
}

func TestEnsurePolicy_CreateUpdateNoop(t *testing.T) {
	t.Parallel()
	api := fakes.NewFakeIAM()
	c := newTestClient(api)
	ctx := context.Background()

	policyARN, err := c.EnsurePolicy(ctx, "lb-policy", testPolicyARN, ControllerPolicy(), nil)
	require.NoError(t, err)
	assert.Equal(t, testPolicyARN, policyARN)
	assert.Equal(t, 1, api.PolicyVersionCount(testPolicyARN))

	_, err = c.EnsurePolicy(ctx, "lb-policy", testPolicyARN, ControllerPolicy(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, api.PolicyVersionCount(testPolicyARN))

	updated := `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":"ec2:DescribeVpcs","Resource":"*"}]}`
	_, err = c.EnsurePolicy(ctx, "lb-policy", testPolicyARN, updated, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, api.PolicyVersionCount(testPolicyARN))
	assert.True(t, DocumentsEqual(api.PolicyDocument(testPolicyARN), updated))
}

func TestEnsurePolicy_PrunesAtVersionLimit(t *testing.T) {
	t.Parallel()
	api := fakes.NewFakeIAM()
	c := newTestClient(api)
	ctx := context.Background()

	for i := range 7 {
		doc := `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":"ec2:DescribeVpcs","Resource":"arn:aws:ec2:*:*:vpc/` + string(rune('a'+i)) + `"}]}`
		_, err := c.EnsurePolicy(ctx, "lb-policy", testPolicyARN, doc, nil)
		require.NoError(t, err)
		assert.LessOrEqual(t, api.PolicyVersionCount(testPolicyARN), 5)
	}
	assert.Contains(t, api.Calls(), "DeletePolicyVersion")
}

func TestEnsureAttachment(t *testing.T) {
	t.Parallel()
	api := fakes.NewFakeIAM()
	c := newTestClient(api)
	ctx := context.Background()

	_, err := c.EnsureRole(ctx, "lb-role", trust(t, "sa"), nil)
	require.NoError(t, err)
	_, err = c.EnsurePolicy(ctx, "lb-policy", testPolicyARN, ControllerPolicy(), nil)
	require.NoError(t, err)

	require.NoError(t, c.EnsureAttachment(ctx, "lb-role", testPolicyARN))
	require.NoError(t, c.EnsureAttachment(ctx, "lb-role", testPolicyARN))
	assert.True(t, api.Attached("lb-role", testPolicyARN))

	attaches := 0
	for _, call := range api.Calls() {
		if call == "AttachRolePolicy" {
			attaches++
		}
	}
	assert.Equal(t, 1, attaches)
}

func TestEnsureAttachment_RetriesEventualConsistency(t *testing.T) {
	t.Parallel()
	api := fakes.NewFakeIAM()
	c := newTestClient(api)
	ctx := context.Background()

	_, err := c.EnsureRole(ctx, "lb-role", trust(t, "sa"), nil)
	require.NoError(t, err)
	_, err = c.EnsurePolicy(ctx, "lb-policy", testPolicyARN, ControllerPolicy(), nil)
	require.NoError(t, err)

	api.FailNext("AttachRolePolicy", &types.NoSuchEntityException{Message: aws.String("not yet visible")})
	require.NoError(t, c.EnsureAttachment(ctx, "lb-role", testPolicyARN))
	assert.True(t, api.Attached("lb-role", testPolicyARN))
}

func TestEnsureAttachment_NonRetryable(t *testing.T) {
	t.Parallel()
	api := fakes.NewFakeIAM()
	c := newTestClient(api)
	ctx := context.Background()

	_, err := c.EnsureRole(ctx, "lb-role", trust(t, "sa"), nil)
	require.NoError(t, err)
	api.FailNext("AttachRolePolicy", &smithy.GenericAPIError{Code: "AccessDenied"})

	err = c.EnsureAttachment(ctx, "lb-role", testPolicyARN)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to attach policy")
}

func TestDeleteLifecycle(t *testing.T) {
	t.Parallel()
	api := fakes.NewFakeIAM()
	c := newTestClient(api)
	ctx := context.Background()

	_, err := c.EnsureRole(ctx, "lb-role", trust(t, "sa"), nil)
	require.NoError(t, err)
	_, err = c.EnsurePolicy(ctx, "lb-policy", testPolicyARN, ControllerPolicy(), nil)
	require.NoError(t, err)
	_, err = c.EnsurePolicy(ctx, "lb-policy", testPolicyARN, `{"Version":"2012-10-17","Statement":[]}`, nil)
	require.NoError(t, err)
	require.NoError(t, c.EnsureAttachment(ctx, "lb-role", testPolicyARN))

	require.NoError(t, c.DetachPolicy(ctx, "lb-role", testPolicyARN))
	require.NoError(t, c.DeletePolicy(ctx, testPolicyARN))
	require.NoError(t, c.DeleteRole(ctx, "lb-role"))
	assert.True(t, api.Empty())

	// second pass is a no-op
	require.NoError(t, c.DetachPolicy(ctx, "lb-role", testPolicyARN))
	require.NoError(t, c.DeletePolicy(ctx, testPolicyARN))
	require.NoError(t, c.DeleteRole(ctx, "lb-role"))
}

func TestDeleteRole_RetriesConflict(t *testing.T) {
	t.Parallel()
	api := fakes.NewFakeIAM()
	c := newTestClient(api)
	ctx := context.Background()

	_, err := c.EnsureRole(ctx, "lb-role", trust(t, "sa"), nil)
	require.NoError(t, err)
	api.FailNext("DeleteRole", &types.DeleteConflictException{Message: aws.String("detach pending")})

	require.NoError(t, c.DeleteRole(ctx, "lb-role"))
	assert.Nil(t, api.Role("lb-role"))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()
	assert.False(t, IsNotFound(nil))
	assert.True(t, IsNotFound(&types.NoSuchEntityException{}))
	assert.True(t, IsNotFound(&smithy.GenericAPIError{Code: "NoSuchEntity"}))
	assert.False(t, IsNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, IsNotFound(errors.New("NoSuchEntity")))
}

func TestTags(t *testing.T) {
	t.Parallel()
	tags := Tags(map[string]string{"b": "2", "a": "1"})
	require.Len(t, tags, 2)
	assert.Equal(t, "a", aws.ToString(tags[0].Key))
	assert.Equal(t, "2", aws.ToString(tags[1].Value))
	assert.Empty(t, Tags(nil))
}

func TestMetricsRecorded(t *testing.T) {
	t.Parallel()
	recorder := metrics.NewRecorder()
	c := NewClient(fakes.NewFakeIAM(), WithMetrics(recorder))

	_, err := c.EnsureRole(context.Background(), "lb-role", trust(t, "sa"), nil)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(recorder.Registry(), "awslbc_aws_api_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
