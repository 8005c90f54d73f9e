package iam

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/metrics"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/util/retry"
)

// maxPolicyVersions is the IAM limit on stored versions of a managed policy.
const maxPolicyVersions = 5

// API is the subset of the IAM client used by Client.
type API interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	UpdateAssumeRolePolicy(ctx context.Context, params *iam.UpdateAssumeRolePolicyInput, optFns ...func(*iam.Options)) (*iam.UpdateAssumeRolePolicyOutput, error)
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)

	GetPolicy(ctx context.Context, params *iam.GetPolicyInput, optFns ...func(*iam.Options)) (*iam.GetPolicyOutput, error)
	GetPolicyVersion(ctx context.Context, params *iam.GetPolicyVersionInput, optFns ...func(*iam.Options)) (*iam.GetPolicyVersionOutput, error)
	CreatePolicy(ctx context.Context, params *iam.CreatePolicyInput, optFns ...func(*iam.Options)) (*iam.CreatePolicyOutput, error)
	ListPolicyVersions(ctx context.Context, params *iam.ListPolicyVersionsInput, optFns ...func(*iam.Options)) (*iam.ListPolicyVersionsOutput, error)
	CreatePolicyVersion(ctx context.Context, params *iam.CreatePolicyVersionInput, optFns ...func(*iam.Options)) (*iam.CreatePolicyVersionOutput, error)
	DeletePolicyVersion(ctx context.Context, params *iam.DeletePolicyVersionInput, optFns ...func(*iam.Options)) (*iam.DeletePolicyVersionOutput, error)
	DeletePolicy(ctx context.Context, params *iam.DeletePolicyInput, optFns ...func(*iam.Options)) (*iam.DeletePolicyOutput, error)

	AttachRolePolicy(ctx context.Context, params *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	DetachRolePolicy(ctx context.Context, params *iam.DetachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DetachRolePolicyOutput, error)
	ListAttachedRolePolicies(ctx context.Context, params *iam.ListAttachedRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListAttachedRolePoliciesOutput, error)
}

// Client ensures IAM roles, policies and attachments exist as declared.
type Client struct {
	api          API
	metrics      *metrics.Recorder
	retryOptions []retry.Option
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records API call metrics.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRetryOptions overrides retry behavior for eventually consistent calls.
func WithRetryOptions(opts ...retry.Option) Option {
	return func(c *Client) { c.retryOptions = opts }
}

// NewClient wraps an IAM API implementation.
func NewClient(api API, opts ...Option) *Client {
	c := &Client{api: api}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromDefaultConfig creates a Client using the default AWS credential chain.
func NewFromDefaultConfig(ctx context.Context, region string, opts ...Option) (*Client, error) {
	loadOpts := []func(*config.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewClient(iam.NewFromConfig(cfg), opts...), nil
}

// Tags converts a map to sorted IAM tags.
func Tags(m map[string]string) []types.Tag {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, types.Tag{Key: aws.String(k), Value: aws.String(m[k])})
	}
	return tags
}

func (c *Client) observe(operation string, start time.Time, err error) {
	c.metrics.ObserveCloudCall("iam", operation, err, time.Since(start))
}

// EnsureRole creates the role or updates its trust policy when it differs.
// It returns the role ARN.
func (c *Client) EnsureRole(ctx context.Context, name, trustPolicy string, tags map[string]string) (string, error) {
	logger := log.FromContext(ctx).WithValues("role", name)

	start := time.Now()
	out, err := c.api.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	c.observe("GetRole", start, ignoreNotFound(err))
	switch {
	case err == nil:
		current := aws.ToString(out.Role.AssumeRolePolicyDocument)
		if DocumentsEqual(current, trustPolicy) {
			logger.V(1).Info("IAM role up to date")
			return aws.ToString(out.Role.Arn), nil
		}

		logger.Info("updating IAM role trust policy")
		start = time.Now()
		_, err = c.api.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
			RoleName:       aws.String(name),
			PolicyDocument: aws.String(trustPolicy),
		})
		c.observe("UpdateAssumeRolePolicy", start, err)
		if err != nil {
			return "", fmt.Errorf("failed to update trust policy of role %s: %w", name, err)
		}
		return aws.ToString(out.Role.Arn), nil

	case !IsNotFound(err):
		return "", fmt.Errorf("failed to get role %s: %w", name, err)
	}

	logger.Info("creating IAM role")
	start = time.Now()
	created, err := c.api.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
		Description:              aws.String("AWS Load Balancer Controller service account role"),
		Tags:                     Tags(tags),
	})
	c.observe("CreateRole", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to create role %s: %w", name, err)
	}
	return aws.ToString(created.Role.Arn), nil
}

// EnsurePolicy creates the managed policy at policyARN or, when its default
// version differs from document, publishes a new default version. The oldest
// non-default version is removed first when the version limit is reached.
func (c *Client) EnsurePolicy(ctx context.Context, name, policyARN, document string, tags map[string]string) (string, error) {
	logger := log.FromContext(ctx).WithValues("policy", name)

	start := time.Now()
	out, err := c.api.GetPolicy(ctx, &iam.GetPolicyInput{PolicyArn: aws.String(policyARN)})
	c.observe("GetPolicy", start, ignoreNotFound(err))
	if err != nil {
		if !IsNotFound(err) {
			return "", fmt.Errorf("failed to get policy %s: %w", policyARN, err)
		}

		logger.Info("creating IAM policy")
		start = time.Now()
		created, err := c.api.CreatePolicy(ctx, &iam.CreatePolicyInput{
			PolicyName:     aws.String(name),
			PolicyDocument: aws.String(document),
			Description:    aws.String("Permissions for the AWS Load Balancer Controller"),
			Tags:           Tags(tags),
		})
		c.observe("CreatePolicy", start, err)
		if err != nil {
			return "", fmt.Errorf("failed to create policy %s: %w", name, err)
		}
		return aws.ToString(created.Policy.Arn), nil
	}

	start = time.Now()
	version, err := c.api.GetPolicyVersion(ctx, &iam.GetPolicyVersionInput{
		PolicyArn: aws.String(policyARN),
		VersionId: out.Policy.DefaultVersionId,
	})
	c.observe("GetPolicyVersion", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to get default version of policy %s: %w", policyARN, err)
	}
	if DocumentsEqual(aws.ToString(version.PolicyVersion.Document), document) {
		logger.V(1).Info("IAM policy up to date")
		return policyARN, nil
	}

	if err := c.pruneOldestVersion(ctx, policyARN); err != nil {
		return "", err
	}

	logger.Info("publishing new IAM policy version")
	start = time.Now()
	_, err = c.api.CreatePolicyVersion(ctx, &iam.CreatePolicyVersionInput{
		PolicyArn:      aws.String(policyARN),
		PolicyDocument: aws.String(document),
		SetAsDefault:   true,
	})
	c.observe("CreatePolicyVersion", start, err)
	if err != nil {
		return "", fmt.Errorf("failed to create version of policy %s: %w", policyARN, err)
	}
	return policyARN, nil
}

// pruneOldestVersion deletes the oldest non-default version when the policy
// is at the version limit.
func (c *Client) pruneOldestVersion(ctx context.Context, policyARN string) error {
	versions, err := c.nonDefaultVersions(ctx, policyARN)
	if err != nil {
		return err
	}
	if len(versions)+1 < maxPolicyVersions {
		return nil
	}
	return c.deleteVersion(ctx, policyARN, versions[0])
}

// nonDefaultVersions returns non-default versions, oldest first.
func (c *Client) nonDefaultVersions(ctx context.Context, policyARN string) ([]types.PolicyVersion, error) {
	var versions []types.PolicyVersion
	paginator := iam.NewListPolicyVersionsPaginator(c.api, &iam.ListPolicyVersionsInput{PolicyArn: aws.String(policyARN)})
	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		c.observe("ListPolicyVersions", start, err)
		if err != nil {
			return nil, fmt.Errorf("failed to list versions of policy %s: %w", policyARN, err)
		}
		for _, v := range page.Versions {
			if !v.IsDefaultVersion {
				versions = append(versions, v)
			}
		}
	}
	sort.SliceStable(versions, func(i, j int) bool {
		return aws.ToTime(versions[i].CreateDate).Before(aws.ToTime(versions[j].CreateDate))
	})
	return versions, nil
}

func (c *Client) deleteVersion(ctx context.Context, policyARN string, v types.PolicyVersion) error {
	start := time.Now()
	_, err := c.api.DeletePolicyVersion(ctx, &iam.DeletePolicyVersionInput{
		PolicyArn: aws.String(policyARN),
		VersionId: v.VersionId,
	})
	c.observe("DeletePolicyVersion", start, ignoreNotFound(err))
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete version %s of policy %s: %w", aws.ToString(v.VersionId), policyARN, err)
	}
	return nil
}

// EnsureAttachment attaches the policy to the role if it is not attached.
// Newly created roles and policies may not be visible yet, so NoSuchEntity
// errors are retried.
func (c *Client) EnsureAttachment(ctx context.Context, role, policyARN string) error {
	attached, err := c.isAttached(ctx, role, policyARN)
	if err != nil {
		return err
	}
	if attached {
		log.FromContext(ctx).V(1).Info("IAM policy already attached", "role", role, "policy", policyARN)
		return nil
	}

	log.FromContext(ctx).Info("attaching IAM policy", "role", role, "policy", policyARN)
	opts := append([]retry.Option{
		retry.WithName("attach policy to role " + role),
		retry.WithRetryable(IsNotFound),
	}, c.retryOptions...)

	return retry.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		_, err := c.api.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(role),
			PolicyArn: aws.String(policyARN),
		})
		c.observe("AttachRolePolicy", start, err)
		if err != nil {
			return fmt.Errorf("failed to attach policy %s to role %s: %w", policyARN, role, err)
		}
		return nil
	}, opts...)
}

func (c *Client) isAttached(ctx context.Context, role, policyARN string) (bool, error) {
	paginator := iam.NewListAttachedRolePoliciesPaginator(c.api, &iam.ListAttachedRolePoliciesInput{RoleName: aws.String(role)})
	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		c.observe("ListAttachedRolePolicies", start, ignoreNotFound(err))
		if err != nil {
			if IsNotFound(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to list policies attached to role %s: %w", role, err)
		}
		for _, p := range page.AttachedPolicies {
			if aws.ToString(p.PolicyArn) == policyARN {
				return true, nil
			}
		}
	}
	return false, nil
}

// DetachPolicy detaches a policy from a role. Missing entities are ignored.
func (c *Client) DetachPolicy(ctx context.Context, role, policyARN string) error {
	start := time.Now()
	_, err := c.api.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
		RoleName:  aws.String(role),
		PolicyArn: aws.String(policyARN),
	})
	c.observe("DetachRolePolicy", start, ignoreNotFound(err))
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to detach policy %s from role %s: %w", policyARN, role, err)
	}
	return nil
}

// DeletePolicy deletes all non-default versions and then the policy itself.
// A missing policy is ignored.
func (c *Client) DeletePolicy(ctx context.Context, policyARN string) error {
	versions, err := c.nonDefaultVersions(ctx, policyARN)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}
	for _, v := range versions {
		if err := c.deleteVersion(ctx, policyARN, v); err != nil {
			return err
		}
	}

	start := time.Now()
	_, err = c.api.DeletePolicy(ctx, &iam.DeletePolicyInput{PolicyArn: aws.String(policyARN)})
	c.observe("DeletePolicy", start, ignoreNotFound(err))
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete policy %s: %w", policyARN, err)
	}
	return nil
}

// DeleteRole deletes a role. A missing role is ignored; a role that still has
// attachments is retried briefly while detaches propagate.
func (c *Client) DeleteRole(ctx context.Context, name string) error {
	opts := append([]retry.Option{
		retry.WithName("delete role " + name),
		retry.WithRetryable(isDeleteConflict),
	}, c.retryOptions...)

	return retry.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		_, err := c.api.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(name)})
		c.observe("DeleteRole", start, ignoreNotFound(err))
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to delete role %s: %w", name, err)
		}
		return nil
	}, opts...)
}

// IsNotFound reports whether err is an IAM NoSuchEntity error.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nse *types.NoSuchEntityException
	if errors.As(err, &nse) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchEntity"
	}
	return false
}

func isDeleteConflict(err error) bool {
	var dce *types.DeleteConflictException
	if errors.As(err, &dce) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "DeleteConflict"
}

func ignoreNotFound(err error) error {
	if IsNotFound(err) {
		return nil
	}
	return err
}
