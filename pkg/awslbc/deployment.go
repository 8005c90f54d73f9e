package awslbc

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/iam"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/pki"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/render"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/util/labels"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/util/naming"
	"github.com/jaxxstorm/awsloadbalancercontroller/pkg/stack"
)

// Type is the resource type token of a Deployment.
const Type = "awslbc:index:Deployment"

// Output keys of a Deployment.
const (
	OutputRoleARN        = "roleArn"
	OutputPolicyARN      = "policyArn"
	OutputNamespace      = "namespace"
	OutputServiceAccount = "serviceAccount"
	OutputIngressClass   = "ingressClass"
	OutputRegion         = "region"
)

// Deployment is an AWS Load Balancer Controller instance.
type Deployment struct {
	stack.ResourceState

	name     string
	args     *DeploymentArgs
	provider *iam.OIDCProvider
	warnings []string

	mu    sync.Mutex
	certs *pki.Bundle
}

var _ stack.Resource = (*Deployment)(nil)

// NewDeployment validates args and registers a controller deployment on s.
func NewDeployment(s *stack.Stack, name string, args *DeploymentArgs, opts ...stack.ResourceOption) (*Deployment, error) {
	normalized, warnings, err := normalize(name, args)
	if err != nil {
		return nil, err
	}
	provider, err := iam.ParseOIDCProviderARN(normalized.OIDCProvider)
	if err != nil {
		return nil, err
	}

	d := &Deployment{
		name:     name,
		args:     normalized,
		provider: provider,
		warnings: warnings,
	}
	if err := s.RegisterResource(Type, name, d, opts...); err != nil {
		return nil, err
	}
	return d, nil
}

// Warnings lists input problems that were corrected during validation.
func (d *Deployment) Warnings() []string { return d.warnings }

// Namespace is the namespace the controller runs in.
func (d *Deployment) Namespace() string { return d.args.Namespace }

// ServiceAccountName is the controller's service account.
func (d *Deployment) ServiceAccountName() string { return naming.ServiceAccount(d.name) }

// RoleName is the IAM role the controller assumes.
func (d *Deployment) RoleName() string { return naming.IAMRole(d.name, d.args.ClusterName) }

// RoleARN is the ARN of the controller's IAM role.
func (d *Deployment) RoleARN() string { return d.provider.RoleARN(d.RoleName()) }

// PolicyName is the controller's IAM policy.
func (d *Deployment) PolicyName() string { return naming.IAMPolicy(d.name, d.args.ClusterName) }

// PolicyARN is the ARN of the controller's IAM policy.
func (d *Deployment) PolicyARN() string { return d.provider.PolicyARN(d.PolicyName()) }

// IngressClass is the IngressClass the controller serves.
func (d *Deployment) IngressClass() string {
	if d.args.IngressClass == "" {
		return render.DefaultIngressClass
	}
	return d.args.IngressClass
}

// Desired returns the IAM resources and Kubernetes objects of the controller.
func (d *Deployment) Desired(ctx context.Context, env *stack.Env) (*stack.Desired, error) {
	logger := log.FromContext(ctx).WithValues("deployment", d.name)
	for _, w := range d.warnings {
		logger.Info("corrected deployment input", "warning", w)
	}

	region, err := resolveRegion(d.args.Region, d.args.OIDCIssuer, env.Region)
	if err != nil {
		return nil, err
	}

	cloud, err := d.cloudResources()
	if err != nil {
		return nil, err
	}

	certs, err := d.webhookCerts(ctx, env)
	if err != nil {
		return nil, err
	}

	params := render.Params{
		Name:            d.name,
		Namespace:       d.args.Namespace,
		ClusterName:     d.args.ClusterName,
		Region:          region,
		IngressClass:    d.args.IngressClass,
		Image:           d.args.Image,
		Replicas:        d.args.Replicas,
		RoleARN:         d.RoleARN(),
		ExtraArgs:       d.args.ExtraArgs,
		CreateNamespace: d.args.createsNamespace(),
		InstallCRDs:     d.args.InstallCRDs,
		Certs:           certs,
	}

	var objects []*unstructured.Unstructured
	switch d.args.InstallMethod {
	case InstallMethodHelm:
		objects, err = d.chartObjects(ctx, params)
	default:
		objects, err = render.Objects(params)
	}
	if err != nil {
		return nil, err
	}

	return &stack.Desired{
		Cloud:   cloud,
		Objects: objects,
		Outputs: map[string]string{
			OutputRoleARN:        d.RoleARN(),
			OutputPolicyARN:      d.PolicyARN(),
			OutputNamespace:      d.args.Namespace,
			OutputServiceAccount: d.ServiceAccountName(),
			OutputIngressClass:   d.IngressClass(),
			OutputRegion:         region,
		},
	}, nil
}

func (d *Deployment) tags() map[string]string {
	tags := map[string]string{
		labels.AnnotationURN: string(d.URN()),
		"awslbc.io/cluster":  d.args.ClusterName,
	}
	maps.Copy(tags, d.args.Tags)
	return tags
}

// cloudResources are the role, policy and attachment backing the service
// account. ARNs derive from the provider's account and partition.
func (d *Deployment) cloudResources() ([]stack.CloudResource, error) {
	trust, err := iam.TrustPolicy(d.provider.ARN, d.args.OIDCIssuer, d.args.Namespace, d.ServiceAccountName())
	if err != nil {
		return nil, err
	}
	tags := d.tags()
	return []stack.CloudResource{
		{
			Kind:     stack.KindIAMRole,
			Name:     d.RoleName(),
			ARN:      d.RoleARN(),
			Document: trust,
			Tags:     tags,
		},
		{
			Kind:     stack.KindIAMPolicy,
			Name:     d.PolicyName(),
			ARN:      d.PolicyARN(),
			Document: iam.ControllerPolicy(),
			Tags:     tags,
		},
		{
			Kind:      stack.KindIAMPolicyAttachment,
			Name:      d.RoleName(),
			Role:      d.RoleName(),
			PolicyARN: d.PolicyARN(),
		},
	}, nil
}

func (d *Deployment) certRequest() pki.Request {
	return pki.Request{
		CommonName: naming.CACommonName(d.name),
		Service:    naming.WebhookService(d.name),
		Namespace:  d.args.Namespace,
	}
}

// webhookCerts returns the webhook certificate bundle. The bundle in the
// cluster's TLS secret is reused while it stays valid, so repeated applies
// do not roll the controller.
func (d *Deployment) webhookCerts(ctx context.Context, env *stack.Env) (*pki.Bundle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	req := d.certRequest()
	if d.certs != nil && pki.Verify(d.certs, req, time.Now().Add(pki.RenewBefore)) == nil {
		return d.certs, nil
	}

	var existing map[string][]byte
	if env.Online() {
		secret, err := env.Kube.GetSecret(ctx, d.args.Namespace, naming.TLSSecret(d.name))
		if err != nil {
			return nil, fmt.Errorf("failed to read webhook certificate secret: %w", err)
		}
		if secret != nil {
			existing = secret.Data
		}
	}

	certs, reused, err := pki.LoadOrGenerate(existing, req)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare webhook certificates: %w", err)
	}
	log.FromContext(ctx).V(1).Info("webhook certificates ready", "reused", reused)
	d.certs = certs
	return certs, nil
}
