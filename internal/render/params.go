package render

import (
	"errors"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/pki"
)

const (
	// DefaultImage is the controller image used when none is configured.
	DefaultImage = "public.ecr.aws/eks/aws-load-balancer-controller:v2.7.2"

	// DefaultIngressClass is the IngressClass the controller watches.
	DefaultIngressClass = "alb"

	// IngressController is the controller value of the ALB IngressClass.
	IngressController = "ingress.k8s.aws/alb"

	// RoleARNAnnotation binds a service account to an IAM role.
	RoleARNAnnotation = "eks.amazonaws.com/role-arn"

	// ReadinessGateInjectLabel opts a namespace into pod readiness gate injection.
	ReadinessGateInjectLabel = "elbv2.k8s.aws/pod-readiness-gate-inject"

	// TLSChecksumAnnotation rolls controller pods when the webhook certificate changes.
	TLSChecksumAnnotation = "awslbc.io/tls-checksum"

	webhookPort      = 9443
	metricsPort      = 8080
	healthPort       = 61779
	webhookCertPath  = "/tmp/k8s-webhook-server/serving-certs"
	containerName    = "aws-load-balancer-controller"
	leaderElectionID = "aws-load-balancer-controller-leader"
)

// Params are the inputs for rendering one controller instance.
type Params struct {
	Name         string
	Namespace    string
	ClusterName  string
	Region       string
	IngressClass string
	Image        string
	Replicas     int32
	RoleARN      string
	ExtraArgs    []string

	// CreateNamespace declares the Namespace object.
	CreateNamespace bool
	// InstallCRDs includes the embedded CRDs.
	InstallCRDs bool

	// Certs secure the admission webhooks.
	Certs *pki.Bundle
}

// withDefaults returns a copy of p with empty optional fields defaulted.
func (p Params) withDefaults() Params {
	if p.IngressClass == "" {
		p.IngressClass = DefaultIngressClass
	}
	if p.Image == "" {
		p.Image = DefaultImage
	}
	if p.Replicas == 0 {
		p.Replicas = 1
	}
	return p
}

func (p Params) validate() error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if p.Namespace == "" {
		errs = append(errs, errors.New("namespace is required"))
	}
	if p.ClusterName == "" {
		errs = append(errs, errors.New("cluster name is required"))
	}
	if p.Region == "" {
		errs = append(errs, errors.New("region is required"))
	}
	if p.RoleARN == "" {
		errs = append(errs, errors.New("role ARN is required"))
	}
	if p.Certs == nil {
		errs = append(errs, errors.New("webhook certificates are required"))
	}
	return errors.Join(errs...)
}
