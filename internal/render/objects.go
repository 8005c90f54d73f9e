package render

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	admissionregistrationv1 "k8s.io/api/admissionregistration/v1"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/ptr"

	"github.com/jaxxstorm/awsloadbalancercontroller/internal/pki"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/util/labels"
	"github.com/jaxxstorm/awsloadbalancercontroller/internal/util/naming"
)

// Objects returns every object of a controller instance in declaration
// order. Install ordering is applied later by the engine.
func Objects(p Params) ([]*unstructured.Unstructured, error) {
	p = p.withDefaults()
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid render parameters: %w", err)
	}

	var out []*unstructured.Unstructured
	if p.InstallCRDs {
		crds, err := CRDs(objectLabels(p, "crd"))
		if err != nil {
			return nil, err
		}
		out = append(out, crds...)
	}

	var typed []runtime.Object
	if p.CreateNamespace {
		typed = append(typed, Namespace(p))
	}
	typed = append(typed,
		ServiceAccount(p),
		ClusterRole(p),
		ClusterRoleBinding(p),
		LeaderElectionRole(p),
		LeaderElectionRoleBinding(p),
		TLSSecret(p),
		WebhookService(p),
		Deployment(p),
		IngressClass(p),
		MutatingWebhookConfiguration(p),
		ValidatingWebhookConfiguration(p),
	)

	objs, err := ToUnstructuredList(typed...)
	if err != nil {
		return nil, err
	}
	return append(out, objs...), nil
}

func objectLabels(p Params, component string) map[string]string {
	return labels.NewLabelBuilder(p.Name).WithComponent(component).Build()
}

func meta(p Params, name, component string, namespaced bool) metav1.ObjectMeta {
	m := metav1.ObjectMeta{Name: name, Labels: objectLabels(p, component)}
	if namespaced {
		m.Namespace = p.Namespace
	}
	return m
}

// Namespace is the controller's namespace.
func Namespace(p Params) *corev1.Namespace {
	return &corev1.Namespace{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Namespace"},
		ObjectMeta: meta(p, p.Namespace, "namespace", false),
	}
}

// ServiceAccount is annotated with the IAM role the controller assumes.
func ServiceAccount(p Params) *corev1.ServiceAccount {
	m := meta(p, naming.ServiceAccount(p.Name), "controller", true)
	m.Annotations = map[string]string{RoleARNAnnotation: p.RoleARN}
	return &corev1.ServiceAccount{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "ServiceAccount"},
		ObjectMeta: m,
	}
}

// ClusterRole grants the controller access to the resources it reconciles.
func ClusterRole(p Params) *rbacv1.ClusterRole {
	watch := []string{"get", "list", "watch"}
	return &rbacv1.ClusterRole{
		TypeMeta:   metav1.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "ClusterRole"},
		ObjectMeta: meta(p, naming.ClusterRole(p.Name), "rbac", false),
		Rules: []rbacv1.PolicyRule{
			{
				APIGroups: []string{"elbv2.k8s.aws"},
				Resources: []string{"targetgroupbindings"},
				Verbs:     []string{"create", "delete", "get", "list", "patch", "update", "watch"},
			},
			{
				APIGroups: []string{"elbv2.k8s.aws"},
				Resources: []string{"ingressclassparams"},
				Verbs:     watch,
			},
			{
				APIGroups: []string{""},
				Resources: []string{"events"},
				Verbs:     []string{"create", "patch"},
			},
			{
				APIGroups: []string{""},
				Resources: []string{"pods"},
				Verbs:     watch,
			},
			{
				APIGroups: []string{"networking.k8s.io"},
				Resources: []string{"ingressclasses"},
				Verbs:     watch,
			},
			{
				APIGroups: []string{"", "extensions", "networking.k8s.io"},
				Resources: []string{"services", "ingresses"},
				Verbs:     []string{"get", "list", "patch", "update", "watch"},
			},
			{
				APIGroups: []string{""},
				Resources: []string{"nodes", "secrets", "namespaces", "endpoints"},
				Verbs:     watch,
			},
			{
				APIGroups: []string{"discovery.k8s.io"},
				Resources: []string{"endpointslices"},
				Verbs:     watch,
			},
			{
				APIGroups: []string{"", "elbv2.k8s.aws", "extensions", "networking.k8s.io"},
				Resources: []string{"targetgroupbindings/status", "pods/status", "services/status", "ingresses/status"},
				Verbs:     []string{"update", "patch"},
			},
		},
	}
}

// ClusterRoleBinding binds the ClusterRole to the service account.
func ClusterRoleBinding(p Params) *rbacv1.ClusterRoleBinding {
	return &rbacv1.ClusterRoleBinding{
		TypeMeta:   metav1.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "ClusterRoleBinding"},
		ObjectMeta: meta(p, naming.ClusterRoleBinding(p.Name), "rbac", false),
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "ClusterRole",
			Name:     naming.ClusterRole(p.Name),
		},
		Subjects: []rbacv1.Subject{{
			Kind:      rbacv1.ServiceAccountKind,
			Name:      naming.ServiceAccount(p.Name),
			Namespace: p.Namespace,
		}},
	}
}

// LeaderElectionRole lets controller replicas elect a leader.
func LeaderElectionRole(p Params) *rbacv1.Role {
	return &rbacv1.Role{
		TypeMeta:   metav1.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "Role"},
		ObjectMeta: meta(p, naming.LeaderElectionRole(p.Name), "rbac", true),
		Rules: []rbacv1.PolicyRule{
			{
				APIGroups: []string{""},
				Resources: []string{"configmaps"},
				Verbs:     []string{"create"},
			},
			{
				APIGroups:     []string{""},
				Resources:     []string{"configmaps"},
				ResourceNames: []string{leaderElectionID},
				Verbs:         []string{"get", "patch", "update"},
			},
			{
				APIGroups: []string{"coordination.k8s.io"},
				Resources: []string{"leases"},
				Verbs:     []string{"create"},
			},
			{
				APIGroups:     []string{"coordination.k8s.io"},
				Resources:     []string{"leases"},
				ResourceNames: []string{leaderElectionID},
				Verbs:         []string{"get", "patch", "update"},
			},
		},
	}
}

// LeaderElectionRoleBinding binds the leader election Role.
func LeaderElectionRoleBinding(p Params) *rbacv1.RoleBinding {
	return &rbacv1.RoleBinding{
		TypeMeta:   metav1.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "RoleBinding"},
		ObjectMeta: meta(p, naming.LeaderElectionRoleBinding(p.Name), "rbac", true),
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "Role",
			Name:     naming.LeaderElectionRole(p.Name),
		},
		Subjects: []rbacv1.Subject{{
			Kind:      rbacv1.ServiceAccountKind,
			Name:      naming.ServiceAccount(p.Name),
			Namespace: p.Namespace,
		}},
	}
}

// TLSSecret holds the webhook serving certificate and its CA.
func TLSSecret(p Params) *corev1.Secret {
	return &corev1.Secret{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: meta(p, naming.TLSSecret(p.Name), "webhook", true),
		Type:       corev1.SecretTypeTLS,
		Data:       p.Certs.SecretData(),
	}
}

// WebhookService exposes the webhook server on 443.
func WebhookService(p Params) *corev1.Service {
	return &corev1.Service{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: meta(p, naming.WebhookService(p.Name), "webhook", true),
		Spec: corev1.ServiceSpec{
			Selector: labels.Selector(p.Name),
			Ports: []corev1.ServicePort{{
				Name:       "webhook-server",
				Port:       443,
				TargetPort: intstr.FromInt32(webhookPort),
				Protocol:   corev1.ProtocolTCP,
			}},
		},
	}
}

// Args returns the controller command line.
func Args(p Params) []string {
	p = p.withDefaults()
	args := []string{
		"--cluster-name=" + p.ClusterName,
		"--aws-region=" + p.Region,
		"--ingress-class=" + p.IngressClass,
	}
	return append(args, p.ExtraArgs...)
}

func certChecksum(b *pki.Bundle) string {
	sum := sha256.Sum256(append(append([]byte{}, b.CACert...), b.TLSCert...))
	return hex.EncodeToString(sum[:])
}

// Deployment runs the controller.
func Deployment(p Params) *appsv1.Deployment {
	p = p.withDefaults()
	podLabels := labels.NewLabelBuilder(p.Name).WithComponent("controller").Build()

	return &appsv1.Deployment{
		TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: meta(p, naming.Deployment(p.Name), "controller", true),
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To(p.Replicas),
			Selector: &metav1.LabelSelector{MatchLabels: labels.Selector(p.Name)},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels:      podLabels,
					Annotations: map[string]string{TLSChecksumAnnotation: certChecksum(p.Certs)},
				},
				Spec: corev1.PodSpec{
					ServiceAccountName:            naming.ServiceAccount(p.Name),
					TerminationGracePeriodSeconds: ptr.To[int64](10),
					SecurityContext: &corev1.PodSecurityContext{
						FSGroup: ptr.To[int64](65534),
					},
					Volumes: []corev1.Volume{{
						Name: "cert",
						VolumeSource: corev1.VolumeSource{
							Secret: &corev1.SecretVolumeSource{
								SecretName:  naming.TLSSecret(p.Name),
								DefaultMode: ptr.To[int32](420),
							},
						},
					}},
					Containers: []corev1.Container{{
						Name:            containerName,
						Image:           p.Image,
						ImagePullPolicy: corev1.PullIfNotPresent,
						Command:         []string{"/controller"},
						Args:            Args(p),
						SecurityContext: &corev1.SecurityContext{
							AllowPrivilegeEscalation: ptr.To(false),
							ReadOnlyRootFilesystem:   ptr.To(true),
							RunAsNonRoot:             ptr.To(true),
						},
						VolumeMounts: []corev1.VolumeMount{{
							Name:      "cert",
							MountPath: webhookCertPath,
							ReadOnly:  true,
						}},
						Ports: []corev1.ContainerPort{
							{Name: "webhook-server", ContainerPort: webhookPort, Protocol: corev1.ProtocolTCP},
							{Name: "metrics-server", ContainerPort: metricsPort, Protocol: corev1.ProtocolTCP},
						},
						LivenessProbe: &corev1.Probe{
							ProbeHandler: corev1.ProbeHandler{
								HTTPGet: &corev1.HTTPGetAction{
									Path:   "/healthz",
									Port:   intstr.FromInt32(healthPort),
									Scheme: corev1.URISchemeHTTP,
								},
							},
							FailureThreshold:    2,
							InitialDelaySeconds: 30,
							TimeoutSeconds:      10,
						},
					}},
				},
			},
		},
	}
}

// IngressClass routes Ingresses of the configured class to the controller.
func IngressClass(p Params) *networkingv1.IngressClass {
	p = p.withDefaults()
	return &networkingv1.IngressClass{
		TypeMeta:   metav1.TypeMeta{APIVersion: "networking.k8s.io/v1", Kind: "IngressClass"},
		ObjectMeta: meta(p, p.IngressClass, "controller", false),
		Spec:       networkingv1.IngressClassSpec{Controller: IngressController},
	}
}

func webhookClient(p Params, path string) admissionregistrationv1.WebhookClientConfig {
	return admissionregistrationv1.WebhookClientConfig{
		CABundle: p.Certs.CACert,
		Service: &admissionregistrationv1.ServiceReference{
			Name:      naming.WebhookService(p.Name),
			Namespace: p.Namespace,
			Path:      ptr.To(path),
		},
	}
}

var (
	failurePolicy           = admissionregistrationv1.Fail
	sideEffectsNone         = admissionregistrationv1.SideEffectClassNone
	admissionReviewVersions = []string{"v1", "v1beta1"}
)

func targetGroupBindingRule() []admissionregistrationv1.RuleWithOperations {
	return []admissionregistrationv1.RuleWithOperations{{
		Operations: []admissionregistrationv1.OperationType{admissionregistrationv1.Create, admissionregistrationv1.Update},
		Rule: admissionregistrationv1.Rule{
			APIGroups:   []string{"elbv2.k8s.aws"},
			APIVersions: []string{"v1beta1"},
			Resources:   []string{"targetgroupbindings"},
		},
	}}
}

// MutatingWebhookConfiguration defaults TargetGroupBindings and injects pod
// readiness gates in namespaces that opt in.
func MutatingWebhookConfiguration(p Params) *admissionregistrationv1.MutatingWebhookConfiguration {
	return &admissionregistrationv1.MutatingWebhookConfiguration{
		TypeMeta:   metav1.TypeMeta{APIVersion: "admissionregistration.k8s.io/v1", Kind: "MutatingWebhookConfiguration"},
		ObjectMeta: meta(p, naming.MutatingWebhook(p.Name), "webhook", false),
		Webhooks: []admissionregistrationv1.MutatingWebhook{
			{
				Name:                    "mtargetgroupbinding.elbv2.k8s.aws",
				ClientConfig:            webhookClient(p, "/mutate-elbv2-k8s-aws-v1beta1-targetgroupbinding"),
				FailurePolicy:           ptr.To(failurePolicy),
				SideEffects:             ptr.To(sideEffectsNone),
				AdmissionReviewVersions: admissionReviewVersions,
				Rules:                   targetGroupBindingRule(),
			},
			{
				Name:                    "mpod.elbv2.k8s.aws",
				ClientConfig:            webhookClient(p, "/mutate-v1-pod"),
				FailurePolicy:           ptr.To(failurePolicy),
				SideEffects:             ptr.To(sideEffectsNone),
				AdmissionReviewVersions: admissionReviewVersions,
				NamespaceSelector: &metav1.LabelSelector{
					MatchExpressions: []metav1.LabelSelectorRequirement{{
						Key:      ReadinessGateInjectLabel,
						Operator: metav1.LabelSelectorOpIn,
						Values:   []string{"enabled"},
					}},
				},
				Rules: []admissionregistrationv1.RuleWithOperations{{
					Operations: []admissionregistrationv1.OperationType{admissionregistrationv1.Create},
					Rule: admissionregistrationv1.Rule{
						APIGroups:   []string{""},
						APIVersions: []string{"v1"},
						Resources:   []string{"pods"},
					},
				}},
			},
		},
	}
}

// ValidatingWebhookConfiguration validates TargetGroupBindings.
func ValidatingWebhookConfiguration(p Params) *admissionregistrationv1.ValidatingWebhookConfiguration {
	return &admissionregistrationv1.ValidatingWebhookConfiguration{
		TypeMeta:   metav1.TypeMeta{APIVersion: "admissionregistration.k8s.io/v1", Kind: "ValidatingWebhookConfiguration"},
		ObjectMeta: meta(p, naming.ValidatingWebhook(p.Name), "webhook", false),
		Webhooks: []admissionregistrationv1.ValidatingWebhook{{
			Name:                    "vtargetgroupbinding.elbv2.k8s.aws",
			ClientConfig:            webhookClient(p, "/validate-elbv2-k8s-aws-v1beta1-targetgroupbinding"),
			FailurePolicy:           ptr.To(failurePolicy),
			SideEffects:             ptr.To(sideEffectsNone),
			AdmissionReviewVersions: admissionReviewVersions,
			Rules:                   targetGroupBindingRule(),
		}},
	}
}
