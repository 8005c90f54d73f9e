package k8sclient

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// WaitForCRDsEstablished blocks until every named CRD is Established.
func (c *client) WaitForCRDsEstablished(ctx context.Context, names []string, timeout time.Duration) error {
	if len(names) == 0 {
		return nil
	}
	if c.apiextensions == nil {
		return fmt.Errorf("apiextensions client is not configured")
	}

	logger := log.FromContext(ctx)
	for _, name := range names {
		logger.V(1).Info("waiting for CRD to be established", "crd", name)

		err := wait.PollUntilContextTimeout(ctx, c.pollInterval, timeout, true, func(ctx context.Context) (bool, error) {
			crd, err := c.apiextensions.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, name, metav1.GetOptions{})
			if apierrors.IsNotFound(err) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			return crdEstablished(crd), nil
		})
		if err != nil {
			return fmt.Errorf("timed out waiting for CRD %s to be established: %w", name, err)
		}
	}
	return nil
}

func crdEstablished(crd *apiextensionsv1.CustomResourceDefinition) bool {
	for _, cond := range crd.Status.Conditions {
		if cond.Type == apiextensionsv1.Established && cond.Status == apiextensionsv1.ConditionTrue {
			return true
		}
	}
	return false
}

// WaitForDeploymentAvailable blocks until the Deployment's latest generation
// has been observed, all replicas are updated and it reports Available.
func (c *client) WaitForDeploymentAvailable(ctx context.Context, namespace, name string, timeout time.Duration) error {
	log.FromContext(ctx).Info("waiting for deployment to become available", "namespace", namespace, "name", name)

	err := wait.PollUntilContextTimeout(ctx, c.pollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		deploy, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return deploymentAvailable(deploy), nil
	})
	if err != nil {
		return fmt.Errorf("deployment %s/%s did not become available: %w", namespace, name, err)
	}
	return nil
}

func deploymentAvailable(d *appsv1.Deployment) bool {
	if d.Status.ObservedGeneration < d.Generation {
		return false
	}
	desired := int32(1)
	if d.Spec.Replicas != nil {
		desired = *d.Spec.Replicas
	}
	if d.Status.UpdatedReplicas < desired || d.Status.AvailableReplicas < desired {
		return false
	}
	for _, cond := range d.Status.Conditions {
		if cond.Type == appsv1.DeploymentAvailable {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}
