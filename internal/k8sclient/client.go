package k8sclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
)

// DefaultFieldManager identifies awslbc as the Server-Side Apply actor.
const DefaultFieldManager = "awslbc"

// Client provides Kubernetes operations for the declaration engine.
type Client interface {
	// ApplyObject applies a single object using Server-Side Apply.
	ApplyObject(ctx context.Context, obj *unstructured.Unstructured, fieldManager string) error

	// ApplyObjects applies objects in install order (namespaces and CRDs
	// first, webhooks last), stopping at the first failure.
	ApplyObjects(ctx context.Context, objs []*unstructured.Unstructured, fieldManager string) error

	// DeleteObject deletes an object, returning nil if it or its kind no
	// longer exists.
	DeleteObject(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string) error

	// GetSecret returns a secret, or nil if it does not exist.
	GetSecret(ctx context.Context, namespace, name string) (*corev1.Secret, error)

	// IsNamespaced reports whether objects of the given kind are namespaced.
	IsNamespaced(ctx context.Context, gvk schema.GroupVersionKind) (bool, error)

	// RefreshDiscovery refreshes the API discovery to pick up newly installed CRDs.
	RefreshDiscovery(ctx context.Context) error

	// WaitForCRDsEstablished blocks until every named CRD reports Established.
	WaitForCRDsEstablished(ctx context.Context, names []string, timeout time.Duration) error

	// WaitForDeploymentAvailable blocks until the Deployment has rolled out
	// and reports Available.
	WaitForDeploymentAvailable(ctx context.Context, namespace, name string, timeout time.Duration) error
}

// client implements the Client interface using k8s.io/client-go.
type client struct {
	clientset     kubernetes.Interface
	dynamicClient dynamic.Interface
	apiextensions apiextensionsclientset.Interface
	discovery     discovery.DiscoveryInterface // nil for test clients

	mu     sync.RWMutex
	mapper meta.RESTMapper

	pollInterval time.Duration
}

// NewFromKubeconfig creates a Client from kubeconfig bytes.
func NewFromKubeconfig(kubeconfig []byte) (Client, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create REST config from kubeconfig: %w", err)
	}
	return NewFromRESTConfig(restConfig)
}

// NewFromKubeconfigPath creates a Client using the standard loading rules:
// an explicit path wins, then $KUBECONFIG, then ~/.kube/config.
func NewFromKubeconfigPath(path, kubeContext string) (Client, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if path != "" {
		rules.ExplicitPath = path
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create REST config from kubeconfig: %w", err)
	}
	return NewFromRESTConfig(restConfig)
}

// NewFromRESTConfig creates a Client from a REST config.
func NewFromRESTConfig(restConfig *rest.Config) (Client, error) {
	cfg := rest.CopyConfig(restConfig)
	if cfg.QPS == 0 {
		cfg.QPS = 50
		cfg.Burst = 100
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	apiext, err := apiextensionsclientset.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create apiextensions client: %w", err)
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}

	c := &client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		apiextensions: apiext,
		discovery:     discoveryClient,
		pollInterval:  2 * time.Second,
	}
	if err := c.RefreshDiscovery(context.Background()); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFromClients creates a Client from pre-configured clients.
// This is useful for testing with fake clients; discovery is never refreshed.
func NewFromClients(
	clientset kubernetes.Interface,
	dynamicClient dynamic.Interface,
	apiext apiextensionsclientset.Interface,
	mapper meta.RESTMapper,
) Client {
	return &client{
		clientset:     clientset,
		dynamicClient: dynamicClient,
		apiextensions: apiext,
		mapper:        mapper,
		pollInterval:  10 * time.Millisecond,
	}
}

// RefreshDiscovery rebuilds the REST mapper from the API server's discovery
// information so newly installed CRDs can be mapped.
func (c *client) RefreshDiscovery(_ context.Context) error {
	if c.discovery == nil {
		return nil
	}

	groupResources, err := restmapper.GetAPIGroupResources(c.discovery)
	if err != nil && !discovery.IsGroupDiscoveryFailedError(err) {
		return fmt.Errorf("failed to get API group resources: %w", err)
	}

	c.mu.Lock()
	c.mapper = restmapper.NewDiscoveryRESTMapper(groupResources)
	c.mu.Unlock()
	return nil
}

// restMapping maps a GVK to its resource, refreshing discovery once when the
// kind is unknown.
func (c *client) restMapping(ctx context.Context, gvk schema.GroupVersionKind) (*meta.RESTMapping, error) {
	c.mu.RLock()
	mapper := c.mapper
	c.mu.RUnlock()

	mapping, err := mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err == nil || !meta.IsNoMatchError(err) || c.discovery == nil {
		return mapping, err
	}

	if err := c.RefreshDiscovery(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	mapper = c.mapper
	c.mu.RUnlock()
	return mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
}

// IsNamespaced reports whether objects of the given kind are namespaced.
func (c *client) IsNamespaced(ctx context.Context, gvk schema.GroupVersionKind) (bool, error) {
	mapping, err := c.restMapping(ctx, gvk)
	if err != nil {
		return false, fmt.Errorf("failed to get REST mapping for %v: %w", gvk, err)
	}
	return mapping.Scope.Name() == meta.RESTScopeNameNamespace, nil
}

// resourceFor returns the dynamic resource interface for an object.
func (c *client) resourceFor(ctx context.Context, gvk schema.GroupVersionKind, namespace string) (dynamic.ResourceInterface, *meta.RESTMapping, error) {
	mapping, err := c.restMapping(ctx, gvk)
	if err != nil {
		return nil, nil, err
	}

	resource := c.dynamicClient.Resource(mapping.Resource)
	if mapping.Scope.Name() != meta.RESTScopeNameNamespace {
		return resource, mapping, nil
	}
	if namespace == "" {
		namespace = corev1.NamespaceDefault
	}
	return resource.Namespace(namespace), mapping, nil
}
