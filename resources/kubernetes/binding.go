package kubernetes

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/Sgitario/jester/internal/core"
)

// Property keys consulted through the service configuration cascade.
const (
	KubeconfigProperty = "kubernetes.kubeconfig"
	ContextProperty    = "kubernetes.context"
	NamespaceProperty  = "kubernetes.namespace"
	TemplateProperty   = "kubernetes.template"
	NodeHostProperty   = "kubernetes.node-host"
)

// DefaultNamespace is the target namespace when none is configured.
const DefaultNamespace = "default"

func init() {
	core.DefaultRegistry().RegisterBinding(binding{})
}

// binding serves image-backed service declarations.
type binding struct{}

var _ core.ResourceBinding = binding{}

func (binding) Name() string {
	return "kubernetes"
}

func (binding) AppliesFor(svc *core.ServiceContext) bool {
	return svc.Descriptor().Image != ""
}

func (binding) Init(svc *core.ServiceContext) (core.ManagedResource, error) {
	client, err := buildClient(svc)
	if err != nil {
		return nil, err
	}
	return NewResource(svc, WithClient(client)), nil
}

// buildClient assembles a clientset from the kubeconfig the service's
// configuration cascade points at, falling back to the standard loading
// rules (KUBECONFIG, then the home kubeconfig).
func buildClient(svc *core.ServiceContext) (kubernetes.Interface, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if path := core.NewPropertyLookup(KubeconfigProperty).Get(svc); path != "" {
		rules.ExplicitPath = path
	}
	overrides := &clientcmd.ConfigOverrides{}
	if kubeContext := core.NewPropertyLookup(ContextProperty).Get(svc); kubeContext != "" {
		overrides.CurrentContext = kubeContext
	}

	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig: %w", err)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build kubernetes client: %w", err)
	}
	return client, nil
}
