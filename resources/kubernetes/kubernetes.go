package kubernetes

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	"github.com/Sgitario/jester/internal/core"
	"github.com/Sgitario/jester/internal/logwatch"
)

// podWaitInterval is the poll interval while waiting for a pod of the
// service's workload to appear after a scale-up.
const podWaitInterval = 500 * time.Millisecond

// DefaultPodWaitTimeout bounds the wait for a pod to appear before the log
// watcher can attach. Image pulls on cold nodes dominate the worst case.
const DefaultPodWaitTimeout = 90 * time.Second

// logStreamFunc opens the log stream the readiness watcher tails.
type logStreamFunc func(ctx context.Context, client kubernetes.Interface, namespace, pod string) (io.ReadCloser, error)

// defaultLogStream follows the pod's container logs through the API server.
func defaultLogStream(ctx context.Context, client kubernetes.Interface, namespace, pod string) (io.ReadCloser, error) {
	return client.CoreV1().Pods(namespace).GetLogs(pod, &corev1.PodLogOptions{Follow: true}).Stream(ctx)
}

// Option configures a Resource during construction.
type Option func(*Resource)

// WithClient sets the clientset the resource talks to. The binding installs
// a kubeconfig-derived client; tests install a fake.
func WithClient(client kubernetes.Interface) Option {
	return func(r *Resource) {
		r.client = client
	}
}

// WithNamespace overrides the target namespace.
func WithNamespace(namespace string) Option {
	return func(r *Resource) {
		r.namespace = namespace
	}
}

// WithLogStream replaces how the readiness watcher obtains the pod log
// stream.
func WithLogStream(fn logStreamFunc) Option {
	return func(r *Resource) {
		r.streamFn = fn
	}
}

// WithPodWaitTimeout bounds the wait for a pod after scale-up.
func WithPodWaitTimeout(d time.Duration) Option {
	return func(r *Resource) {
		r.podWaitTimeout = d
	}
}

// Resource manages one service as a Deployment plus one NodePort Service per
// declared port. The first Start provisions and exposes the workload; every
// later Start, including restarts, routes through the update path, reusing
// what the first Start created. Ports are exposed exactly once.
type Resource struct {
	svc       *core.ServiceContext
	client    kubernetes.Interface
	namespace string
	streamFn  logStreamFunc

	podWaitTimeout time.Duration

	mu      sync.Mutex
	init    bool
	running bool
	host    string
	watcher *logwatch.Watcher

	portMu    sync.Mutex
	nodePorts map[int]int
}

var _ core.ManagedResource = (*Resource)(nil)

// NewResource creates the managed resource for svc. The target namespace
// resolves through the service's configuration cascade unless overridden.
func NewResource(svc *core.ServiceContext, opts ...Option) *Resource {
	r := &Resource{
		svc:            svc,
		namespace:      core.NewPropertyLookup(NamespaceProperty).WithDefault(DefaultNamespace).Get(svc),
		streamFn:       defaultLogStream,
		podWaitTimeout: DefaultPodWaitTimeout,
		nodePorts:      map[int]int{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DisplayName identifies the resource in logs.
func (r *Resource) DisplayName() string {
	return "kubernetes/" + r.svc.Name()
}

// Start applies the workload and scales it to one replica. On the first
// start the declared ports are exposed and the service host resolved; both
// survive stops and are reused by every later start.
func (r *Resource) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	if err := r.applyDeployment(ctx); err != nil {
		return err
	}
	if !r.init {
		if err := r.exposePorts(ctx); err != nil {
			return err
		}
		if err := r.resolveHost(ctx); err != nil {
			return err
		}
		r.init = true
	}
	if err := r.scaleTo(ctx, 1); err != nil {
		return err
	}
	if err := r.attachLogWatcher(ctx); err != nil {
		return err
	}

	r.running = true
	return nil
}

// Stop scales the workload to zero replicas. The deployment, its exposed
// ports, and the resolved host stay in place for the next start.
func (r *Resource) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}

	if r.watcher != nil {
		r.watcher.Stop()
	}
	if err := r.scaleTo(ctx, 0); err != nil {
		return err
	}
	r.running = false
	return nil
}

// IsRunning reports whether the workload is up and, when an expected log
// line is declared, whether that line has been observed in the pod logs.
func (r *Resource) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return false
	}
	expected := r.svc.Descriptor().ExpectedLog
	if expected == "" {
		return true
	}
	return r.watcher != nil && r.watcher.Contains(expected)
}

// Host returns the node address clients reach the exposed ports on.
// Resolved during the first start.
func (r *Resource) Host() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}

// MappedPort translates a declared port into its assigned node port.
func (r *Resource) MappedPort(port int) (int, error) {
	r.portMu.Lock()
	defer r.portMu.Unlock()
	if mapped, ok := r.nodePorts[port]; ok {
		return mapped, nil
	}
	return 0, fmt.Errorf("service %s: port %d not exposed: %w",
		r.svc.Name(), port, core.ErrUnsupportedEnvironment)
}

// Logs returns the pod log lines captured so far. The buffer survives Stop.
func (r *Resource) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher == nil {
		return nil
	}
	return r.watcher.Lines()
}

// exposePorts creates one NodePort Service per declared port, concurrently.
// A Service left over from an earlier run under the same name is adopted
// rather than recreated. The assigned node ports are recorded for
// MappedPort.
func (r *Resource) exposePorts(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, port := range r.svc.Descriptor().Ports {
		g.Go(func() error {
			created, err := r.exposePort(ctx, port)
			if err != nil {
				return err
			}
			r.portMu.Lock()
			r.nodePorts[port] = created
			r.portMu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// attachLogWatcher waits for a pod of the workload and tails its logs into
// a fresh watcher. The previous watcher's buffer is discarded: readiness
// must be re-observed after every start.
func (r *Resource) attachLogWatcher(ctx context.Context) error {
	pod, err := r.waitForPod(ctx)
	if err != nil {
		return err
	}
	stream, err := r.streamFn(ctx, r.client, r.namespace, pod)
	if err != nil {
		return fmt.Errorf("service %s: open log stream for pod %s: %w", r.svc.Name(), pod, err)
	}
	r.watcher = logwatch.Start(r.svc.Name(), stream, r.svc.Owner().Logger())
	return nil
}

// waitForPod polls until the workload has at least one pod and returns its
// name.
func (r *Resource) waitForPod(ctx context.Context) (string, error) {
	selector := metav1.ListOptions{LabelSelector: "app=" + r.svc.Name()}

	var pod string
	err := wait.PollUntilContextTimeout(ctx, podWaitInterval, r.podWaitTimeout, true,
		func(ctx context.Context) (bool, error) {
			pods, listErr := r.client.CoreV1().Pods(r.namespace).List(ctx, selector)
			if listErr != nil {
				r.svc.Owner().Logger().Debug("pod poll failed",
					"service", r.svc.Name(), "error", listErr)
				return false, nil
			}
			for i := range pods.Items {
				if pods.Items[i].DeletionTimestamp == nil {
					pod = pods.Items[i].Name
					return true, nil
				}
			}
			return false, nil
		})
	if err != nil {
		return "", fmt.Errorf("service %s: no pod appeared: %w", r.svc.Name(), err)
	}
	return pod, nil
}

// resolveHost picks the address for reaching node ports: the configured
// override when present, otherwise the first ready node's internal address.
func (r *Resource) resolveHost(ctx context.Context) error {
	if host := core.NewPropertyLookup(NodeHostProperty).Get(r.svc); host != "" {
		r.host = host
		return nil
	}

	nodes, err := r.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return fmt.Errorf("service %s: list nodes: %w", r.svc.Name(), err)
	}
	for i := range nodes.Items {
		for _, addr := range nodes.Items[i].Status.Addresses {
			if addr.Type == corev1.NodeInternalIP && addr.Address != "" {
				r.host = addr.Address
				return nil
			}
		}
	}
	return fmt.Errorf("service %s: no node with an internal address: %w",
		r.svc.Name(), core.ErrUnsupportedEnvironment)
}
