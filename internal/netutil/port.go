package netutil

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// maxPortRetries is the maximum number of attempts to obtain a kernel port
// that is not already reserved in the registry. Guards pathological cases.
const maxPortRetries = 20

// PortRegistry tracks host ports currently reserved by this process so that
// two concurrent allocations never receive the same port (the kernel may
// re-assign a port as soon as the probing listener that discovered it is
// closed). One registry is shared by every local backend in a scenario run.
type PortRegistry struct {
	mu    sync.Mutex
	ports map[int]struct{}
	log   *slog.Logger
}

// NewPortRegistry creates a PortRegistry ready for use.
// If logger is nil, slog.Default() is used as a fallback.
func NewPortRegistry(logger *slog.Logger) *PortRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortRegistry{
		ports: make(map[int]struct{}),
		log:   logger,
	}
}

// reserve attempts to register a port. Returns false if already taken.
func (r *PortRegistry) reserve(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ports[port]; ok {
		return false
	}
	r.ports[port] = struct{}{}
	return true
}

// Release removes a port from the registry, allowing it to be reused.
func (r *PortRegistry) Release(port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ports, port)
}

// Allocate reserves one free port. The kernel picks the port via a loopback
// listener that is closed before returning; the registry entry is what keeps
// concurrent callers from racing onto the same port between close and actual
// use. Callers must Release the port when the backend is done with it.
func (r *PortRegistry) Allocate() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("resolve tcp address: %w", err)
	}

	for range maxPortRetries {
		l, err := net.ListenTCP("tcp", addr)
		if err != nil {
			return 0, fmt.Errorf("listen on tcp address: %w", err)
		}
		tcpAddr, ok := l.Addr().(*net.TCPAddr)
		if !ok {
			_ = l.Close()
			return 0, fmt.Errorf("unexpected address type: %T", l.Addr())
		}
		port := tcpAddr.Port
		if closeErr := l.Close(); closeErr != nil {
			r.log.Warn("close probe listener", "port", port, "error", closeErr)
		}
		if r.reserve(port) {
			return port, nil
		}
		r.log.Debug("port already reserved, retrying", "port", port)
	}
	return 0, fmt.Errorf("allocate unique port: exhausted %d attempts", maxPortRetries)
}

// AllocateMap reserves one free host port per declared port and returns the
// declared-to-host mapping. On any failure, ports reserved so far are
// released before returning, so a partial allocation never leaks.
func (r *PortRegistry) AllocateMap(declared []int) (map[int]int, error) {
	mapping := make(map[int]int, len(declared))
	for _, d := range declared {
		host, err := r.Allocate()
		if err != nil {
			for _, h := range mapping {
				r.Release(h)
			}
			return nil, fmt.Errorf("allocate host port for declared port %d: %w", d, err)
		}
		mapping[d] = host
	}
	return mapping, nil
}
