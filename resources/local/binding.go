package local

import (
	"github.com/Sgitario/jester/internal/core"
	"github.com/Sgitario/jester/internal/netutil"
)

// StopTimeoutProperty overrides the grace period a process gets between
// SIGTERM and SIGKILL, parsed with time.ParseDuration.
const StopTimeoutProperty = "local.stop-timeout"

// hostPorts is shared by every local resource of the process so two services
// never race for the same port.
var hostPorts = netutil.NewPortRegistry(core.Logger())

func init() {
	core.DefaultRegistry().RegisterBinding(binding{})
}

// binding serves command-backed service declarations without an image.
type binding struct{}

var _ core.ResourceBinding = binding{}

func (binding) Name() string {
	return "local"
}

func (binding) AppliesFor(svc *core.ServiceContext) bool {
	desc := svc.Descriptor()
	return desc.Image == "" && len(desc.Command) > 0
}

func (binding) Init(svc *core.ServiceContext) (core.ManagedResource, error) {
	return NewResource(svc), nil
}
