package core

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Sgitario/jester/internal/config"
)

// events records lifecycle activity across fakes so tests can assert ordering.
type events struct {
	mu      sync.Mutex
	entries []string
}

func (e *events) add(format string, args ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, fmt.Sprintf(format, args...))
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.entries))
	copy(out, e.entries)
	return out
}

// fakeResource is an in-memory ManagedResource with scriptable failures.
type fakeResource struct {
	name    string
	rec     *events
	running bool

	startErr error
	stopErr  error

	host  string
	ports map[int]int
	lines []string
}

func newFakeResource(name string, rec *events) *fakeResource {
	return &fakeResource{name: name, rec: rec, host: "127.0.0.1"}
}

func (r *fakeResource) Start(context.Context) error {
	r.rec.add("start %s", r.name)
	if r.startErr != nil {
		return r.startErr
	}
	r.running = true
	return nil
}

func (r *fakeResource) Stop(context.Context) error {
	r.rec.add("stop %s", r.name)
	if r.stopErr != nil {
		return r.stopErr
	}
	r.running = false
	return nil
}

func (r *fakeResource) DisplayName() string { return "fake/" + r.name }
func (r *fakeResource) Host() string        { return r.host }
func (r *fakeResource) IsRunning() bool     { return r.running }
func (r *fakeResource) Logs() []string      { return r.lines }

func (r *fakeResource) MappedPort(port int) (int, error) {
	if mapped, ok := r.ports[port]; ok {
		return mapped, nil
	}
	return 0, fmt.Errorf("port %d not exposed", port)
}

// fakeBinding matches every service unless a predicate narrows it down.
type fakeBinding struct {
	name      string
	rec       *events
	applies   func(*ServiceContext) bool
	initErr   error
	resources map[string]*fakeResource
}

func newFakeBinding(name string, rec *events) *fakeBinding {
	return &fakeBinding{name: name, rec: rec, resources: map[string]*fakeResource{}}
}

func (b *fakeBinding) Name() string { return b.name }

func (b *fakeBinding) AppliesFor(svc *ServiceContext) bool {
	if b.applies == nil {
		return true
	}
	return b.applies(svc)
}

func (b *fakeBinding) Init(svc *ServiceContext) (ManagedResource, error) {
	if b.initErr != nil {
		return nil, b.initErr
	}
	res := newFakeResource(svc.Name(), b.rec)
	b.resources[svc.Name()] = res
	return res, nil
}

// recordingExtension notes every hook invocation in order.
type recordingExtension struct {
	NoopExtension
	name    string
	rec     *events
	applies bool

	beforeAllErr error
	params       map[string]any
}

func newRecordingExtension(name string, rec *events) *recordingExtension {
	return &recordingExtension{name: name, rec: rec, applies: true}
}

func (e *recordingExtension) AppliesFor(*ScenarioContext) bool { return e.applies }

func (e *recordingExtension) BeforeAll(*ScenarioContext) error {
	e.rec.add("%s beforeAll", e.name)
	return e.beforeAllErr
}

func (e *recordingExtension) AfterAll(*ScenarioContext) error {
	e.rec.add("%s afterAll", e.name)
	return nil
}

func (e *recordingExtension) BeforeEach(*ScenarioContext) error {
	e.rec.add("%s beforeEach", e.name)
	return nil
}

func (e *recordingExtension) AfterEach(*ScenarioContext) error {
	e.rec.add("%s afterEach", e.name)
	return nil
}

func (e *recordingExtension) UpdateServiceContext(svc *ServiceContext) error {
	e.rec.add("%s update %s", e.name, svc.Name())
	return nil
}

func (e *recordingExtension) OnServiceLaunch(_ *ScenarioContext, svc *ServiceContext) error {
	e.rec.add("%s launch %s", e.name, svc.Name())
	return nil
}

func (e *recordingExtension) OnError(_ *ScenarioContext, cause error) {
	e.rec.add("%s onError %v", e.name, cause != nil)
}

func (e *recordingExtension) OnSuccess(*ScenarioContext) {
	e.rec.add("%s onSuccess", e.name)
}

func (e *recordingExtension) OnDisabled(_ *ScenarioContext, reason string) {
	e.rec.add("%s onDisabled %s", e.name, reason)
}

func (e *recordingExtension) Parameter(name string) (any, bool) {
	v, ok := e.params[name]
	return v, ok
}

// newTestScenario builds a ScenarioContext rooted in a test temp dir.
func newTestScenario(t *testing.T, props map[string]string, global map[string]string) *ScenarioContext {
	t.Helper()

	scn, err := NewScenarioContext(context.Background(), ScenarioContextParams{
		Name:       t.Name(),
		LogDir:     t.TempDir(),
		Properties: config.MapSource(props),
		Global:     config.MapSource(global),
	})
	if err != nil {
		t.Fatalf("NewScenarioContext: %v", err)
	}
	return scn
}
