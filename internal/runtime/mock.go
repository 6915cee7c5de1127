package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockRuntime is a mock implementation of Runtime for testing
type MockRuntime struct {
	mu sync.RWMutex

	// Containers tracks the state of mock containers
	Containers map[string]*ContainerInfo

	// Specs records the RunSpec of every successful Provision by name
	Specs map[string]RunSpec

	// Errors allows injecting errors for specific operations
	Errors map[string]error

	// CallLog records all method calls for verification
	CallLog []MockCall
}

// MockCall represents a recorded method call
type MockCall struct {
	Method string
	Args   []interface{}
}

// NewMockRuntime creates a new mock runtime
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		Containers: make(map[string]*ContainerInfo),
		Specs:      make(map[string]RunSpec),
		Errors:     make(map[string]error),
		CallLog:    make([]MockCall, 0),
	}
}

func (m *MockRuntime) record(method string, args ...interface{}) {
	m.CallLog = append(m.CallLog, MockCall{Method: method, Args: args})
}

// SetError sets an error to be returned for a specific operation
func (m *MockRuntime) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[operation] = err
}

// ClearError removes an injected error
func (m *MockRuntime) ClearError(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Errors, operation)
}

// AddContainer adds a container to the mock
func (m *MockRuntime) AddContainer(name string, status ContainerStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Containers[name] = &ContainerInfo{
		Name:   name,
		Status: status,
	}
}

// HasContainer reports whether name exists in the mock
func (m *MockRuntime) HasContainer(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.Containers[name]
	return ok
}

// GetCalls returns all recorded calls
func (m *MockRuntime) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]MockCall, len(m.CallLog))
	copy(calls, m.CallLog)
	return calls
}

// GetCallsFor returns all calls for a specific method
func (m *MockRuntime) GetCallsFor(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var calls []MockCall
	for _, call := range m.CallLog {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// Reset clears all state
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Containers = make(map[string]*ContainerInfo)
	m.Specs = make(map[string]RunSpec)
	m.Errors = make(map[string]error)
	m.CallLog = make([]MockCall, 0)
}

// Name returns the runtime identifier
func (m *MockRuntime) Name() string {
	return "mock"
}

// Provision records spec and marks the container running
func (m *MockRuntime) Provision(ctx context.Context, spec RunSpec) (*RunResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Provision", spec)

	if err, ok := m.Errors["Provision"]; ok {
		return nil, err
	}
	if _, exists := m.Containers[spec.Name]; exists {
		return nil, fmt.Errorf("container name %s already in use", spec.Name)
	}

	m.Containers[spec.Name] = &ContainerInfo{
		Name:      spec.Name,
		Status:    StatusRunning,
		Image:     spec.Name,
		StartedAt: time.Now(),
	}
	m.Specs[spec.Name] = spec

	return &RunResult{
		ContainerID: "mock-" + spec.Name,
		ImageTag:    spec.Name,
	}, nil
}

// Start starts an existing container
func (m *MockRuntime) Start(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Start", name)

	if err, ok := m.Errors["Start"]; ok {
		return err
	}

	if container, ok := m.Containers[name]; ok {
		container.Status = StatusRunning
		return nil
	}

	return fmt.Errorf("container not found: %s", name)
}

// Stop stops a running container
func (m *MockRuntime) Stop(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Stop", name)

	if err, ok := m.Errors["Stop"]; ok {
		return err
	}

	if container, ok := m.Containers[name]; ok {
		container.Status = StatusStopped
		return nil
	}

	return fmt.Errorf("container not found: %s", name)
}

// Destroy stops and removes a container
func (m *MockRuntime) Destroy(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Destroy", name)

	if err, ok := m.Errors["Destroy"]; ok {
		return err
	}

	delete(m.Containers, name)
	delete(m.Specs, name)
	return nil
}

// IsRunning checks if a container is currently running
func (m *MockRuntime) IsRunning(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("IsRunning", name)

	if err, ok := m.Errors["IsRunning"]; ok {
		return false, err
	}

	if container, ok := m.Containers[name]; ok {
		return container.Status == StatusRunning, nil
	}

	return false, nil
}

// Status returns detailed status of a container
func (m *MockRuntime) Status(ctx context.Context, name string) (*ContainerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Status", name)

	if err, ok := m.Errors["Status"]; ok {
		return nil, err
	}

	if container, ok := m.Containers[name]; ok {
		c := *container
		return &c, nil
	}

	return &ContainerInfo{Name: name, Status: StatusNotFound}, nil
}

// Ensure MockRuntime implements Runtime
var _ Runtime = (*MockRuntime)(nil)
