package system

import (
	"context"
	"os/exec"
	"strings"
	"sync"
)

// MockExecutor implements CommandExecutor for testing.
type MockExecutor struct {
	mu sync.Mutex

	// Commands records all executed commands for verification.
	Commands []MockCommand

	// Responses maps command patterns to responses. A pattern is the command
	// name followed by leading arguments, e.g. "docker build". The longest
	// matching pattern wins.
	Responses map[string]MockResponse

	// DefaultResponse is used when no matching response is found.
	DefaultResponse MockResponse

	// Paths lists executables LookPath should find.
	Paths map[string]string
}

// MockCommand records an executed command.
type MockCommand struct {
	Name  string
	Args  []string
	Stdin []byte
}

// String renders the command as a space separated line.
func (c MockCommand) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// MockResponse defines the response for a command.
type MockResponse struct {
	Output []byte
	Err    error

	// Hang blocks until the context is done, then returns its error.
	Hang bool
}

// NewMockExecutor creates a new MockExecutor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Commands:  make([]MockCommand, 0),
		Responses: make(map[string]MockResponse),
		Paths:     make(map[string]string),
	}
}

// AddResponse adds a response for a specific command pattern.
func (m *MockExecutor) AddResponse(pattern string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[pattern] = MockResponse{Output: output, Err: err}
}

// AddHang makes commands matching pattern block until cancelled.
func (m *MockExecutor) AddHang(pattern string, output []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[pattern] = MockResponse{Output: output, Hang: true}
}

func (m *MockExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	return m.run(ctx, MockCommand{Name: name, Args: args})
}

func (m *MockExecutor) ExecuteWithStdin(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	return m.run(ctx, MockCommand{Name: name, Args: args, Stdin: stdin})
}

func (m *MockExecutor) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Paths[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func (m *MockExecutor) run(ctx context.Context, cmd MockCommand) ([]byte, error) {
	m.mu.Lock()
	m.Commands = append(m.Commands, cmd)
	resp := m.match(cmd)
	m.mu.Unlock()

	if resp.Hang {
		<-ctx.Done()
		return resp.Output, ctx.Err()
	}
	return resp.Output, resp.Err
}

func (m *MockExecutor) match(cmd MockCommand) MockResponse {
	words := append([]string{cmd.Name}, cmd.Args...)
	for n := len(words); n > 0; n-- {
		if resp, ok := m.Responses[strings.Join(words[:n], " ")]; ok {
			return resp
		}
	}
	return m.DefaultResponse
}

// LastCommand returns the most recently executed command.
func (m *MockExecutor) LastCommand() (MockCommand, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Commands) == 0 {
		return MockCommand{}, false
	}
	return m.Commands[len(m.Commands)-1], true
}

// CommandsFor returns recorded commands whose first argument is sub.
func (m *MockExecutor) CommandsFor(sub string) []MockCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockCommand
	for _, c := range m.Commands {
		if len(c.Args) > 0 && c.Args[0] == sub {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears all recorded commands.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = make([]MockCommand, 0)
}
