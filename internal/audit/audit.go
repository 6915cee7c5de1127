// Package audit records allocation decisions and container lifecycle events.
// Events are stored as JSON Lines (JSONL) files, one per username.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
)

// EventType classifies an audit event.
type EventType string

const (
	EventCreate  EventType = "create"
	EventReuse   EventType = "reuse"
	EventReject  EventType = "reject"
	EventFail    EventType = "fail"
	EventUpdate  EventType = "update"
	EventStart   EventType = "start"
	EventStop    EventType = "stop"
	EventDestroy EventType = "destroy"
)

// Event represents a single audit log entry.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Username  string    `json:"username"`
	Port      int       `json:"port,omitempty"`
	Container string    `json:"container,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Logger writes and reads audit events.
// Events are stored in {dir}/{username}.events.jsonl.
type Logger struct {
	dir string
}

// NewLogger creates a new audit logger rooted at dir.
func NewLogger(dir string) *Logger {
	return &Logger{dir: dir}
}

func (l *Logger) eventPath(username string) (string, error) {
	if err := config.ValidateUsername(username); err != nil {
		return "", err
	}
	return filepath.Join(l.dir, username+".events.jsonl"), nil
}

// Log appends an event to the user's audit log.
func (l *Logger) Log(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	path, err := l.eventPath(event.Username)
	if err != nil {
		return fmt.Errorf("invalid audit username: %w", err)
	}
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// Record is a convenience method for an allocation-scoped event.
func (l *Logger) Record(eventType EventType, rec *config.AllocationRecord, details string) error {
	return l.Log(Event{
		Type:      eventType,
		Username:  rec.Username,
		Port:      rec.Port,
		Container: rec.ContainerName(),
		Details:   details,
	})
}

// Events reads all events for a user in the order they were written.
func (l *Logger) Events(username string) ([]Event, error) {
	path, err := l.eventPath(username)
	if err != nil {
		return nil, fmt.Errorf("invalid audit username: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading audit log: %w", err)
	}

	return events, nil
}
