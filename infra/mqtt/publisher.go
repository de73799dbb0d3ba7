package mqtt

import (
	"fmt"
	"sync"
	"time"

	coremqtt "github.com/ridgeline-ems/ift-dispatch/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// MockNotifier is an in-memory notifier used in tests. Units listed in
// FailIDs fail to publish, Decline answers with a refusal and Silent never
// answers.
type MockNotifier struct {
	Sent    map[string]coremqtt.Notification
	Order   []string
	FailIDs map[string]bool
	Decline map[string]bool
	Silent  map[string]bool
	cmds    map[string]string
	mu      sync.Mutex
}

// NewMockNotifier creates a new MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		Sent:    make(map[string]coremqtt.Notification),
		FailIDs: make(map[string]bool),
		Decline: make(map[string]bool),
		Silent:  make(map[string]bool),
		cmds:    make(map[string]string),
	}
}

// SendAssignment records the notification or returns an error if configured to fail.
func (m *MockNotifier) SendAssignment(unitID string, n coremqtt.Notification) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Order = append(m.Order, unitID)
	if m.FailIDs[unitID] {
		return "", fmt.Errorf("publish failed")
	}
	m.Sent[unitID] = n
	commandID := fmt.Sprintf("cmd-%s-%d", unitID, len(m.Order))
	m.cmds[commandID] = unitID
	return commandID, nil
}

// WaitForAck answers immediately according to the configured behaviour.
func (m *MockNotifier) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	unitID, exists := m.cmds[commandID]
	silent, declined := m.Silent[unitID], m.Decline[unitID]
	m.mu.Unlock()
	switch {
	case !exists:
		return false, fmt.Errorf("unknown command")
	case silent:
		return false, coremqtt.ErrAckTimeout
	case declined:
		return false, coremqtt.ErrDeclined
	}
	return true, nil
}

// Notified returns the units notified so far, in order.
func (m *MockNotifier) Notified() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Order...)
}
