package imap

import (
	"fmt"
	"sync"

	"github.com/HALDRO/IMAP-Viewer-sub001/models"
)

// stateEvent drives the per-account connection state machine.
type stateEvent int

const (
	eventConnect stateEvent = iota
	eventConnected
	eventConnectFailed
	eventConnectionLost
	eventDisconnect
)

func (e stateEvent) String() string {
	switch e {
	case eventConnect:
		return "connect"
	case eventConnected:
		return "connected"
	case eventConnectFailed:
		return "connect-failed"
	case eventConnectionLost:
		return "connection-lost"
	case eventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// stateTransitions is the full legal transition table. Anything absent
// here is structurally unreachable: connecting cannot jump to connected
// without a successful handshake event, and connected cannot re-enter
// connecting without first dropping.
var stateTransitions = map[models.ConnectionStatus]map[stateEvent]models.ConnectionStatus{
	models.StatusDisconnected: {
		eventConnect: models.StatusConnecting,
	},
	models.StatusConnecting: {
		eventConnected:     models.StatusConnected,
		eventConnectFailed: models.StatusDisconnected,
	},
	models.StatusConnected: {
		eventConnectionLost: models.StatusDisconnected,
		eventDisconnect:     models.StatusDisconnected,
	},
}

// stateMachine is the single mutation entry point for connection status.
// Observers are notified outside the lock.
type stateMachine struct {
	mu       sync.Mutex
	current  models.ConnectionStatus
	observer func(status models.ConnectionStatus, details string)
}

func newStateMachine(observer func(models.ConnectionStatus, string)) *stateMachine {
	return &stateMachine{current: models.StatusDisconnected, observer: observer}
}

// transition applies one event. Illegal transitions return an error and
// leave the state untouched.
func (s *stateMachine) transition(event stateEvent, details string) error {
	s.mu.Lock()
	next, ok := stateTransitions[s.current][event]
	if !ok {
		current := s.current
		s.mu.Unlock()
		return fmt.Errorf("illegal transition: %s on %s", event, current)
	}
	s.current = next
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer(next, details)
	}
	return nil
}

// status returns the current state.
func (s *stateMachine) status() models.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
