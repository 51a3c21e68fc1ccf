package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Kind classifies an authorization state change.
type Kind string

const (
	KindRoleRefresh     Kind = "role_refresh"
	KindOverrideSet     Kind = "override_set"
	KindOverrideRemoved Kind = "override_removed"
	KindOverridesClear  Kind = "overrides_cleared"
	KindFlagsUpdated    Kind = "flags_updated"
	KindLogout          Kind = "logout"
)

// Event announces a mutation of shared authorization state so sibling
// processes converge. Generation lets receivers prefer strictly newer state;
// an event older than what the receiver already holds is discarded.
type Event struct {
	Origin     string          `json:"origin"`
	SubjectID  string          `json:"subject_id,omitempty"`
	Kind       Kind            `json:"kind"`
	Generation uint64          `json:"generation,omitempty"`
	At         time.Time       `json:"at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Subscriber receives events from a Broadcaster.
// Implementations must be safe for concurrent use.
type Subscriber interface {
	// Receive returns the channel delivering broadcast events. The channel
	// is closed when the subscriber is closed.
	Receive(ctx context.Context) <-chan Event

	// Close closes the subscriber and releases resources. Idempotent.
	Close() error
}

// Broadcaster fans events out to multiple subscribers, publishing on
// mutation so subscribers can merge. Implementations handle slow consumers
// by dropping events rather than blocking the publisher.
type Broadcaster interface {
	// Subscribe creates a subscriber receiving all subsequent events. The
	// subscription is cleaned up when the context is cancelled.
	Subscribe(ctx context.Context) Subscriber

	// Broadcast sends an event to all active subscribers, including those
	// in sibling processes for distributed implementations.
	Broadcast(ctx context.Context, event Event) error

	// Close shuts down the broadcaster and closes all subscribers.
	Close() error
}

type subscriber struct {
	ch     chan Event
	closed bool
	mu     sync.RWMutex
}

func newSubscriber(bufferSize int) *subscriber {
	return &subscriber{
		ch: make(chan Event, bufferSize),
	}
}

func (s *subscriber) Receive(ctx context.Context) <-chan Event {
	return s.ch
}

func (s *subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

// send delivers non-blocking; a full buffer drops the event.
func (s *subscriber) send(event Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- event:
		return true
	default:
		return false
	}
}
