package realtime

import (
	"sync"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/ports"
)

const subscriptionBuffer = 64

type subscription struct {
	storyID domain.StoryID
	manager *Manager
	events  chan domain.RoomEvent
	done    chan struct{}

	// joined is guarded by manager.mu and records that a room:join went out
	// for this membership on an earlier connection.
	joined bool

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

var _ ports.RoomSubscription = (*subscription)(nil)

func newSubscription(m *Manager, storyID domain.StoryID) *subscription {
	return &subscription{
		storyID: storyID,
		manager: m,
		events:  make(chan domain.RoomEvent, subscriptionBuffer),
		done:    make(chan struct{}),
	}
}

func (s *subscription) Events() <-chan domain.RoomEvent {
	return s.events
}

// Close leaves the room. It is safe to call more than once.
func (s *subscription) Close() error {
	err := s.manager.leave(s)
	s.finish()
	return err
}

// deliver blocks while the buffer is full unless the subscription ends.
func (s *subscription) deliver(event domain.RoomEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	select {
	case s.events <- event:
		return true
	case <-s.done:
		return false
	}
}

func (s *subscription) finish() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
}
