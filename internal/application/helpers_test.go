package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/kintales-cli/internal/domain"
	"github.com/bnema/kintales-cli/internal/ports"
	"github.com/stretchr/testify/mock"
)

func mockAnyContext() interface{} {
	return mock.Anything
}

type memorySecrets struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemorySecrets(values map[string]string) *memorySecrets {
	if values == nil {
		values = map[string]string{}
	}
	return &memorySecrets{values: values}
}

func (m *memorySecrets) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", fmt.Errorf("memory secret %q: %w", key, domain.ErrSecretNotFound)
	}
	return value, nil
}

func (m *memorySecrets) Put(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memorySecrets) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memorySecrets) snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

type fakeSubscription struct {
	events chan domain.RoomEvent
	once   sync.Once
	closed chan struct{}
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{events: make(chan domain.RoomEvent, 16), closed: make(chan struct{})}
}

func (s *fakeSubscription) Events() <-chan domain.RoomEvent {
	return s.events
}

func (s *fakeSubscription) Close() error {
	s.once.Do(func() {
		close(s.closed)
		close(s.events)
	})
	return nil
}

func (s *fakeSubscription) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeChannel struct {
	mu    sync.Mutex
	joins []domain.StoryID
	subs  []*fakeSubscription
	err   error
}

var _ ports.RoomChannel = (*fakeChannel)(nil)

func (c *fakeChannel) Join(storyID domain.StoryID) (ports.RoomSubscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	sub := newFakeSubscription()
	c.joins = append(c.joins, storyID)
	c.subs = append(c.subs, sub)
	return sub, nil
}

func (c *fakeChannel) last() *fakeSubscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) == 0 {
		return nil
	}
	return c.subs[len(c.subs)-1]
}
