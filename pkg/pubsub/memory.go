package pubsub

import (
	"context"
	"errors"
	"path"
	"sync"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("pubsub closed")

const memoryBufferSize = 256

type memorySubscription struct {
	key     string
	pattern bool
	ch      chan *Event
	once    sync.Once
}

func (s *memorySubscription) close() {
	s.once.Do(func() { close(s.ch) })
}

func (s *memorySubscription) matches(channel string) bool {
	if !s.pattern {
		return s.key == channel
	}
	ok, err := path.Match(s.key, channel)
	return err == nil && ok
}

// MemoryPubSub is an in-process bus with Redis-like glob patterns. It only
// fans out within one process.
type MemoryPubSub struct {
	mu     sync.RWMutex
	subs   map[string][]*memorySubscription
	closed bool
}

// NewMemoryPubSub creates an empty in-process bus.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[string][]*memorySubscription)}
}

// Publish delivers event to every matching subscriber without blocking.
// Subscribers whose buffers are full miss the event.
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	for _, subs := range m.subs {
		for _, sub := range subs {
			if !sub.matches(channel) {
				continue
			}
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
	return nil
}

// Subscribe subscribes to an exact channel.
func (m *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return m.subscribe(ctx, channel, false)
}

// SubscribePattern subscribes to channels matching a glob pattern.
func (m *MemoryPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	return m.subscribe(ctx, pattern, true)
}

func (m *MemoryPubSub) subscribe(ctx context.Context, key string, pattern bool) (<-chan *Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	sub := &memorySubscription{
		key:     key,
		pattern: pattern,
		ch:      make(chan *Event, memoryBufferSize),
	}
	m.subs[key] = append(m.subs[key], sub)

	go func() {
		<-ctx.Done()
		m.remove(sub)
	}()

	return sub.ch, nil
}

func (m *MemoryPubSub) remove(target *memorySubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subs[target.key]
	for i, sub := range subs {
		if sub == target {
			m.subs[target.key] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(m.subs[target.key]) == 0 {
		delete(m.subs, target.key)
	}
	target.close()
}

// Unsubscribe closes every subscription registered under channel.
func (m *MemoryPubSub) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subs[channel] {
		sub.close()
	}
	delete(m.subs, channel)
	return nil
}

// Close closes every subscription. Further calls fail with ErrClosed.
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for key, subs := range m.subs {
		for _, sub := range subs {
			sub.close()
		}
		delete(m.subs, key)
	}
	return nil
}
