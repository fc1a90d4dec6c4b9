package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/cache"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/domain"
)

type broadcastCall struct {
	Room      string
	EventType string
	From      string
	Payload   json.RawMessage
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
	err   error
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, room, eventType, from string, payload interface{}) error {
	data, _ := json.Marshal(payload)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, broadcastCall{Room: room, EventType: eventType, From: from, Payload: data})
	return f.err
}

func (f *fakeBroadcaster) Calls() []broadcastCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broadcastCall(nil), f.calls...)
}

type fakeProducer struct {
	mu     sync.Mutex
	events []*domain.MessageCreatedEvent
	err    error
}

func (f *fakeProducer) PublishMessageCreated(_ context.Context, event *domain.MessageCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakeProducer) Close() error { return nil }

type fakeCache struct {
	mu      sync.Mutex
	items   map[string]domain.Principal
	sets    chan string
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string]domain.Principal), sets: make(chan string, 16)}
}

func (f *fakeCache) Get(_ context.Context, id string) (*domain.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &p, nil
}

func (f *fakeCache) Set(_ context.Context, p *domain.Principal, _ time.Duration) error {
	f.mu.Lock()
	f.items[p.ID] = *p
	f.mu.Unlock()
	select {
	case f.sets <- p.ID:
	default:
	}
	return nil
}

func (f *fakeCache) Delete(_ context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.items, id)
		f.deleted = append(f.deleted, id)
	}
	return nil
}

func (f *fakeCache) Close() error { return nil }
