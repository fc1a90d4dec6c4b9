package domain

import (
	"sync"
	"time"
)

// Session is the per-connection state of an authenticated websocket client.
type Session struct {
	ID           string
	UserID       string
	Email        string
	Role         Role
	CreatedAt    time.Time
	LastActiveAt time.Time

	rooms map[string]struct{}
	mu    sync.RWMutex
}

func NewSession(id, userID, email string, role Role) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		UserID:       userID,
		Email:        email,
		Role:         role,
		CreatedAt:    now,
		LastActiveAt: now,
		rooms:        make(map[string]struct{}),
	}
}

// JoinRoom records membership; it returns false if already joined.
func (s *Session) JoinRoom(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
	if _, ok := s.rooms[room]; ok {
		return false
	}
	s.rooms[room] = struct{}{}
	return true
}

// LeaveRoom forgets membership; it returns false if not joined.
func (s *Session) LeaveRoom(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
	if _, ok := s.rooms[room]; !ok {
		return false
	}
	delete(s.rooms, room)
	return true
}

func (s *Session) InRoom(room string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[room]
	return ok
}

// Rooms returns a snapshot of joined rooms.
func (s *Session) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rooms))
	for room := range s.rooms {
		out = append(out, room)
	}
	return out
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
