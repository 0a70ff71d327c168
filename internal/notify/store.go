// internal/notify/store.go
package notify

import (
	"context"
	"sync"
	"time"
)

// Store keeps the notifications currently on screen. Expired entries are
// dropped lazily on read.
type Store struct {
	mu    sync.Mutex
	items []Notification
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// Handle implements Handler so a Store can subscribe to a Bus.
func (s *Store) Handle(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
	return nil
}

// Active returns visible notifications, oldest first.
func (s *Store) Active() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	kept := s.items[:0]
	for _, n := range s.items {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	s.items = kept

	out := make([]Notification, len(kept))
	copy(out, kept)
	return out
}

// Dismiss removes the notification with id.
func (s *Store) Dismiss(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.items {
		if n.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// Clear removes every notification.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}

// Recorder is a synchronous Notifier that keeps everything it receives.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) string {
	n = prepare(n)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return n.ID
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}
