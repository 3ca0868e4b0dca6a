// Package chat holds the application state and runs the send cycle that
// turns a user message into a streamed assistant reply.
package chat

import (
	"sync"

	"mychat/model"
)

// Store owns the current model.State. Every change goes through model.Apply;
// subscribers receive the resulting snapshot once per Dispatch.
type Store struct {
	mu    sync.Mutex
	state model.State

	// notifyMu serializes notifications so subscribers observe snapshots in
	// dispatch order. Subscribers must not call Dispatch.
	notifyMu sync.Mutex
	subs     []subscription
	nextID   int
}

type subscription struct {
	id int
	fn func(model.State)
}

func NewStore(initial model.State) *Store {
	return &Store{state: initial}
}

// Snapshot returns the current state. The returned value must be treated as
// read-only.
func (s *Store) Snapshot() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies events in order and returns the resulting state.
func (s *Store) Dispatch(events ...model.Event) model.State {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.state = model.ApplyAll(s.state, events...)
	state := s.state
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(state)
	}
	return state
}

// Subscribe registers fn for future snapshots and returns a function that
// removes it.
func (s *Store) Subscribe(fn func(model.State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			subs := make([]subscription, 0, len(s.subs))
			for _, sub := range s.subs {
				if sub.id != id {
					subs = append(subs, sub)
				}
			}
			s.subs = subs
		})
	}
}
