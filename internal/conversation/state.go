package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is one user's position inside a flow plus everything they have
// entered so far. It lives only while the flow runs: commit, cancel, or the
// TTL sweep destroys it.
type State struct {
	Flow      FlowName
	Step      int
	Data      map[string]string
	UpdatedAt time.Time
}

func newState(flow FlowName) *State {
	return &State{
		Flow: flow,
		Data: make(map[string]string),
	}
}

// Store keeps per-user conversation state in process memory with TTL
// eviction. Each user's state is only touched by the handler processing that
// user's update, but different users interleave, so access is mutex-guarded.
type Store struct {
	mu     sync.Mutex
	ttl    time.Duration
	states map[int64]*State
}

// NewStore creates a Store that treats state idle for longer than ttl as
// abandoned.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:    ttl,
		states: make(map[int64]*State),
	}
}

// Get returns the user's live state. Expired state is dropped on access, so
// an abandoned flow is gone the moment the user comes back, even between
// sweeps.
func (s *Store) Get(userID int64) (*State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[userID]
	if !ok {
		return nil, false
	}
	if time.Since(st.UpdatedAt) > s.ttl {
		delete(s.states, userID)
		return nil, false
	}
	return st, true
}

// Put stores the user's state, refreshing its idle timer. An existing state
// is replaced wholesale — starting a new flow abandons the old one.
func (s *Store) Put(userID int64, st *State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.UpdatedAt = time.Now()
	s.states[userID] = st
}

// Delete removes the user's state, if any.
func (s *Store) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
}

// Len reports the number of live states (expired ones included until swept).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Sweep drops every expired state and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, st := range s.states {
		if now.Sub(st.UpdatedAt) > s.ttl {
			delete(s.states, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps on the given interval until ctx is done. Run it in its
// own goroutine; without it, users who start a flow and walk away would grow
// the map forever.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				logger.Debug("swept abandoned conversations", slog.Int("removed", removed))
			}
		}
	}
}
