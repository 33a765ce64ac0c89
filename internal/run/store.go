package run

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khushiGit123/jira-gen/internal/errors"
)

// Store keeps run state keyed by run id. All reads return snapshot copies;
// all writes go through Update so no caller ever holds a reference into the
// store's own state.
type Store struct {
	mu     sync.RWMutex
	runs   map[string]*RunState
	latest string

	now func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		runs: make(map[string]*RunState),
		now:  time.Now,
	}
}

// Create registers a new run for the given input and returns its snapshot.
func (s *Store) Create(input UserInput) RunState {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	state := &RunState{
		ID:        uuid.NewString(),
		Input:     input,
		Status:    StatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.runs[state.ID] = state
	return state.clone()
}

// Get returns a snapshot of the run, or ErrRunNotFound.
func (s *Store) Get(id string) (RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.runs[id]
	if !ok {
		return RunState{}, errors.ErrRunNotFound
	}
	return state.clone(), nil
}

// Update applies fn to the run under the write lock and returns the updated
// snapshot. The latest pointer moves only when the run reaches a terminal
// status, so "latest" always names a finished run.
func (s *Store) Update(id string, fn func(*RunState)) (RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.runs[id]
	if !ok {
		return RunState{}, errors.ErrRunNotFound
	}
	fn(state)
	state.UpdatedAt = s.now()
	if state.Status.Terminal() {
		s.latest = state.ID
	}
	return state.clone(), nil
}

// Latest returns the most recently finished run, or ErrRunNotFound when no
// run has reached a terminal status yet.
func (s *Store) Latest() (RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == "" {
		return RunState{}, errors.ErrRunNotFound
	}
	return s.runs[s.latest].clone(), nil
}

// List returns snapshots of every run, newest first.
func (s *Store) List() []RunState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunState, 0, len(s.runs))
	for _, state := range s.runs {
		out = append(out, state.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
