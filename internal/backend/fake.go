package backend

import (
	"context"
	"sync"

	"github.com/khushiGit123/jira-gen/internal/errors"
)

// Scripted is an in-memory Backend that replays a fixed sequence of
// responses. Tests use it to drive stage and pipeline behavior without a
// network.
type Scripted struct {
	mu       sync.Mutex
	steps    []scriptStep
	requests []Request
}

type scriptStep struct {
	text string
	err  error
}

// NewScripted creates a Scripted backend with no steps. Calls beyond the
// scripted steps return a transport error.
func NewScripted() *Scripted {
	return &Scripted{}
}

// Respond appends a successful completion step.
func (s *Scripted) Respond(text string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, scriptStep{text: text})
	return s
}

// Fail appends a failing step.
func (s *Scripted) Fail(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, scriptStep{err: err})
	return s
}

// Complete replays the next scripted step.
func (s *Scripted) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		return "", errors.NewTransportError("scripted backend exhausted", nil)
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.text, step.err
}

// Requests returns a copy of every request seen so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls returns how many Complete calls have been made.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
