// Package flow models the client-facing step machine for a diagnostic
// session: collect input, run the analysis, show the result, optionally
// draft a document from it. The server keeps one Flow per session so a
// double-submitted form cannot start two analyses.
package flow

import (
	"fmt"
	"sync"
)

// Step is a UI-visible stage of the session.
type Step string

const (
	StepInput         Step = "input"
	StepAnalyzing     Step = "analyzing"
	StepResult        Step = "result"
	StepGeneratingDoc Step = "generating_doc"
	StepDocResult     Step = "doc_result"
)

// IllegalTransitionError reports a requested step change the machine does
// not allow from its current step.
type IllegalTransitionError struct {
	From Step
	To   Step
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("flow: cannot move from %s to %s", e.From, e.To)
}

// transitions lists the legal forward edges. Failure edges and Reset are
// handled separately because they carry an error message back.
var transitions = map[Step][]Step{
	StepInput:         {StepAnalyzing},
	StepAnalyzing:     {StepResult},
	StepResult:        {StepGeneratingDoc, StepAnalyzing},
	StepGeneratingDoc: {StepDocResult},
	StepDocResult:     {StepAnalyzing, StepGeneratingDoc},
}

// Flow is one session's step machine. Safe for concurrent use; the mutex is
// what makes the duplicate-submission guard real.
type Flow struct {
	mu      sync.Mutex
	step    Step
	lastErr string
}

func New() *Flow {
	return &Flow{step: StepInput}
}

// Step returns the current step.
func (f *Flow) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// LastError returns the message from the most recent failed stage, empty
// after a successful transition.
func (f *Flow) LastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Advance moves the machine to the requested step if the edge is legal.
// A second submit while already analyzing (or generating) comes back as an
// IllegalTransitionError, which the server maps to 409.
func (f *Flow) Advance(to Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, allowed := range transitions[f.step] {
		if allowed == to {
			f.step = to
			f.lastErr = ""
			return nil
		}
	}
	return &IllegalTransitionError{From: f.step, To: to}
}

// Fail records a stage failure and falls back to the step the user retries
// from: analysis failures return to input, document failures return to the
// result the document was drafted from.
func (f *Flow) Fail(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.step {
	case StepAnalyzing:
		f.step = StepInput
	case StepGeneratingDoc:
		f.step = StepResult
	}
	f.lastErr = msg
}

// Reset returns the session to the input step, clearing any recorded error.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.step = StepInput
	f.lastErr = ""
}

// Sessions keys flows by session ID. Lookup creates on first use.
type Sessions struct {
	mu    sync.Mutex
	flows map[string]*Flow
}

func NewSessions() *Sessions {
	return &Sessions{flows: make(map[string]*Flow)}
}

func (s *Sessions) Get(id string) *Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[id]
	if !ok {
		f = New()
		s.flows[id] = f
	}
	return f
}
