package runner

import (
	"context"
	"sync"
)

// Call is one recorded invocation.
type Call struct {
	Program string
	Args    []string
}

// Recorder is a Runner for tests. It records every call and delegates to
// Handle, when set, to emulate the collaborator's side effects.
type Recorder struct {
	Handle func(call Call) error

	mu    sync.Mutex
	Calls []Call
}

// Run implements Runner.
func (r *Recorder) Run(_ context.Context, program string, args ...string) error {
	call := Call{Program: program, Args: append([]string(nil), args...)}

	r.mu.Lock()
	r.Calls = append(r.Calls, call)
	r.mu.Unlock()

	if r.Handle != nil {
		return r.Handle(call)
	}
	return nil
}
