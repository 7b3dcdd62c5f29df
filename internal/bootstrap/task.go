package bootstrap

import (
	"context"
	"sync"

	"portico/internal/assets"
	"portico/internal/registry"
	"portico/internal/session"
)

// TaskState is the lifecycle of a background bootstrap chain.
type TaskState int

const (
	// TaskLoading means the chain is still running.
	TaskLoading TaskState = iota
	// TaskDone means the chain completed and a Result is available.
	TaskDone
	// TaskError means the chain failed; Err holds the cause.
	TaskError
)

// String returns the state name.
func (s TaskState) String() string {
	switch s {
	case TaskLoading:
		return "loading"
	case TaskDone:
		return "done"
	case TaskError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is what a completed bootstrap chain produced.
type Result struct {
	Session    *session.Session
	Resolution *registry.Resolution
	HostAssets *assets.AssetSet
}

// Task is an explicit handle on the fire-and-forget chain that runs after
// a token exchange: session creation, module resolution, asset loading.
// Callers poll State for progress display or Wait for completion; the
// chain's failure is held on the task, never lost.
type Task struct {
	mu     sync.Mutex
	state  TaskState
	result *Result
	err    error
	done   chan struct{}
}

// StartTask runs fn in a goroutine and returns its handle immediately.
func StartTask(ctx context.Context, fn func(context.Context) (*Result, error)) *Task {
	t := &Task{state: TaskLoading, done: make(chan struct{})}

	go func() {
		result, err := fn(ctx)

		t.mu.Lock()
		if err != nil {
			t.state = TaskError
			t.err = err
		} else {
			t.state = TaskDone
			t.result = result
		}
		t.mu.Unlock()

		close(t.done)
	}()

	return t
}

// State returns the current task state.
func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done is closed when the chain finishes, success or failure.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the chain finishes or the context expires, then
// returns the result or the chain's error.
func (t *Task) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}
