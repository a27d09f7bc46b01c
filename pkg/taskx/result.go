package taskx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrNoBackend    = errors.New("no result backend configured")
	ErrResultStored = errors.New("result already stored")
)

type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Result is the outcome of one task execution as kept by a ResultBackend.
type Result struct {
	TaskID string `json:"task_id"`
	Task   string `json:"task"`
	Status Status `json:"status"`
	Value  any    `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

func successResult(id, task string, value any) Result {
	return Result{TaskID: id, Task: task, Status: StatusSuccess, Value: value}
}

func failureResult(id, task string, err error) Result {
	return Result{TaskID: id, Task: task, Status: StatusFailure, Error: err.Error()}
}

// TaskError is a failure reported by a task that ran on a worker.
type TaskError struct {
	Task    string
	ID      string
	Message string
	cause   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s[%s] failed: %s", e.Task, e.ID, e.Message)
}

func (e *TaskError) Unwrap() error {
	return e.cause
}

// ResultBackend hands results from workers to the submitters waiting on them.
// Each result is delivered to a single Wait call.
type ResultBackend interface {
	Store(ctx context.Context, result Result) error
	Wait(ctx context.Context, id string) (Result, error)
}

// AsyncResult is the pending result of a submitted task.
type AsyncResult struct {
	ID   string
	Task string

	backend ResultBackend

	// waitMu serializes backend waits; mu guards the cached outcome only.
	waitMu sync.Mutex
	mu     sync.Mutex
	done   bool
	value  any
	err    error
}

func readyResult(id, task string, value any, err error) *AsyncResult {
	return &AsyncResult{ID: id, Task: task, done: true, value: value, err: err}
}

// Ready reports whether Get would return without waiting.
func (r *AsyncResult) Ready() bool {
	done, _, _ := r.outcome()
	return done
}

func (r *AsyncResult) outcome() (bool, any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done, r.value, r.err
}

// Get waits for the task to finish and returns its value. Failures of queued
// tasks come back as *TaskError. A cancelled ctx aborts the wait only; a later
// call can wait again.
func (r *AsyncResult) Get(ctx context.Context) (any, error) {
	if done, value, err := r.outcome(); done {
		return value, err
	}
	if r.backend == nil {
		return nil, ErrNoBackend
	}

	r.waitMu.Lock()
	defer r.waitMu.Unlock()

	// A concurrent Get may have collected the result while this one queued.
	if done, value, err := r.outcome(); done {
		return value, err
	}

	res, err := r.backend.Wait(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("wait for task %s[%s]: %w", r.Task, r.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
	if res.Status == StatusFailure {
		r.err = &TaskError{Task: r.Task, ID: r.ID, Message: res.Error}
		return nil, r.err
	}
	r.value = res.Value
	return r.value, nil
}

// MemoryBackend keeps results in process. It suits the gochannel broker and tests.
type MemoryBackend struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	pending map[string]*memorySlot
}

type memorySlot struct {
	ch       chan Result
	storedAt time.Time
}

type MemoryBackendArgs struct {
	// TTL bounds how long a result nobody waits for is kept.
	TTL time.Duration
}

func NewMemoryBackend(args MemoryBackendArgs) *MemoryBackend {
	if args.TTL <= 0 {
		args.TTL = defaultResultTTL
	}
	return &MemoryBackend{
		ttl:     args.TTL,
		now:     time.Now,
		pending: make(map[string]*memorySlot),
	}
}

// slot returns the slot for id, creating it when missing. Expired results
// are dropped on the way. The caller holds b.mu.
func (b *MemoryBackend) slot(id string) *memorySlot {
	now := b.now()
	for key, s := range b.pending {
		if len(s.ch) > 0 && now.Sub(s.storedAt) > b.ttl {
			delete(b.pending, key)
		}
	}

	s, ok := b.pending[id]
	if !ok {
		s = &memorySlot{ch: make(chan Result, 1)}
		b.pending[id] = s
	}
	return s
}

func (b *MemoryBackend) Store(_ context.Context, result Result) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.slot(result.TaskID)
	select {
	case s.ch <- result:
		s.storedAt = b.now()
		return nil
	default:
		return fmt.Errorf("%w: task %s", ErrResultStored, result.TaskID)
	}
}

func (b *MemoryBackend) Wait(ctx context.Context, id string) (Result, error) {
	b.mu.Lock()
	s := b.slot(id)
	b.mu.Unlock()

	select {
	case res := <-s.ch:
		b.release(id, s)
		return res, nil
	case <-ctx.Done():
		// An empty slot has no one left to fill it for; a result that
		// arrives later gets a fresh slot and expires with the TTL.
		if len(s.ch) == 0 {
			b.release(id, s)
		}
		return Result{}, ctx.Err()
	}
}

func (b *MemoryBackend) release(id string, s *memorySlot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending[id] == s {
		delete(b.pending, id)
	}
}

// size reports how many slots are held, waiting or unclaimed.
func (b *MemoryBackend) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
