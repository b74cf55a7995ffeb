// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smarttodo/internal/task"
)

// FakeBackend is an in-memory implementation of storage.Backend.
type FakeBackend struct {
	mu    sync.Mutex
	tasks []task.Task
	seq   int
	now   func() time.Time

	// Error injection. ListErrs is consumed one entry per List call, so a
	// test can fail the first read and let the retry succeed.
	ListErrs  []error
	CreateErr error
	UpdateErr error
	DeleteErr error

	// ListHook, when set, runs after List has copied the tasks and before
	// it returns, outside the lock. A non-nil error fails the call.
	ListHook func(ctx context.Context) error

	Calls map[string]int
}

func NewFakeBackend(now func() time.Time) *FakeBackend {
	if now == nil {
		now = time.Now
	}
	return &FakeBackend{now: now, Calls: make(map[string]int)}
}

// Add stores t as-is, bypassing validation.
func (f *FakeBackend) Add(t task.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, t)
}

// CallCount reports how many times op was invoked.
func (f *FakeBackend) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[op]
}

func (f *FakeBackend) List(ctx context.Context) ([]task.Task, error) {
	out, hook, err := f.snapshot()
	if err != nil {
		return nil, err
	}
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *FakeBackend) snapshot() ([]task.Task, func(context.Context) error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["list"]++
	if len(f.ListErrs) > 0 {
		err := f.ListErrs[0]
		f.ListErrs = f.ListErrs[1:]
		if err != nil {
			return nil, nil, err
		}
	}
	out := make([]task.Task, len(f.tasks))
	copy(out, f.tasks)
	return out, f.ListHook, nil
}

func (f *FakeBackend) Create(ctx context.Context, d task.Draft) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["create"]++
	if f.CreateErr != nil {
		return task.Task{}, f.CreateErr
	}
	if err := d.Validate(); err != nil {
		return task.Task{}, err
	}
	f.seq++
	now := task.Canonical(f.now())
	t := task.Task{
		ID:          fmt.Sprintf("task-%d", f.seq),
		Title:       d.Title,
		Description: d.Description,
		Deadline:    task.Canonical(d.Deadline),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.tasks = append(f.tasks, t)
	return t, nil
}

func (f *FakeBackend) Update(ctx context.Context, id string, p task.Patch) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["update"]++
	if f.UpdateErr != nil {
		return task.Task{}, f.UpdateErr
	}
	if err := p.Validate(); err != nil {
		return task.Task{}, err
	}
	for i, t := range f.tasks {
		if t.ID == id {
			updated := p.Apply(t)
			updated.UpdatedAt = task.Canonical(f.now())
			if !updated.UpdatedAt.After(t.UpdatedAt) {
				updated.UpdatedAt = t.UpdatedAt.Add(time.Millisecond)
			}
			f.tasks[i] = updated
			return updated, nil
		}
	}
	return task.Task{}, task.ErrNotFound
}

func (f *FakeBackend) Delete(ctx context.Context, id string) (task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["delete"]++
	if f.DeleteErr != nil {
		return task.Task{}, f.DeleteErr
	}
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return t, nil
		}
	}
	return task.Task{}, task.ErrNotFound
}

func (f *FakeBackend) Close() error { return nil }
