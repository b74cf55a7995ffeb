// Package storage implements the task persistence contract over two
// interchangeable backends: a local sqlite file and a remote relational
// database.
package storage

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"smarttodo/internal/logging"
	"smarttodo/internal/task"
)

// Backend is the data-access contract every store satisfies. Errors are
// task.ErrNotFound, *task.ValidationError or *task.OperationError.
type Backend interface {
	// List returns every task in the backend's natural order.
	List(ctx context.Context) ([]task.Task, error)

	// Create assigns the id and both timestamps.
	Create(ctx context.Context, d task.Draft) (task.Task, error)

	// Update applies only the fields present in p and refreshes UpdatedAt.
	Update(ctx context.Context, id string, p task.Patch) (task.Task, error)

	// Delete removes the task and returns it as it was.
	Delete(ctx context.Context, id string) (task.Task, error)

	Close() error
}

type Option func(*options)

type options struct {
	now func() time.Time
	log *logrus.Entry
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = logging.OrDiscard(o.log)
	return o
}

// nextUpdatedAt keeps UpdatedAt strictly increasing even when two writes
// land in the same millisecond.
func nextUpdatedAt(prev, now time.Time) time.Time {
	now = task.Canonical(now)
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}
