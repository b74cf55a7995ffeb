// Package taskcache holds the single cached task list shared by every
// surface, and the policy that keeps it fresh: reads are served from the
// cache until it goes stale, every successful mutation invalidates it, and
// a background loop re-derives statuses as the clock moves.
package taskcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"smarttodo/internal/logging"
	"smarttodo/internal/storage"
	"smarttodo/internal/task"
)

// ListKey names the one cached query.
const ListKey = "tasks/list"

const (
	DefaultStaleTime       = 30 * time.Second
	DefaultRefreshInterval = time.Minute
	DefaultRefetchInterval = time.Minute
	DefaultReadRetries     = 1
	DefaultRetryDelay      = time.Second
	DefaultFetchTimeout    = 30 * time.Second
	maxRetryDelay          = 30 * time.Second
)

type Options struct {
	Clock           func() time.Time
	StaleTime       time.Duration
	RefreshInterval time.Duration
	RefetchInterval time.Duration
	// ReadRetries is the number of extra attempts after a failed List.
	// Zero means the default; negative disables retrying.
	ReadRetries int
	RetryDelay  time.Duration
	// FetchTimeout bounds a shared list fetch, which outlives the
	// cancellation of any single caller.
	FetchTimeout time.Duration
	Logger       *logrus.Entry
}

func DefaultOptions() Options {
	return Options{
		Clock:           time.Now,
		StaleTime:       DefaultStaleTime,
		RefreshInterval: DefaultRefreshInterval,
		RefetchInterval: DefaultRefetchInterval,
		ReadRetries:     DefaultReadRetries,
		RetryDelay:      DefaultRetryDelay,
		FetchTimeout:    DefaultFetchTimeout,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Clock == nil {
		o.Clock = d.Clock
	}
	if o.StaleTime <= 0 {
		o.StaleTime = d.StaleTime
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = d.RefreshInterval
	}
	if o.RefetchInterval <= 0 {
		o.RefetchInterval = d.RefetchInterval
	}
	switch {
	case o.ReadRetries == 0:
		o.ReadRetries = d.ReadRetries
	case o.ReadRetries < 0:
		o.ReadRetries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = d.RetryDelay
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = d.FetchTimeout
	}
	o.Logger = logging.OrDiscard(o.Logger)
	return o
}

// View is the task list as seen at one instant.
type View struct {
	Now     time.Time
	Tasks   []task.Task
	Buckets task.Buckets
}

type Cache struct {
	backend storage.Backend
	opts    Options
	log     *logrus.Entry
	group   singleflight.Group

	mu        sync.Mutex
	tasks     []task.Task
	fetchedAt time.Time
	valid     bool
	gen       uint64
}

func New(backend storage.Backend, opts Options) *Cache {
	opts = opts.withDefaults()
	return &Cache{
		backend: backend,
		opts:    opts,
		log:     opts.Logger.WithField("component", "taskcache"),
	}
}

// Tasks returns the cached list, fetching it when invalid or stale.
// Concurrent readers of one generation share a fetch; a reader arriving
// after an invalidation never joins a fetch that started before it.
func (c *Cache) Tasks(ctx context.Context) ([]task.Task, error) {
	c.mu.Lock()
	if c.valid && c.opts.Clock().Sub(c.fetchedAt) < c.opts.StaleTime {
		out := clone(c.tasks)
		c.mu.Unlock()
		return out, nil
	}
	gen := c.gen
	c.mu.Unlock()

	ch := c.group.DoChan(fmt.Sprintf("%s/%d", ListKey, gen), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.FetchTimeout)
		defer cancel()
		return c.fetch(fetchCtx, gen)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]task.Task)), nil
	}
}

func (c *Cache) fetch(ctx context.Context, gen uint64) ([]task.Task, error) {
	const op = "taskcache.fetch"

	tasks, err := c.listWithRetry(ctx)
	if err != nil {
		c.log.WithField("operation", op).WithError(err).Warn("fetch failed")
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// An invalidation that raced with this fetch means the result may
	// predate the mutation; hand it out but do not cache it.
	if gen == c.gen {
		c.tasks = tasks
		c.fetchedAt = c.opts.Clock()
		c.valid = true
	}
	return tasks, nil
}

func (c *Cache) listWithRetry(ctx context.Context) ([]task.Task, error) {
	delay := c.opts.RetryDelay
	var err error
	for attempt := 0; ; attempt++ {
		var tasks []task.Task
		tasks, err = c.backend.List(ctx)
		if err == nil {
			return tasks, nil
		}
		if attempt >= c.opts.ReadRetries {
			return nil, err
		}
		c.log.WithError(err).WithField("attempt", attempt+1).Debug("retrying list")
		select {
		case <-ctx.Done():
			return nil, errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
		delay = min(2*delay, maxRetryDelay)
	}
}

// Invalidate marks the cached list stale so the next read refetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.gen++
}

func (c *Cache) Create(ctx context.Context, d task.Draft) (task.Task, error) {
	if err := d.Validate(); err != nil {
		return task.Task{}, err
	}
	created, err := c.backend.Create(ctx, d)
	if err != nil {
		return task.Task{}, err
	}
	c.Invalidate()
	c.log.WithField("id", created.ID).Info("task created")
	return created, nil
}

func (c *Cache) Update(ctx context.Context, id string, p task.Patch) (task.Task, error) {
	if err := p.Validate(); err != nil {
		return task.Task{}, err
	}
	updated, err := c.backend.Update(ctx, id, p)
	if err != nil {
		return task.Task{}, err
	}
	c.Invalidate()
	c.log.WithField("id", id).Info("task updated")
	return updated, nil
}

func (c *Cache) Delete(ctx context.Context, id string) (task.Task, error) {
	deleted, err := c.backend.Delete(ctx, id)
	if err != nil {
		return task.Task{}, err
	}
	c.Invalidate()
	c.log.WithField("id", id).Info("task deleted")
	return deleted, nil
}

// ToggleCompletion flips IsCompleted on the task as currently cached.
func (c *Cache) ToggleCompletion(ctx context.Context, id string) (task.Task, error) {
	tasks, err := c.Tasks(ctx)
	if err != nil {
		return task.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return c.Update(ctx, id, task.Patch{IsCompleted: task.Bool(!t.IsCompleted)})
		}
	}
	return task.Task{}, task.ErrNotFound
}

// Find returns the cached task with the given id.
func (c *Cache) Find(ctx context.Context, id string) (task.Task, error) {
	tasks, err := c.Tasks(ctx)
	if err != nil {
		return task.Task{}, err
	}
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return task.Task{}, task.ErrNotFound
}

// Snapshot samples the clock once and derives buckets from the list.
func (c *Cache) Snapshot(ctx context.Context) (View, error) {
	tasks, err := c.Tasks(ctx)
	if err != nil {
		return View{}, err
	}
	now := c.opts.Clock()
	return View{Now: now, Tasks: tasks, Buckets: task.Bucketize(tasks, now)}, nil
}

// Run calls onTick with a fresh View every RefreshInterval, and drops the
// cached list every RefetchInterval, until ctx is done.
func (c *Cache) Run(ctx context.Context, onTick func(View)) {
	refresh := time.NewTicker(c.opts.RefreshInterval)
	defer refresh.Stop()
	refetch := time.NewTicker(c.opts.RefetchInterval)
	defer refetch.Stop()

	emit := func() {
		view, err := c.Snapshot(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.log.WithError(err).Warn("periodic refresh failed")
			}
			return
		}
		onTick(view)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			emit()
		case <-refetch.C:
			c.Invalidate()
			emit()
		}
	}
}

func clone(tasks []task.Task) []task.Task {
	out := make([]task.Task, len(tasks))
	copy(out, tasks)
	return out
}
