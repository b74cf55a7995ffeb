package taskcache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smarttodo/internal/task"
	"smarttodo/internal/taskcache"
	"smarttodo/internal/testutil"
)

var start = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newCache(t *testing.T) (*taskcache.Cache, *testutil.FakeBackend, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(start)
	backend := testutil.NewFakeBackend(clock.Now)
	cache := taskcache.New(backend, taskcache.Options{
		Clock:      clock.Now,
		StaleTime:  30 * time.Second,
		RetryDelay: time.Millisecond,
	})
	return cache, backend, clock
}

func TestTasksServedFromCacheUntilStale(t *testing.T) {
	cache, backend, clock := newCache(t)
	backend.Add(task.Task{ID: "a", Title: "A", Deadline: start.Add(time.Hour)})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := cache.Tasks(ctx); err != nil {
			t.Fatalf("Tasks: %v", err)
		}
	}
	if got := backend.CallCount("list"); got != 1 {
		t.Errorf("list calls = %d, want 1", got)
	}

	clock.Advance(31 * time.Second)
	if _, err := cache.Tasks(ctx); err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if got := backend.CallCount("list"); got != 2 {
		t.Errorf("list calls after stale = %d, want 2", got)
	}
}

func TestMutationInvalidates(t *testing.T) {
	cache, backend, _ := newCache(t)
	ctx := context.Background()

	if _, err := cache.Tasks(ctx); err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	created, err := cache.Create(ctx, task.Draft{Title: "Pay rent", Deadline: start.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	tasks, err := cache.Tasks(ctx)
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Fatalf("Tasks after create = %+v", tasks)
	}
	if got := backend.CallCount("list"); got != 2 {
		t.Errorf("list calls = %d, want 2", got)
	}

	if _, err := cache.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	tasks, err = cache.Tasks(ctx)
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("Tasks after delete = %+v", tasks)
	}
}

func TestFailedMutationKeepsCache(t *testing.T) {
	cache, backend, _ := newCache(t)
	ctx := context.Background()
	if _, err := cache.Tasks(ctx); err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	backend.DeleteErr = task.NewOperationError("delete", errors.New("connection reset"))

	_, err := cache.Delete(ctx, "x")
	var opErr *task.OperationError
	if !errors.As(err, &opErr) || opErr.Message != "connection reset" {
		t.Fatalf("Delete error = %v", err)
	}
	if _, err := cache.Tasks(ctx); err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if got := backend.CallCount("list"); got != 1 {
		t.Errorf("list calls = %d, want 1 (cache kept)", got)
	}
}

func TestCreateValidationSkipsBackend(t *testing.T) {
	cache, backend, _ := newCache(t)
	ctx := context.Background()

	_, err := cache.Create(ctx, task.Draft{Title: "", Deadline: start.Add(time.Hour)})
	var verr *task.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := verr.Fields["title"]; !ok {
		t.Errorf("fields = %v, want title", verr.Fields)
	}
	if got := backend.CallCount("create"); got != 0 {
		t.Errorf("create calls = %d, want 0", got)
	}
	tasks, err := cache.Tasks(ctx)
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("tasks = %+v, want none", tasks)
	}
}

func TestUpdateValidationSkipsBackend(t *testing.T) {
	cache, backend, _ := newCache(t)
	long := make([]rune, task.MaxDescriptionLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := cache.Update(context.Background(), "a", task.Patch{Description: task.String(string(long))})
	if !task.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := backend.CallCount("update"); got != 0 {
		t.Errorf("update calls = %d, want 0", got)
	}
}

func TestReadRetriesOnce(t *testing.T) {
	cache, backend, _ := newCache(t)
	backend.ListErrs = []error{errors.New("timeout")}

	if _, err := cache.Tasks(context.Background()); err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if got := backend.CallCount("list"); got != 2 {
		t.Errorf("list calls = %d, want 2", got)
	}
}

func TestReadRetriesExhausted(t *testing.T) {
	cache, backend, _ := newCache(t)
	backend.ListErrs = []error{errors.New("down"), errors.New("still down")}

	_, err := cache.Tasks(context.Background())
	if err == nil || err.Error() != "still down" {
		t.Fatalf("Tasks error = %v, want last failure", err)
	}
	if got := backend.CallCount("list"); got != 2 {
		t.Errorf("list calls = %d, want 2", got)
	}
}

func TestMutationsAreNotRetried(t *testing.T) {
	cache, backend, _ := newCache(t)
	backend.CreateErr = errors.New("boom")

	if _, err := cache.Create(context.Background(), task.Draft{Title: "x", Deadline: start}); err == nil {
		t.Fatal("expected error")
	}
	if got := backend.CallCount("create"); got != 1 {
		t.Errorf("create calls = %d, want 1", got)
	}
}

func TestToggleCompletion(t *testing.T) {
	cache, backend, _ := newCache(t)
	backend.Add(task.Task{ID: "a", Title: "Ship", Deadline: start.Add(-10 * time.Minute), UpdatedAt: start.Add(-time.Hour)})
	ctx := context.Background()

	done, err := cache.ToggleCompletion(ctx, "a")
	if err != nil {
		t.Fatalf("ToggleCompletion: %v", err)
	}
	if !done.IsCompleted {
		t.Fatal("expected completed")
	}
	undone, err := cache.ToggleCompletion(ctx, "a")
	if err != nil {
		t.Fatalf("ToggleCompletion: %v", err)
	}
	if undone.IsCompleted {
		t.Fatal("expected not completed")
	}
	if _, err := cache.ToggleCompletion(ctx, "missing"); !errors.Is(err, task.ErrNotFound) {
		t.Errorf("missing id: %v", err)
	}
}

func TestSnapshotRederivesAtClock(t *testing.T) {
	cache, backend, clock := newCache(t)
	backend.Add(task.Task{ID: "a", Title: "Pay rent", Deadline: start.Add(time.Hour)})
	ctx := context.Background()

	view, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(view.Buckets.Ongoing) != 1 || len(view.Buckets.Failure) != 0 {
		t.Fatalf("buckets at start = %+v", view.Buckets)
	}

	clock.Advance(2 * time.Hour)
	view, err = cache.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !view.Now.Equal(start.Add(2 * time.Hour)) {
		t.Errorf("view.Now = %v", view.Now)
	}
	if len(view.Buckets.Failure) != 1 || len(view.Buckets.Ongoing) != 0 {
		t.Errorf("buckets after deadline = %+v", view.Buckets)
	}
	if got := task.FormatTimeDisplay(view.Buckets.Failure[0], view.Now); got != "Overdue by about 1 hour" {
		t.Errorf("display = %q", got)
	}
}

func TestRunTicksUntilCancelled(t *testing.T) {
	clock := testutil.NewClock(start)
	backend := testutil.NewFakeBackend(clock.Now)
	backend.Add(task.Task{ID: "a", Title: "A", Deadline: start.Add(time.Hour)})
	cache := taskcache.New(backend, taskcache.Options{
		Clock:           clock.Now,
		RefreshInterval: 5 * time.Millisecond,
		RefetchInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan taskcache.View, 16)
	done := make(chan struct{})
	go func() {
		cache.Run(ctx, func(v taskcache.View) {
			select {
			case ticks <- v:
			default:
			}
		})
		close(done)
	}()

	select {
	case v := <-ticks:
		if len(v.Tasks) != 1 {
			t.Errorf("tick tasks = %d, want 1", len(v.Tasks))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick received")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNegativeRetriesDisablesRetry(t *testing.T) {
	backend := testutil.NewFakeBackend(nil)
	backend.ListErrs = []error{errors.New("down")}
	cache := taskcache.New(backend, taskcache.Options{ReadRetries: -1})

	if _, err := cache.Tasks(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if got := backend.CallCount("list"); got != 1 {
		t.Errorf("list calls = %d, want 1", got)
	}
}

// holdFirstList makes the first List call block after it has read the
// tasks, until release is closed or its context ends.
func holdFirstList(backend *testutil.FakeBackend) (entered <-chan struct{}, release chan struct{}) {
	in := make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	backend.ListHook = func(ctx context.Context) error {
		first := false
		once.Do(func() { first = true })
		if !first {
			return nil
		}
		close(in)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return in, release
}

func TestReadAfterMutationSkipsInflightFetch(t *testing.T) {
	cache, backend, _ := newCache(t)
	ctx := context.Background()
	entered, release := holdFirstList(backend)
	defer func() {
		select {
		case <-release:
		default:
			close(release)
		}
	}()

	go cache.Tasks(ctx)
	<-entered

	created, err := cache.Create(ctx, task.Draft{Title: "Pay rent", Deadline: start.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	type result struct {
		tasks []task.Task
		err   error
	}
	done := make(chan result, 1)
	go func() {
		tasks, err := cache.Tasks(ctx)
		done <- result{tasks, err}
	}()

	var got result
	select {
	case got = <-done:
	case <-time.After(2 * time.Second):
		close(release)
		got = <-done
	}
	if got.err != nil {
		t.Fatalf("Tasks: %v", got.err)
	}
	if len(got.tasks) != 1 || got.tasks[0].ID != created.ID {
		t.Errorf("Tasks after create = %+v, want the created task", got.tasks)
	}
	if n := backend.CallCount("list"); n != 2 {
		t.Errorf("list calls = %d, want 2", n)
	}
}

func TestCancelledReaderDoesNotFailOthers(t *testing.T) {
	cache, backend, _ := newCache(t)
	backend.Add(task.Task{ID: "a", Title: "A", Deadline: start.Add(time.Hour)})
	entered, release := holdFirstList(backend)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := cache.Tasks(ctxA)
		errA <- err
	}()
	<-entered

	type result struct {
		tasks []task.Task
		err   error
	}
	doneB := make(chan result, 1)
	go func() {
		tasks, err := cache.Tasks(context.Background())
		doneB <- result{tasks, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled reader err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled reader did not return")
	}

	close(release)
	select {
	case got := <-doneB:
		if got.err != nil {
			t.Fatalf("second reader err = %v", got.err)
		}
		if len(got.tasks) != 1 {
			t.Errorf("second reader tasks = %+v", got.tasks)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second reader did not return")
	}
}
