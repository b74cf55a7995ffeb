package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"smarttodo/internal/task"
)

// CollectionKey is the single kv row holding the whole task list.
const CollectionKey = "smart-todo-tasks"

// LocalStore keeps every task as one JSON document in a sqlite kv table.
// Each mutation rewrites the document inside a transaction, so a crash
// leaves either the old list or the new one.
type LocalStore struct {
	db  *sql.DB
	now func() time.Time
	log *logrus.Entry
}

func OpenLocal(dbPath string, opts ...Option) (*LocalStore, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	o := buildOptions(opts)
	s := &LocalStore{db: db, now: o.now, log: o.log.WithField("backend", "local")}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *LocalStore) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`
	_, err := s.db.Exec(ddl)
	return err
}

// Seed writes samples only when nothing has ever been stored.
func (s *LocalStore) Seed(ctx context.Context, samples []task.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv WHERE key = ?;`, CollectionKey).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if err := s.save(ctx, tx, samples); err != nil {
		return err
	}
	s.log.WithField("count", len(samples)).Info("seeded sample tasks")
	return tx.Commit()
}

func (s *LocalStore) List(ctx context.Context) ([]task.Task, error) {
	tasks, err := s.load(ctx, s.db)
	if err != nil {
		return nil, task.NewOperationError("list", err)
	}
	return tasks, nil
}

func (s *LocalStore) Create(ctx context.Context, d task.Draft) (task.Task, error) {
	if err := d.Validate(); err != nil {
		return task.Task{}, err
	}
	now := task.Canonical(s.now())
	created := task.Task{
		ID:          uuid.NewString(),
		Title:       d.Title,
		Description: d.Description,
		Deadline:    task.Canonical(d.Deadline),
		IsCompleted: false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.mutate(ctx, "create", func(tasks []task.Task) ([]task.Task, error) {
		return append(tasks, created), nil
	})
	if err != nil {
		return task.Task{}, err
	}
	s.log.WithField("id", created.ID).Debug("task created")
	return created, nil
}

func (s *LocalStore) Update(ctx context.Context, id string, p task.Patch) (task.Task, error) {
	if err := p.Validate(); err != nil {
		return task.Task{}, err
	}
	var updated task.Task
	err := s.mutate(ctx, "update", func(tasks []task.Task) ([]task.Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, task.ErrNotFound
		}
		t := p.Apply(tasks[i])
		t.Deadline = task.Canonical(t.Deadline)
		t.UpdatedAt = nextUpdatedAt(tasks[i].UpdatedAt, s.now())
		tasks[i] = t
		updated = t
		return tasks, nil
	})
	if err != nil {
		return task.Task{}, err
	}
	s.log.WithField("id", id).Debug("task updated")
	return updated, nil
}

func (s *LocalStore) Delete(ctx context.Context, id string) (task.Task, error) {
	var deleted task.Task
	err := s.mutate(ctx, "delete", func(tasks []task.Task) ([]task.Task, error) {
		i := indexOf(tasks, id)
		if i < 0 {
			return nil, task.ErrNotFound
		}
		deleted = tasks[i]
		return append(tasks[:i], tasks[i+1:]...), nil
	})
	if err != nil {
		return task.Task{}, err
	}
	s.log.WithField("id", id).Debug("task deleted")
	return deleted, nil
}

// mutate loads the collection, lets fn edit it and writes the whole thing
// back in the same transaction.
func (s *LocalStore) mutate(ctx context.Context, op string, fn func([]task.Task) ([]task.Task, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return task.NewOperationError(op, err)
	}
	defer tx.Rollback()

	tasks, err := s.load(ctx, tx)
	if err != nil {
		return task.NewOperationError(op, err)
	}
	tasks, err = fn(tasks)
	if err != nil {
		return err
	}
	if err := s.save(ctx, tx, tasks); err != nil {
		return task.NewOperationError(op, err)
	}
	if err := tx.Commit(); err != nil {
		return task.NewOperationError(op, err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *LocalStore) load(ctx context.Context, q querier) ([]task.Task, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?;`, CollectionKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []task.Task{}, nil
	}
	if err != nil {
		return nil, err
	}
	var tasks []task.Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return nil, fmt.Errorf("decode %s: %w", CollectionKey, err)
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return tasks, nil
}

func (s *LocalStore) save(ctx context.Context, tx *sql.Tx, tasks []task.Task) error {
	if tasks == nil {
		tasks = []task.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`,
		CollectionKey, string(data), task.FormatTimestamp(s.now()))
	return err
}

func indexOf(tasks []task.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}

// SampleTasks is the starter list offered on first launch, anchored at now.
func SampleTasks(now time.Time) []task.Task {
	now = task.Canonical(now)
	mk := func(title, desc string, offset time.Duration, done bool) task.Task {
		return task.Task{
			ID:          uuid.NewString(),
			Title:       title,
			Description: desc,
			Deadline:    now.Add(offset),
			IsCompleted: done,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return []task.Task{
		mk("Complete project documentation", "Write comprehensive documentation for the project", 2*time.Hour, false),
		mk("Review code changes", "Review pull requests and provide feedback", 24*time.Hour, false),
		mk("Setup development environment", "Install and configure all necessary tools", -2*time.Hour, true),
		mk("Fix critical bug", "Address the authentication issue in production", -24*time.Hour, false),
	}
}
