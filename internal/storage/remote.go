package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"smarttodo/internal/task"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DefaultRemoteTimeout = 5 * time.Second
)

type RemoteConfig struct {
	Driver      string
	DSN         string
	Timeout     time.Duration
	AutoMigrate bool
}

// RemoteStore talks to a relational "tasks" table through gorm. Every call
// gets its own deadline so a stalled database cannot hang the UI.
type RemoteStore struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
	log     *logrus.Entry
}

func OpenRemote(ctx context.Context, rc RemoteConfig, opts ...Option) (*RemoteStore, error) {
	const op = "storage.OpenRemote"

	o := buildOptions(opts)
	log := o.log.WithFields(logrus.Fields{"backend": "remote", "driver": rc.Driver})

	dialector, err := dialectorFor(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rc.Driver == DriverSQLite {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	timeout := rc.Timeout
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	s := &RemoteStore{db: db, timeout: timeout, now: o.now, log: log}

	if rc.AutoMigrate {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := db.WithContext(ctx).AutoMigrate(&record{}); err != nil {
			s.Close()
			return nil, fmt.Errorf("%s: migrate: %w", op, err)
		}
	}
	log.Info("remote backend ready")
	return s, nil
}

func dialectorFor(rc RemoteConfig) (gorm.Dialector, error) {
	switch rc.Driver {
	case "", DriverPostgres:
		return postgres.New(postgres.Config{
			DriverName: "postgres",
			DSN:        rc.DSN,
		}), nil
	case DriverSQLite:
		return gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        sqliteDSN(rc.DSN),
		}), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", rc.Driver)
	}
}

func gormLogger(log *logrus.Entry) logger.Interface {
	level := logger.Warn
	if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		level = logger.Info
	}
	return logger.New(log, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

func (s *RemoteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *RemoteStore) List(ctx context.Context) ([]task.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []record
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, s.wrap("list", err)
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		t, err := fromRecord(r)
		if err != nil {
			return nil, s.wrap("list", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *RemoteStore) Create(ctx context.Context, d task.Draft) (task.Task, error) {
	if err := d.Validate(); err != nil {
		return task.Task{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := task.Canonical(s.now())
	rec := toRecord(task.Task{
		Title:       d.Title,
		Description: d.Description,
		Deadline:    d.Deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	db := s.db.WithContext(ctx)
	if err := db.Create(&rec).Error; err != nil {
		return task.Task{}, s.wrap("create", err)
	}
	return s.reload(db, "create", rec.ID)
}

func (s *RemoteStore) Update(ctx context.Context, id string, p task.Patch) (task.Task, error) {
	if err := p.Validate(); err != nil {
		return task.Task{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	db := s.db.WithContext(ctx)

	var prev record
	if err := db.Where("id = ?", id).First(&prev).Error; err != nil {
		return task.Task{}, s.wrap("update", err)
	}
	prevUpdated, err := task.ParseTimestamp("updated_at", prev.UpdatedAt)
	if err != nil {
		return task.Task{}, s.wrap("update", err)
	}

	res := db.Model(&record{}).Where("id = ?", id).Updates(patchColumns(p, nextUpdatedAt(prevUpdated, s.now())))
	if res.Error != nil {
		return task.Task{}, s.wrap("update", res.Error)
	}
	if res.RowsAffected == 0 {
		return task.Task{}, task.ErrNotFound
	}
	return s.reload(db, "update", id)
}

func (s *RemoteStore) Delete(ctx context.Context, id string) (task.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	db := s.db.WithContext(ctx)

	deleted, err := s.reload(db, "delete", id)
	if err != nil {
		return task.Task{}, err
	}
	res := db.Where("id = ?", id).Delete(&record{})
	if res.Error != nil {
		return task.Task{}, s.wrap("delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return task.Task{}, task.ErrNotFound
	}
	return deleted, nil
}

func (s *RemoteStore) reload(db *gorm.DB, op, id string) (task.Task, error) {
	var rec record
	if err := db.Where("id = ?", id).First(&rec).Error; err != nil {
		return task.Task{}, s.wrap(op, err)
	}
	t, err := fromRecord(rec)
	if err != nil {
		return task.Task{}, s.wrap(op, err)
	}
	return t, nil
}

func (s *RemoteStore) wrap(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return task.ErrNotFound
	}
	s.log.WithField("operation", op).WithError(err).Warn("remote call failed")
	return task.NewOperationError(op, err)
}
