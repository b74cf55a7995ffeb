package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"smarttodo/internal/config"
)

// Open picks the backend once from cfg. There is no fallback from remote to
// local at runtime.
func Open(ctx context.Context, cfg config.Config, log *logrus.Entry, opts ...Option) (Backend, error) {
	opts = append([]Option{WithLogger(log)}, opts...)

	if cfg.Remote.Enabled {
		if cfg.Remote.DSN == "" {
			return nil, errors.New("remote backend enabled without a dsn")
		}
		remote, err := OpenRemote(ctx, RemoteConfig{
			Driver:      cfg.Remote.Driver,
			DSN:         cfg.Remote.DSN,
			Timeout:     cfg.RemoteTimeout(),
			AutoMigrate: cfg.Remote.AutoMigrate,
		}, opts...)
		if err != nil {
			return nil, err
		}
		return remote, nil
	}

	local, err := OpenLocal(cfg.DBPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("open local store %s: %w", cfg.DBPath, err)
	}
	if cfg.Local.SeedSamples {
		if err := local.Seed(ctx, SampleTasks(local.now())); err != nil {
			local.Close()
			return nil, fmt.Errorf("seed local store: %w", err)
		}
	}
	return local, nil
}
