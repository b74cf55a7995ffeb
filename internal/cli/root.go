// Package cli wires configuration, logging and the task cache into the
// smarttodo command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"smarttodo/internal/config"
	"smarttodo/internal/logging"
	"smarttodo/internal/storage"
	"smarttodo/internal/taskcache"
	"smarttodo/internal/ui"
)

// BackendFactory opens the storage backend for a loaded config.
type BackendFactory func(ctx context.Context, cfg config.Config, log *logrus.Entry) (storage.Backend, error)

func defaultBackendFactory(ctx context.Context, cfg config.Config, log *logrus.Entry) (storage.Backend, error) {
	return storage.Open(ctx, cfg, log)
}

type App struct {
	Out         io.Writer
	Err         io.Writer
	OpenBackend BackendFactory
	Now         func() time.Time

	configPath string
	cfg        config.Config
	log        *logrus.Entry
	closers    []io.Closer
}

func NewApp() *App {
	return &App{
		Out:         os.Stdout,
		Err:         os.Stderr,
		OpenBackend: defaultBackendFactory,
		Now:         time.Now,
	}
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil
}

// load reads the config and starts logging. Called once per invocation.
func (a *App) load() error {
	path := a.configPath
	if path == "" {
		path = config.ResolveConfigPath()
	}
	a.configPath = path

	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return withCode(ConfigError, fmt.Errorf("load config: %w", err))
	}
	a.cfg = cfg

	log, closer, err := logging.Setup(cfg.Env, cfg.LogFile)
	if err != nil {
		return withCode(ConfigError, fmt.Errorf("open log file: %w", err))
	}
	a.closers = append(a.closers, closer)
	a.log = log
	return nil
}

// session opens the configured backend and puts a cache in front of it.
func (a *App) session(ctx context.Context) (*taskcache.Cache, error) {
	backend, err := a.OpenBackend(ctx, a.cfg, a.log)
	if err != nil {
		return nil, withCode(BackendError, fmt.Errorf("open backend: %w", err))
	}
	a.closers = append(a.closers, backend)

	retries := a.cfg.ReadRetries
	if retries == 0 {
		retries = -1
	}
	return taskcache.New(backend, taskcache.Options{
		Clock:           a.Now,
		StaleTime:       a.cfg.Stale(),
		RefreshInterval: a.cfg.RefreshEvery(),
		RefetchInterval: a.cfg.RefetchEvery(),
		ReadRetries:     retries,
		Logger:          a.log,
	}), nil
}

func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "smarttodo",
		Short: "Deadline-aware task tracker",
		Long: `smarttodo tracks tasks with deadlines and sorts them into active,
completed and overdue buckets as time passes.

Without a subcommand it opens the terminal UI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := app.session(cmd.Context())
			if err != nil {
				return err
			}
			return ui.Run(cmd.Context(), cache, app.cfg)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Path to config file")
	rootCmd.SetOut(app.Out)
	rootCmd.SetErr(app.Err)

	rootCmd.AddCommand(newListCmd(app))
	rootCmd.AddCommand(newSearchCmd(app))
	rootCmd.AddCommand(newAddCmd(app))
	rootCmd.AddCommand(newEditCmd(app))
	rootCmd.AddCommand(newDoneCmd(app))
	rootCmd.AddCommand(newRmCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))
	return rootCmd
}

// Execute runs the command tree and returns the process exit code.
func Execute(version string) int {
	app := NewApp()
	defer app.Close()

	rootCmd := NewRootCmd(app)
	rootCmd.Version = version
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(app.Err, "Error:", describe(err))
		return ExitCode(err)
	}
	return Success
}

func describe(err error) string {
	var ee *exitError
	if errors.As(err, &ee) {
		err = ee.err
	}
	return err.Error()
}
