package cli

import (
	"errors"

	"smarttodo/internal/task"
)

// Exit codes.
const (
	// Success indicates successful completion.
	Success = 0

	// UserError covers bad arguments, validation failures and unknown ids.
	UserError = 1

	// ConfigError indicates the configuration could not be loaded.
	ConfigError = 2

	// BackendError indicates the storage backend failed.
	BackendError = 3
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// ExitCode classifies err for the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return Success
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if task.IsValidation(err) || errors.Is(err, task.ErrNotFound) {
		return UserError
	}
	var opErr *task.OperationError
	var parseErr *task.ParseError
	if errors.As(err, &opErr) || errors.As(err, &parseErr) {
		return BackendError
	}
	return UserError
}
