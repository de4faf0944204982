// Package errdefs defines the error kinds shared by the registry and the
// cluster orchestration layer. Callers match them with errors.Is.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrConfig          = errors.New("config error")
	ErrSettings        = errors.New("settings error")
	ErrMissingImport   = errors.New("missing import")
	ErrAmbiguousTarget = errors.New("ambiguous target")
	ErrCluster         = errors.New("cluster error")
	ErrAlreadyRunning  = errors.New("already running")
	ErrNotRunning      = errors.New("not running")
)

func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func AlreadyExists(format string, args ...any) error {
	return wrap(ErrAlreadyExists, format, args...)
}

func Config(format string, args ...any) error {
	return wrap(ErrConfig, format, args...)
}

func Settings(format string, args ...any) error {
	return wrap(ErrSettings, format, args...)
}

func MissingImport(format string, args ...any) error {
	return wrap(ErrMissingImport, format, args...)
}

func AmbiguousTarget(format string, args ...any) error {
	return wrap(ErrAmbiguousTarget, format, args...)
}

func AlreadyRunning(format string, args ...any) error {
	return wrap(ErrAlreadyRunning, format, args...)
}

func NotRunning(format string, args ...any) error {
	return wrap(ErrNotRunning, format, args...)
}

// Cluster wraps a remote failure so both ErrCluster and the cause match.
func Cluster(cause error, format string, args ...any) error {
	message := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrCluster, message)
	}
	return fmt.Errorf("%w: %s: %w", ErrCluster, message, cause)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
