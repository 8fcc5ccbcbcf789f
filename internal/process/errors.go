package process

import "errors"

var (
	// ErrAlreadyRunning is returned by Start on a running manager.
	ErrAlreadyRunning = errors.New("process: already running")

	// ErrExited is reported when the daemon exits with status 0 on its own.
	ErrExited = errors.New("process: exited")

	// ErrUnhealthy is reported when the watchdog kills the daemon.
	ErrUnhealthy = errors.New("process: health check failed")
)
