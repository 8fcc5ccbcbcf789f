package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

const (
	// maxHealthFailures consecutive failed checks kill the daemon.
	maxHealthFailures = 3

	healthCheckTimeout = 5 * time.Second

	// waitDelay bounds how long Wait blocks on output pipes held open by
	// grandchildren after the daemon itself exited.
	waitDelay = time.Second
)

// Config holds configuration for a managed daemon.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	Binary string
	Args   []string

	// RestartOnFailure enables automatic restart when the daemon exits unexpectedly.
	RestartOnFailure bool

	// RestartDelay is the first backoff delay; it doubles per attempt up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// StableThreshold is the uptime after which the backoff resets.
	StableThreshold time.Duration

	// MaxRestartAttempts limits restart attempts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// HealthCheck is called every HealthCheckInterval while the daemon runs.
	// Nil disables the watchdog.
	HealthCheck         func(ctx context.Context) error
	HealthCheckInterval time.Duration

	// OnStart is called each time the daemon is (re)started.
	OnStart func()

	// OnStop is called when the daemon stops. err is nil for a requested stop.
	OnStop func(err error)

	// OnRestart is called before each restart attempt.
	OnRestart func(attempt int)
}

// Logger defines the logging interface for the process manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager supervises one daemon.
type Manager struct {
	cfg    Config
	logger Logger

	mu        sync.RWMutex
	cmd       *exec.Cmd
	exitCh    chan error
	status    Status
	restarts  int
	lastErr   error
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewManager creates a manager, filling zero durations with defaults.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay == 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.MaxRestartDelay == 0 {
		cfg.MaxRestartDelay = 5 * time.Minute
	}
	if cfg.StableThreshold == 0 {
		cfg.StableThreshold = 2 * time.Minute
	}
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}

	return &Manager{
		cfg:    cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger. Call before Start.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start launches the daemon and supervises it until Stop or ctx is done.
// An error is returned only if the first launch fails.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, m.cfg.Name)
	}
	m.status = StatusStarting
	m.mu.Unlock()

	if err := m.spawn(); err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastErr = err
		m.mu.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	go m.supervise(runCtx, done)
	return nil
}

// spawn starts one instance of the daemon in its own process group.
func (m *Manager) spawn() error {
	m.logger.Info("starting process", "name", m.cfg.Name, "binary", m.cfg.Binary, "args", m.cfg.Args)

	cmd := exec.Command(m.cfg.Binary, m.cfg.Args...) //nolint:gosec // Binary comes from validated config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = &lineWriter{logger: m.logger, name: m.cfg.Name, stream: "stdout"}
	cmd.Stderr = &lineWriter{logger: m.logger, name: m.cfg.Name, stream: "stderr"}
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", m.cfg.Name, err)
	}

	exitCh := make(chan error, 1)
	go func() { exitCh <- cmd.Wait() }()

	m.mu.Lock()
	m.cmd = cmd
	m.exitCh = exitCh
	m.status = StatusRunning
	m.startedAt = time.Now()
	m.mu.Unlock()

	m.logger.Info("process started", "name", m.cfg.Name, "pid", cmd.Process.Pid)

	if m.cfg.OnStart != nil {
		m.cfg.OnStart()
	}
	return nil
}

// supervise waits on the daemon and restarts it until ctx is cancelled.
func (m *Manager) supervise(ctx context.Context, done chan struct{}) {
	defer close(done)

	delay := m.cfg.RestartDelay
	for {
		err := m.wait(ctx)
		if ctx.Err() != nil {
			m.setStatus(StatusStopped)
			m.logger.Info("process stopped", "name", m.cfg.Name)
			if m.cfg.OnStop != nil {
				m.cfg.OnStop(nil)
			}
			return
		}

		m.mu.Lock()
		uptime := time.Since(m.startedAt)
		m.status = StatusFailed
		m.lastErr = err
		m.mu.Unlock()

		m.logger.Warn("process exited unexpectedly", "name", m.cfg.Name, "error", err, "uptime", uptime)
		if m.cfg.OnStop != nil {
			m.cfg.OnStop(err)
		}

		if !m.cfg.RestartOnFailure {
			return
		}
		if uptime >= m.cfg.StableThreshold {
			delay = m.cfg.RestartDelay
		}

		for {
			m.mu.Lock()
			m.restarts++
			attempt := m.restarts
			m.mu.Unlock()

			if m.cfg.MaxRestartAttempts > 0 && attempt > m.cfg.MaxRestartAttempts {
				m.logger.Error("max restart attempts reached", "name", m.cfg.Name, "attempts", attempt-1)
				return
			}
			if m.cfg.OnRestart != nil {
				m.cfg.OnRestart(attempt)
			}
			m.logger.Info("restarting process", "name", m.cfg.Name, "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				m.setStatus(StatusStopped)
				return
			case <-time.After(delay):
			}
			delay = calculateBackoffDelay(delay, m.cfg.MaxRestartDelay)

			if err := m.spawn(); err != nil {
				m.logger.Error("failed to restart process", "name", m.cfg.Name, "error", err)
				m.mu.Lock()
				m.lastErr = err
				m.mu.Unlock()
				continue
			}
			break
		}
	}
}

// wait blocks until the daemon exits, the watchdog kills it, or ctx is
// done (in which case the daemon is terminated first).
func (m *Manager) wait(ctx context.Context) error {
	m.mu.RLock()
	cmd, exitCh := m.cmd, m.exitCh
	m.mu.RUnlock()

	var tick <-chan time.Time
	if m.cfg.HealthCheck != nil {
		ticker := time.NewTicker(m.cfg.HealthCheckInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	failures := 0
	for {
		select {
		case err := <-exitCh:
			if err == nil {
				err = ErrExited
			}
			return err

		case <-ctx.Done():
			m.terminate(cmd, exitCh)
			return ctx.Err()

		case <-tick:
			checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			err := m.cfg.HealthCheck(checkCtx)
			cancel()

			if err == nil {
				failures = 0
				continue
			}
			failures++
			m.logger.Warn("health check failed", "name", m.cfg.Name, "error", err, "consecutive_failures", failures)
			if failures < maxHealthFailures {
				continue
			}

			m.logger.Error("health check failed repeatedly, killing process", "name", m.cfg.Name)
			signalGroup(cmd, syscall.SIGKILL)
			<-exitCh
			return fmt.Errorf("%w: %w", ErrUnhealthy, err)
		}
	}
}

// terminate sends SIGTERM, then SIGKILL after GracefulTimeout.
func (m *Manager) terminate(cmd *exec.Cmd, exitCh <-chan error) {
	m.logger.Info("stopping process", "name", m.cfg.Name, "pid", cmd.Process.Pid)
	signalGroup(cmd, syscall.SIGTERM)

	select {
	case <-exitCh:
		return
	case <-time.After(m.cfg.GracefulTimeout):
	}

	m.logger.Warn("graceful shutdown timeout, sending SIGKILL", "name", m.cfg.Name, "timeout", m.cfg.GracefulTimeout)
	signalGroup(cmd, syscall.SIGKILL)
	<-exitCh
}

// signalGroup signals the daemon's whole process group.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		_ = cmd.Process.Signal(sig) //nolint:errcheck // Fallback when the group is gone
	}
}

// Stop terminates the daemon and waits for supervision to end.
func (m *Manager) Stop() error {
	m.mu.RLock()
	cancel, done := m.cancel, m.done
	m.mu.RUnlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

// calculateBackoffDelay doubles current, capped at limit.
func calculateBackoffDelay(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit || next <= 0 {
		return limit
	}
	return next
}

// Status returns the current status of the managed process.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning returns true if the daemon is currently running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// LastError returns the error that ended the most recent run.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// RestartCount returns the number of restart attempts so far.
func (m *Manager) RestartCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.restarts
}

// PID returns the process ID of the current instance, or 0 if not running.
func (m *Manager) PID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == StatusRunning && m.cmd != nil && m.cmd.Process != nil {
		return m.cmd.Process.Pid
	}
	return 0
}

// lineWriter logs daemon output one line at a time.
type lineWriter struct {
	logger Logger
	name   string
	stream string

	mu  sync.Mutex
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(w.buf[:i], "\r")
		if len(line) > 0 {
			w.logger.Debug("process output", "name", w.name, "stream", w.stream, "line", string(line))
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}
