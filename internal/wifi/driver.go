package wifi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/ionode/internal/infrastructure/config"
	"github.com/nerrad567/ionode/internal/link"
	"github.com/nerrad567/ionode/internal/process"
)

// ErrCommandFailed is returned when wpa_cli does not answer as expected.
var ErrCommandFailed = errors.New("wifi: control command failed")

// Logger defines the logging interface for the driver.
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

// runFunc runs a control command and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec // Binary comes from validated config
}

// Driver implements link.Driver for a Linux wireless interface.
type Driver struct {
	cfg     config.LinkConfig
	logger  Logger
	watcher netWatcher
	run     runFunc

	supplicant *process.Manager

	mu           sync.Mutex
	emit         func(link.Event)
	supplicantUp bool
	operUp       bool
	addrs        []string
	connected    bool
	pending      []link.Event // queued under mu, emitted by flush without it
	flushing     bool
}

// New creates a driver for cfg.Interface.
func New(cfg config.LinkConfig, logger Logger) *Driver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Driver{
		cfg:     cfg,
		logger:  logger,
		watcher: newNetWatcher(logger),
		run:     runCommand,
	}
}

// Start launches the supplicant when managed, reports Started and begins
// watching the interface.
func (d *Driver) Start(ctx context.Context, emit func(link.Event)) error {
	d.mu.Lock()
	d.emit = emit
	d.mu.Unlock()

	if d.cfg.Supplicant.Managed {
		d.supplicant = process.NewManager(d.supplicantConfig())
		d.supplicant.SetLogger(d.logger)
		if err := d.supplicant.Start(ctx); err != nil {
			return fmt.Errorf("starting supplicant: %w", err)
		}
	} else {
		d.supplicantStarted()
	}

	if err := d.watcher.Watch(ctx, d.cfg.Interface, d.linkChanged, d.addrChanged); err != nil {
		return fmt.Errorf("watching %s: %w", d.cfg.Interface, err)
	}
	return nil
}

// Stop stops the supervised supplicant, if any.
func (d *Driver) Stop() error {
	if d.supplicant == nil {
		return nil
	}
	return d.supplicant.Stop()
}

// Connect asks wpa_supplicant to reassociate.
func (d *Driver) Connect(ctx context.Context) error {
	if d.cfg.CLIBinary == "" {
		return nil
	}
	return d.control(ctx, "reconnect", "OK")
}

// ping is the supplicant watchdog.
func (d *Driver) ping(ctx context.Context) error {
	return d.control(ctx, "ping", "PONG")
}

// control runs one wpa_cli command and checks its reply.
func (d *Driver) control(ctx context.Context, command, want string) error {
	out, err := d.run(ctx, d.cfg.CLIBinary, "-i", d.cfg.Interface, command)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrCommandFailed, d.cfg.CLIBinary, command, err)
	}
	if got := string(bytes.TrimSpace(out)); got != want {
		return fmt.Errorf("%w: %s replied %q", ErrCommandFailed, command, got)
	}
	return nil
}

// supplicantConfig builds the process supervision config for wpa_supplicant.
func (d *Driver) supplicantConfig() process.Config {
	s := d.cfg.Supplicant
	args := []string{"-i", d.cfg.Interface, "-c", s.ConfigFile}
	if s.Driver != "" {
		args = append(args, "-D", s.Driver)
	}

	cfg := process.Config{
		Name:             "wpa_supplicant",
		Binary:           s.Binary,
		Args:             args,
		RestartOnFailure: true,
		RestartDelay:     time.Duration(s.RestartDelaySeconds) * time.Second,
		OnStart:          d.supplicantStarted,
		OnStop:           d.supplicantStopped,
	}
	if s.HealthCheckInterval > 0 && d.cfg.CLIBinary != "" {
		cfg.HealthCheck = d.ping
		cfg.HealthCheckInterval = time.Duration(s.HealthCheckInterval) * time.Second
	}
	return cfg
}

func (d *Driver) supplicantStarted() {
	d.mu.Lock()
	d.supplicantUp = true
	d.queue(link.Started{})
	d.evaluate("")
	d.mu.Unlock()
	d.flush()
}

func (d *Driver) supplicantStopped(err error) {
	reason := "supplicant stopped"
	if err != nil {
		reason = "supplicant exited: " + err.Error()
	}

	d.mu.Lock()
	d.supplicantUp = false
	d.evaluate(reason)
	d.mu.Unlock()
	d.flush()
}

func (d *Driver) linkChanged(up bool) {
	d.mu.Lock()
	if d.operUp == up {
		d.mu.Unlock()
		return
	}
	d.operUp = up
	d.logger.Debug("interface carrier changed", "interface", d.cfg.Interface, "up", up)
	d.evaluate("carrier lost")
	d.mu.Unlock()
	d.flush()
}

func (d *Driver) addrChanged(addr string, added bool) {
	d.mu.Lock()
	i := slices.Index(d.addrs, addr)
	switch {
	case added && i < 0:
		d.addrs = append(d.addrs, addr)
	case !added && i >= 0:
		d.addrs = slices.Delete(d.addrs, i, i+1)
	default:
		d.mu.Unlock()
		return
	}
	d.logger.Debug("interface address changed", "interface", d.cfg.Interface, "addr", addr, "added", added)
	d.evaluate("address removed")
	d.mu.Unlock()
	d.flush()
}

// evaluate queues Connected or Disconnected when the combined state flips.
// A failed association while connecting never flips it, so no event is
// queued and wpa_supplicant's own scan and retry loop carries on.
// Caller must hold d.mu.
func (d *Driver) evaluate(reason string) {
	up := d.supplicantUp && d.operUp && len(d.addrs) > 0
	if up == d.connected {
		return
	}
	d.connected = up
	if up {
		d.queue(link.Connected{Addr: d.addrs[0]})
	} else {
		d.queue(link.Disconnected{Reason: reason})
	}
}

// queue appends ev for the next flush. Caller must hold d.mu.
func (d *Driver) queue(ev link.Event) {
	d.pending = append(d.pending, ev)
}

// flush delivers queued events in order without holding d.mu, so the
// supervisor may run wpa_cli or reach the session while netlink updates
// keep arriving. Only one goroutine drains at a time; events queued by
// others meanwhile are delivered by the draining one.
func (d *Driver) flush() {
	d.mu.Lock()
	if d.flushing {
		d.mu.Unlock()
		return
	}
	d.flushing = true
	for len(d.pending) > 0 {
		ev := d.pending[0]
		d.pending = d.pending[1:]
		emit := d.emit
		d.mu.Unlock()

		if emit != nil {
			emit(ev)
		}

		d.mu.Lock()
	}
	d.flushing = false
	d.mu.Unlock()
}
