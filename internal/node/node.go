package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/ionode/internal/command"
	"github.com/nerrad567/ionode/internal/infrastructure/config"
	"github.com/nerrad567/ionode/internal/infrastructure/database"
	"github.com/nerrad567/ionode/internal/infrastructure/gpio"
	"github.com/nerrad567/ionode/internal/infrastructure/logging"
	"github.com/nerrad567/ionode/internal/input"
	"github.com/nerrad567/ionode/internal/link"
	"github.com/nerrad567/ionode/internal/output"
	"github.com/nerrad567/ionode/internal/session"
	"github.com/nerrad567/ionode/internal/settings"
	"github.com/nerrad567/ionode/internal/status"
	"github.com/nerrad567/ionode/migrations"
)

// ErrSessionNotOpen is reported by the session health check.
var ErrSessionNotOpen = errors.New("node: session not open")

// Deps holds everything the node needs from the process.
type Deps struct {
	Config  *config.Config
	Logger  *logging.Logger
	Version string

	// DB is the opened settings database. Required.
	DB *database.DB

	// Link drives the network association. Required.
	Link link.Driver

	// GPIO drives the LED and button pins. Required.
	GPIO gpio.Driver

	// NewTransport builds the MQTT transport once the client id is known.
	// Defaults to the paho-backed transport.
	NewTransport TransportFactory

	// Telemetry is optional.
	Telemetry Telemetry

	// Clock overrides the sampler time source in tests.
	Clock input.Clock
}

// Node owns every component of the running node.
type Node struct {
	cfg     *config.Config
	logger  *logging.Logger
	version string
	db      *database.DB
	gpio    gpio.Driver
	clock   input.Clock

	newTransport TransportFactory
	linkDriver   link.Driver

	tracker    *status.Tracker
	supervisor *link.Supervisor
	actuator   *output.Actuator
	dispatcher *command.Dispatcher

	// Set during Start.
	store     *settings.Store
	transport Transport
	session   *session.Manager
	sampler   *input.Sampler

	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// New creates a node. Nothing runs until Start.
//
// Parameters:
//   - deps: Required dependencies (config, logger, database, link, GPIO)
//
// Returns:
//   - *Node: Node ready to start
//   - error: If a required dependency is missing
func New(deps Deps) (*Node, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("config is required")
	case deps.DB == nil:
		return nil, fmt.Errorf("database is required")
	case deps.Link == nil:
		return nil, fmt.Errorf("link driver is required")
	case deps.GPIO == nil:
		return nil, fmt.Errorf("gpio driver is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	newTransport := deps.NewTransport
	if newTransport == nil {
		newTransport = MQTTTransportFactory(deps.Config.MQTT, logger.Component("mqtt"))
	}

	cfg := deps.Config
	n := &Node{
		cfg:          cfg,
		logger:       logger,
		version:      deps.Version,
		db:           deps.DB,
		gpio:         deps.GPIO,
		clock:        deps.Clock,
		newTransport: newTransport,
		linkDriver:   deps.Link,
	}

	n.tracker = status.NewTracker(n.identity("", 0))
	if deps.Telemetry != nil {
		n.tracker.Subscribe(telemetryListener(deps.Telemetry))
	}

	n.supervisor = link.NewSupervisor(deps.Link)
	n.supervisor.SetLogger(logger.Component("link"))

	n.actuator = output.New(deps.GPIO, cfg.GPIO.LEDPin)
	n.actuator.SetOnChange(n.tracker.LEDChanged)

	n.dispatcher = command.NewDispatcher(n.actuator)
	n.dispatcher.SetLogger(logger.Component("command"))
	n.dispatcher.SetOnCommand(n.tracker.CommandHandled)

	return n, nil
}

func (n *Node) identity(deviceID string, bootCount int) status.Identity {
	return status.Identity{
		Device:    n.cfg.Device.Name,
		DeviceID:  deviceID,
		Version:   n.version,
		BootCount: int64(bootCount),
		ButtonPin: n.cfg.GPIO.ButtonPin,
		LEDPin:    n.cfg.GPIO.LEDPin,
	}
}

// Tracker returns the status tracker. It is valid before Start.
func (n *Node) Tracker() *status.Tracker {
	return n.tracker
}

// Start runs the startup sequence and launches the sampler. It returns
// once the sampler is running; the node keeps running until ctx is
// cancelled or Stop is called.
func (n *Node) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	// 1. Persistent storage.
	deviceID, err := n.initStorage(runCtx)
	if err != nil {
		cancel()
		return err
	}

	// Session on top of the transport; wired before the link can report.
	n.initSession(deviceID)

	// 2. Link.
	n.supervisor.SetOnStateChange(n.linkChanged)
	if err := n.supervisor.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("starting link: %w", err)
	}

	// 3. Wait for the first connection.
	n.waitForLink(runCtx)
	if err := runCtx.Err(); err != nil {
		return fmt.Errorf("startup interrupted: %w", err)
	}

	// 4. LED before the session, so a retained command delivered on
	// subscribe has a pin to land on.
	if err := n.actuator.Configure(); err != nil {
		cancel()
		return fmt.Errorf("configuring LED: %w", err)
	}

	// 5. Session, then the button.
	if err := n.session.Open(n.cfg.MQTT.Broker.URI); err != nil {
		cancel()
		return fmt.Errorf("opening session: %w", err)
	}
	n.sampler = n.newSampler()
	if err := n.sampler.Configure(); err != nil {
		cancel()
		return fmt.Errorf("configuring button: %w", err)
	}

	// 6. Sampler.
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.sampler.Run(runCtx); err != nil {
			n.logger.Error("input sampler stopped", "error", err)
		}
	}()

	n.logger.Info("node running",
		"device_id", deviceID,
		"command_topic", n.cfg.Topics.Command,
		"state_topic", n.cfg.Topics.State,
	)
	return nil
}

// initStorage migrates the settings database and returns the device id.
func (n *Node) initStorage(ctx context.Context) (string, error) {
	if err := n.db.Migrate(ctx, migrations.FS); err != nil {
		return "", fmt.Errorf("running migrations: %w", err)
	}
	n.store = settings.New(n.db)

	boots, err := n.store.IncrementBootCount(ctx)
	if err != nil {
		return "", fmt.Errorf("updating boot count: %w", err)
	}
	deviceID, err := n.store.DeviceID(ctx)
	if err != nil {
		return "", fmt.Errorf("loading device id: %w", err)
	}

	n.tracker.SetIdentity(n.identity(deviceID, boots))
	n.logger.Info("storage initialised", "device_id", deviceID, "boot_count", boots)
	return deviceID, nil
}

// initSession builds the transport and session manager and wires their
// callbacks.
func (n *Node) initSession(deviceID string) {
	clientID := n.cfg.MQTT.Broker.ClientID
	if clientID == "" {
		clientID = deviceID
	}
	n.transport = n.newTransport(clientID)

	n.session = session.NewManager(n.transport, session.Config{
		CommandTopic:        n.cfg.Topics.Command,
		ReopenOnLinkRestore: n.cfg.Session.ReopenOnReconnect,
	})
	n.session.SetLogger(n.logger.Component("session"))
	n.session.SetOnStateChange(n.tracker.SessionChanged)
	n.session.SetOnPublishDropped(n.tracker.PublishDropped)
	n.session.SetOnMessage(func(payload []byte) {
		n.dispatcher.Dispatch(payload)
	})

	n.transport.SetOnConnect(func() {
		n.session.HandleEvent(session.Connected{})
	})
	n.transport.SetOnDisconnect(func(err error) {
		n.session.HandleEvent(session.Disconnected{Err: err})
	})
	n.transport.SetOnReconnecting(func() {
		n.session.HandleEvent(session.Reconnecting{})
	})
}

func (n *Node) newSampler() *input.Sampler {
	s := input.NewSampler(n.gpio, n.session, input.Config{
		Pin:          n.cfg.GPIO.ButtonPin,
		ActiveLow:    n.cfg.GPIO.ActiveLow,
		Topic:        n.cfg.Topics.State,
		PollInterval: n.cfg.GetPollInterval(),
		Debounce:     n.cfg.GetDebounce(),
	})
	s.SetLogger(n.logger.Component("input"))
	s.SetOnTransition(n.tracker.ButtonChanged)
	if n.clock != nil {
		s.SetClock(n.clock)
	}
	return s
}

// linkChanged feeds the tracker and re-opens the session on restore.
func (n *Node) linkChanged(state link.State, addr string) {
	n.tracker.LinkChanged(state, addr)
	if state == link.StateConnected && n.session != nil {
		n.session.LinkRestored()
	}
}

// waitForLink blocks until the link is connected. A configured timeout
// turns a slow link into a logged error instead of a hang.
func (n *Node) waitForLink(ctx context.Context) {
	timeout := n.cfg.GetConnectWaitTimeout()
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	n.logger.Info("waiting for link", "timeout", timeout)
	if err := n.supervisor.WaitConnected(waitCtx); err != nil {
		if ctx.Err() == nil {
			n.logger.Error("link not connected in time, continuing",
				"waited", time.Since(start).Round(time.Millisecond),
				"error", err,
			)
		}
		return
	}
	_, addr := n.supervisor.State()
	n.logger.Info("link up", "addr", addr, "waited", time.Since(start).Round(time.Millisecond))
}

// SessionHealth reports whether the MQTT session is open and the
// transport still holds a live connection.
func (n *Node) SessionHealth(ctx context.Context) error {
	if n.session == nil || n.session.State() != session.StateOpen {
		return ErrSessionNotOpen
	}
	if err := n.transport.HealthCheck(ctx); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	return nil
}

// LinkHealth reports whether the link is connected.
func (n *Node) LinkHealth(_ context.Context) error {
	if st, _ := n.supervisor.State(); st != link.StateConnected {
		return fmt.Errorf("link %s", st)
	}
	return nil
}

// Stop cancels the sampler, closes the transport and stops the link
// driver if it supports stopping. Safe to call more than once.
func (n *Node) Stop() error {
	var errs []error
	n.stopOnce.Do(func() {
		if n.cancel != nil {
			n.cancel()
		}
		n.wg.Wait()

		if n.transport != nil {
			if err := n.transport.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing transport: %w", err))
			}
		}
		if stopper, ok := n.linkDriver.(interface{ Stop() error }); ok {
			if err := stopper.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stopping link: %w", err))
			}
		}
		n.logger.Info("node stopped")
	})
	return errors.Join(errs...)
}
