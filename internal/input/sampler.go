package input

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/ionode/internal/infrastructure/gpio"
)

// Default timings.
const (
	DefaultPollInterval = 20 * time.Millisecond
	DefaultDebounce     = 50 * time.Millisecond
)

// Report payloads.
var (
	payloadPressed  = []byte("1")
	payloadReleased = []byte("0")
)

// Publisher accepts state reports. It must be safe to call at any time;
// a publish that cannot be delivered is the publisher's concern.
type Publisher interface {
	Publish(topic string, payload []byte)
}

// Logger defines the logging interface for the sampler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Config describes the sampled pin.
type Config struct {
	Pin          int
	ActiveLow    bool
	Topic        string
	PollInterval time.Duration
	Debounce     time.Duration
}

// State is the sampler's view of the pin.
type State struct {
	// Level is the most recent raw read.
	Level int
	// StableLevel is the last committed level.
	StableLevel int
	// LastRawChange is when a raw change was last detected.
	LastRawChange time.Time
	// Transitions counts committed transitions.
	Transitions uint64
	// Glitches counts raw changes that reverted within the window.
	Glitches uint64
	// ReadErrors counts failed reads.
	ReadErrors uint64
}

// Pressed reports whether the stable level is the pressed level.
func (s State) Pressed(activeLow bool) bool {
	return s.StableLevel == pressedLevel(activeLow)
}

func pressedLevel(activeLow bool) int {
	if activeLow {
		return 0
	}
	return 1
}

// Sampler polls one input pin and reports debounced transitions.
//
// Thread Safety:
//   - Run must be called at most once at a time.
//   - State and the setters are safe for concurrent use.
type Sampler struct {
	driver    gpio.Driver
	publisher Publisher
	cfg       Config
	clock     Clock
	logger    Logger

	mu    sync.Mutex
	state State

	callbackMu   sync.RWMutex
	onTransition func(pressed bool)
}

// NewSampler creates a sampler. Zero timings take the defaults.
// The stable level starts at the released level.
func NewSampler(driver gpio.Driver, publisher Publisher, cfg Config) *Sampler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	released := 1 - pressedLevel(cfg.ActiveLow)
	return &Sampler{
		driver:    driver,
		publisher: publisher,
		cfg:       cfg,
		clock:     realClock{},
		logger:    noopLogger{},
		state:     State{Level: released, StableLevel: released},
	}
}

// SetClock replaces the time source. Call before Run.
func (s *Sampler) SetClock(clock Clock) {
	s.clock = clock
}

// SetLogger sets the logger. Call before Run.
func (s *Sampler) SetLogger(logger Logger) {
	s.logger = logger
}

// SetOnTransition sets a callback invoked after every committed transition.
func (s *Sampler) SetOnTransition(callback func(pressed bool)) {
	s.callbackMu.Lock()
	s.onTransition = callback
	s.callbackMu.Unlock()
}

// Configure resets the pin and makes it an input, pulled towards the
// released level.
func (s *Sampler) Configure() error {
	pull := gpio.PullDown
	if s.cfg.ActiveLow {
		pull = gpio.PullUp
	}
	if err := s.driver.Reset(s.cfg.Pin); err != nil {
		return fmt.Errorf("resetting input pin %d: %w", s.cfg.Pin, err)
	}
	if err := s.driver.SetDirection(s.cfg.Pin, gpio.Input); err != nil {
		return fmt.Errorf("configuring input pin %d: %w", s.cfg.Pin, err)
	}
	if err := s.driver.SetPull(s.cfg.Pin, pull); err != nil {
		return fmt.Errorf("setting pull on input pin %d: %w", s.cfg.Pin, err)
	}
	return nil
}

// Run samples until ctx is done. It returns nil on cancellation.
func (s *Sampler) Run(ctx context.Context) error {
	s.logger.Info("input sampler started",
		"pin", s.cfg.Pin,
		"poll_interval", s.cfg.PollInterval,
		"debounce", s.cfg.Debounce,
	)
	for {
		if err := s.step(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.logger.Info("input sampler stopped")
				return nil
			}
			return err
		}
	}
}

// step runs one poll cycle: read, confirm after the debounce window if
// the level moved, then sleep the poll interval.
func (s *Sampler) step(ctx context.Context) error {
	s.mu.Lock()
	stable := s.state.StableLevel
	s.mu.Unlock()

	if raw := s.read(stable); raw != stable {
		s.mu.Lock()
		s.state.LastRawChange = s.clock.Now()
		s.mu.Unlock()

		if err := s.clock.Sleep(ctx, s.cfg.Debounce); err != nil {
			return err
		}

		if confirmed := s.read(stable); confirmed != stable {
			s.commit(confirmed)
		} else {
			s.mu.Lock()
			s.state.Glitches++
			s.mu.Unlock()
			s.logger.Debug("input glitch ignored", "pin", s.cfg.Pin)
		}
	}

	return s.clock.Sleep(ctx, s.cfg.PollInterval)
}

// read returns the raw level, or fallback when the read fails.
func (s *Sampler) read(fallback int) int {
	level, err := s.driver.GetLevel(s.cfg.Pin)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state.ReadErrors++
		s.logger.Warn("reading input failed", "pin", s.cfg.Pin, "error", err)
		return fallback
	}
	s.state.Level = level
	return level
}

func (s *Sampler) commit(level int) {
	s.mu.Lock()
	s.state.StableLevel = level
	s.state.Transitions++
	s.mu.Unlock()

	pressed := level == pressedLevel(s.cfg.ActiveLow)
	payload := payloadReleased
	if pressed {
		payload = payloadPressed
	}

	s.logger.Info("input transition", "pin", s.cfg.Pin, "pressed", pressed)
	s.publisher.Publish(s.cfg.Topic, payload)

	s.callbackMu.RLock()
	callback := s.onTransition
	s.callbackMu.RUnlock()
	if callback != nil {
		callback(pressed)
	}
}

// State returns a copy of the sampler state.
func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
