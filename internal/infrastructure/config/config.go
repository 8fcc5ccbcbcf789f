package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default wire-level topics used by the node.
const (
	DefaultCommandTopic = "led/acao"
	DefaultStateTopic   = "bnt/estado"
)

// Config is the root configuration structure for the I/O node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Database DatabaseConfig `yaml:"database"`
	Link     LinkConfig     `yaml:"link"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Topics   TopicsConfig   `yaml:"topics"`
	Session  SessionConfig  `yaml:"session"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	Sampler  SamplerConfig  `yaml:"sampler"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies this node.
type DeviceConfig struct {
	// Name is a human-readable label used in logs and telemetry.
	Name string `yaml:"name"`
}

// DatabaseConfig contains the SQLite settings store configuration.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LinkConfig contains wireless link settings.
type LinkConfig struct {
	// Interface is the network interface carrying the wireless association.
	Interface string `yaml:"interface"`

	// ConnectWaitTimeout bounds the startup wait for the first connection (seconds).
	// 0 waits until the link reports an address.
	ConnectWaitTimeout int `yaml:"connect_wait_timeout"`

	// CLIBinary is the control tool used to trigger (re)association.
	// Empty disables explicit connect requests.
	CLIBinary string `yaml:"cli_binary"`

	// Supplicant configures the optional managed wpa_supplicant daemon.
	Supplicant SupplicantConfig `yaml:"supplicant"`
}

// SupplicantConfig configures the supervised wpa_supplicant process.
type SupplicantConfig struct {
	// Managed starts and supervises wpa_supplicant from this process.
	// If false, the supplicant is expected to run externally (e.g. systemd).
	Managed bool `yaml:"managed"`

	Binary     string `yaml:"binary"`
	ConfigFile string `yaml:"config_file"`
	Driver     string `yaml:"driver"`

	// RestartDelaySeconds is the delay before restarting a crashed supplicant.
	RestartDelaySeconds int `yaml:"restart_delay_seconds"`

	// HealthCheckInterval is how often `wpa_cli ping` runs (seconds). 0 disables it.
	HealthCheckInterval int `yaml:"health_check_interval"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	// URI is the broker endpoint, e.g. "mqtt://192.168.0.158:1883".
	URI string `yaml:"uri"`

	// ClientID identifies the node to the broker.
	// Empty uses the persisted device id.
	ClientID string `yaml:"client_id"`

	// KeepAlive is the MQTT keepalive interval (seconds).
	KeepAlive int `yaml:"keep_alive"`
}

// MQTTReconnectConfig contains transport-level reconnection settings.
type MQTTReconnectConfig struct {
	// Auto lets the MQTT library reconnect on its own after a connection loss.
	Auto         bool `yaml:"auto"`
	InitialDelay int  `yaml:"initial_delay"`
	MaxDelay     int  `yaml:"max_delay"`
}

// TopicsConfig holds the two static wire-level topics.
type TopicsConfig struct {
	Command string `yaml:"command"`
	State   string `yaml:"state"`
}

// SessionConfig contains session manager behaviour.
type SessionConfig struct {
	// ReopenOnReconnect re-opens a closed session when the link comes back.
	ReopenOnReconnect bool `yaml:"reopen_on_reconnect"`
}

// GPIOConfig contains the pin assignments and driver selection.
type GPIOConfig struct {
	// Driver selects the GPIO implementation: "chip" (Linux character device) or "memory".
	Driver string `yaml:"driver"`

	// Chip is the GPIO character device name, e.g. "gpiochip0".
	Chip string `yaml:"chip"`

	LEDPin    int  `yaml:"led_pin"`
	ButtonPin int  `yaml:"button_pin"`
	ActiveLow bool `yaml:"active_low"`
}

// SamplerConfig contains input sampling timings in milliseconds.
type SamplerConfig struct {
	PollInterval int `yaml:"poll_interval_ms"`
	Debounce     int `yaml:"debounce_ms"`
}

// APIConfig contains the status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: IONODE_SECTION_KEY
// For example: IONODE_MQTT_URI, IONODE_LINK_INTERFACE
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// Used when no config file is present on the device.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config matching the reference board wiring.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Name: "ionode",
		},
		Database: DatabaseConfig{
			Path:        "./data/ionode.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Link: LinkConfig{
			Interface: "wlan0",
			CLIBinary: "wpa_cli",
			Supplicant: SupplicantConfig{
				Binary:              "/sbin/wpa_supplicant",
				ConfigFile:          "/etc/wpa_supplicant/wpa_supplicant.conf",
				Driver:              "nl80211",
				RestartDelaySeconds: 5,
				HealthCheckInterval: 30,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				URI:       "mqtt://192.168.0.158:1883",
				KeepAlive: 120,
			},
			Reconnect: MQTTReconnectConfig{
				Auto:         true,
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Topics: TopicsConfig{
			Command: DefaultCommandTopic,
			State:   DefaultStateTopic,
		},
		Session: SessionConfig{
			ReopenOnReconnect: true,
		},
		GPIO: GPIOConfig{
			Driver:    "chip",
			Chip:      "gpiochip0",
			LEDPin:    2,
			ButtonPin: 4,
			ActiveLow: true,
		},
		Sampler: SamplerConfig{
			PollInterval: 20,
			Debounce:     50,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IONODE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IONODE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("IONODE_LINK_INTERFACE"); v != "" {
		cfg.Link.Interface = v
	}

	if v := os.Getenv("IONODE_MQTT_URI"); v != "" {
		cfg.MQTT.Broker.URI = v
	}
	if v := os.Getenv("IONODE_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}

	if v := os.Getenv("IONODE_GPIO_DRIVER"); v != "" {
		cfg.GPIO.Driver = v
	}

	if v := os.Getenv("IONODE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("IONODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("IONODE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Link.Interface == "" {
		errs = append(errs, "link.interface is required")
	}
	if c.Link.ConnectWaitTimeout < 0 {
		errs = append(errs, "link.connect_wait_timeout must not be negative")
	}
	if c.Link.Supplicant.Managed && c.Link.Supplicant.Binary == "" {
		errs = append(errs, "link.supplicant.binary is required when managed")
	}

	if err := validateBrokerURI(c.MQTT.Broker.URI); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Topics.Command == "" || c.Topics.State == "" {
		errs = append(errs, "topics.command and topics.state are required")
	}
	if strings.ContainsAny(c.Topics.Command+c.Topics.State, "+#") {
		errs = append(errs, "topics must not contain wildcards")
	}
	if c.Topics.Command == c.Topics.State {
		errs = append(errs, "topics.command and topics.state must differ")
	}

	switch c.GPIO.Driver {
	case "chip", "memory":
	default:
		errs = append(errs, `gpio.driver must be "chip" or "memory"`)
	}
	if c.GPIO.LEDPin < 0 || c.GPIO.ButtonPin < 0 {
		errs = append(errs, "gpio pins must not be negative")
	}
	if c.GPIO.LEDPin == c.GPIO.ButtonPin {
		errs = append(errs, "gpio.led_pin and gpio.button_pin must differ")
	}

	if c.Sampler.PollInterval <= 0 {
		errs = append(errs, "sampler.poll_interval_ms must be positive")
	}
	if c.Sampler.Debounce <= 0 {
		errs = append(errs, "sampler.debounce_ms must be positive")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateBrokerURI checks the broker endpoint has a supported scheme and a host.
func validateBrokerURI(uri string) error {
	if uri == "" {
		return fmt.Errorf("mqtt.broker.uri is required")
	}
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("mqtt.broker.uri is invalid: %v", err)
	}
	switch u.Scheme {
	case "mqtt", "mqtts", "tcp", "ssl", "ws", "wss":
	default:
		return fmt.Errorf("mqtt.broker.uri has unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("mqtt.broker.uri must include a host")
	}
	return nil
}

// GetConnectWaitTimeout returns the startup link wait bound as a Duration.
func (c *Config) GetConnectWaitTimeout() time.Duration {
	return time.Duration(c.Link.ConnectWaitTimeout) * time.Second
}

// GetPollInterval returns the sampler idle poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Sampler.PollInterval) * time.Millisecond
}

// GetDebounce returns the sampler debounce window as a Duration.
func (c *Config) GetDebounce() time.Duration {
	return time.Duration(c.Sampler.Debounce) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
