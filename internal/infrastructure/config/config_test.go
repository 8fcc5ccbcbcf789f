package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
device:
  name: "bench-node"
database:
  path: "/tmp/test.db"
link:
  interface: "wlp2s0"
  connect_wait_timeout: 15
mqtt:
  broker:
    uri: "mqtt://10.0.0.5:1883"
    client_id: "bench"
gpio:
  driver: "memory"
  led_pin: 17
  button_pin: 27
sampler:
  poll_interval_ms: 10
  debounce_ms: 30
logging:
  level: "debug"
  format: "text"
`

	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.Name != "bench-node" {
		t.Errorf("Device.Name = %q, want %q", cfg.Device.Name, "bench-node")
	}
	if cfg.Link.Interface != "wlp2s0" {
		t.Errorf("Link.Interface = %q, want %q", cfg.Link.Interface, "wlp2s0")
	}
	if cfg.MQTT.Broker.URI != "mqtt://10.0.0.5:1883" {
		t.Errorf("MQTT.Broker.URI = %q, want %q", cfg.MQTT.Broker.URI, "mqtt://10.0.0.5:1883")
	}
	if cfg.GPIO.LEDPin != 17 || cfg.GPIO.ButtonPin != 27 {
		t.Errorf("GPIO pins = (%d, %d), want (17, 27)", cfg.GPIO.LEDPin, cfg.GPIO.ButtonPin)
	}
	if cfg.GetDebounce() != 30*time.Millisecond {
		t.Errorf("GetDebounce() = %v, want 30ms", cfg.GetDebounce())
	}

	// Defaults survive for fields absent from the file.
	if cfg.Topics.Command != DefaultCommandTopic {
		t.Errorf("Topics.Command = %q, want %q", cfg.Topics.Command, DefaultCommandTopic)
	}
	if cfg.Topics.State != DefaultStateTopic {
		t.Errorf("Topics.State = %q, want %q", cfg.Topics.State, DefaultStateTopic)
	}
	if !cfg.GPIO.ActiveLow {
		t.Error("GPIO.ActiveLow should default to true")
	}
	if !cfg.Session.ReopenOnReconnect {
		t.Error("Session.ReopenOnReconnect should default to true")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("mqtt: [unterminated"), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			modify: func(c *Config) {},
		},
		{
			name:    "missing database path",
			modify:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path is required",
		},
		{
			name:    "missing interface",
			modify:  func(c *Config) { c.Link.Interface = "" },
			wantErr: "link.interface is required",
		},
		{
			name:    "negative connect wait",
			modify:  func(c *Config) { c.Link.ConnectWaitTimeout = -1 },
			wantErr: "connect_wait_timeout",
		},
		{
			name:    "missing broker uri",
			modify:  func(c *Config) { c.MQTT.Broker.URI = "" },
			wantErr: "mqtt.broker.uri is required",
		},
		{
			name:    "unsupported scheme",
			modify:  func(c *Config) { c.MQTT.Broker.URI = "http://broker:1883" },
			wantErr: "unsupported scheme",
		},
		{
			name:    "uri without host",
			modify:  func(c *Config) { c.MQTT.Broker.URI = "mqtt://" },
			wantErr: "must include a host",
		},
		{
			name:    "wildcard topic",
			modify:  func(c *Config) { c.Topics.Command = "led/#" },
			wantErr: "wildcards",
		},
		{
			name:    "same topics",
			modify:  func(c *Config) { c.Topics.State = c.Topics.Command },
			wantErr: "must differ",
		},
		{
			name:    "unknown gpio driver",
			modify:  func(c *Config) { c.GPIO.Driver = "sysfs" },
			wantErr: "gpio.driver",
		},
		{
			name:    "shared pin",
			modify:  func(c *Config) { c.GPIO.ButtonPin = c.GPIO.LEDPin },
			wantErr: "gpio.led_pin and gpio.button_pin must differ",
		},
		{
			name:    "zero debounce",
			modify:  func(c *Config) { c.Sampler.Debounce = 0 },
			wantErr: "sampler.debounce_ms",
		},
		{
			name:    "invalid api port",
			modify:  func(c *Config) { c.API.Port = 70000 },
			wantErr: "api.port",
		},
		{
			name:   "api port ignored when disabled",
			modify: func(c *Config) { c.API.Enabled = false; c.API.Port = 0 },
		},
		{
			name:    "influxdb enabled without url",
			modify:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name:    "managed supplicant without binary",
			modify:  func(c *Config) { c.Link.Supplicant.Managed = true; c.Link.Supplicant.Binary = "" },
			wantErr: "link.supplicant.binary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Database.Path = ""
	cfg.Link.Interface = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	if !strings.Contains(err.Error(), "database.path") || !strings.Contains(err.Error(), "link.interface") {
		t.Errorf("Validate() error = %v, want both failures reported", err)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := defaultConfig()
	cfg.Link.ConnectWaitTimeout = 3

	if got := cfg.GetConnectWaitTimeout(); got != 3*time.Second {
		t.Errorf("GetConnectWaitTimeout() = %v, want 3s", got)
	}
	if got := cfg.GetPollInterval(); got != 20*time.Millisecond {
		t.Errorf("GetPollInterval() = %v, want 20ms", got)
	}
	if got := cfg.GetDebounce(); got != 50*time.Millisecond {
		t.Errorf("GetDebounce() = %v, want 50ms", got)
	}
	if got := cfg.GetReadTimeout(); got != 10*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 10s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 10*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 10s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("IONODE_DATABASE_PATH", "/env/ionode.db")
	t.Setenv("IONODE_LINK_INTERFACE", "wlan1")
	t.Setenv("IONODE_MQTT_URI", "mqtt://env-broker:1884")
	t.Setenv("IONODE_MQTT_CLIENT_ID", "env-client")
	t.Setenv("IONODE_GPIO_DRIVER", "memory")
	t.Setenv("IONODE_API_PORT", "9090")
	t.Setenv("IONODE_INFLUXDB_TOKEN", "secret")
	t.Setenv("IONODE_LOG_LEVEL", "debug")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/env/ionode.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/env/ionode.db")
	}
	if cfg.Link.Interface != "wlan1" {
		t.Errorf("Link.Interface = %q, want %q", cfg.Link.Interface, "wlan1")
	}
	if cfg.MQTT.Broker.URI != "mqtt://env-broker:1884" {
		t.Errorf("MQTT.Broker.URI = %q, want %q", cfg.MQTT.Broker.URI, "mqtt://env-broker:1884")
	}
	if cfg.MQTT.Broker.ClientID != "env-client" {
		t.Errorf("MQTT.Broker.ClientID = %q, want %q", cfg.MQTT.Broker.ClientID, "env-client")
	}
	if cfg.GPIO.Driver != "memory" {
		t.Errorf("GPIO.Driver = %q, want %q", cfg.GPIO.Driver, "memory")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestApplyEnvOverrides_InvalidPortIgnored(t *testing.T) {
	t.Setenv("IONODE_API_PORT", "not-a-number")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want default 8080", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.GPIO.LEDPin != 2 {
		t.Errorf("GPIO.LEDPin = %d, want 2", cfg.GPIO.LEDPin)
	}
	if cfg.GPIO.ButtonPin != 4 {
		t.Errorf("GPIO.ButtonPin = %d, want 4", cfg.GPIO.ButtonPin)
	}
	if cfg.Sampler.PollInterval != 20 {
		t.Errorf("Sampler.PollInterval = %d, want 20", cfg.Sampler.PollInterval)
	}
	if cfg.Sampler.Debounce != 50 {
		t.Errorf("Sampler.Debounce = %d, want 50", cfg.Sampler.Debounce)
	}
	if cfg.Link.ConnectWaitTimeout != 0 {
		t.Errorf("Link.ConnectWaitTimeout = %d, want 0", cfg.Link.ConnectWaitTimeout)
	}
	if cfg.InfluxDB.Enabled {
		t.Error("InfluxDB should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() = %v", err)
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("IONODE_GPIO_DRIVER", "memory")

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if cfg.GPIO.Driver != "memory" {
		t.Errorf("GPIO.Driver = %q, want %q", cfg.GPIO.Driver, "memory")
	}
}
