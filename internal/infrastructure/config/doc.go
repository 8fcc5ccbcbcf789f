// Package config handles loading and validating the I/O node configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with IONODE_* environment variables
//   - Validation of required fields (collects every error, not just the first)
//   - Default values matching the reference board (LED on GPIO 2, button on GPIO 4)
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.URI)
package config
