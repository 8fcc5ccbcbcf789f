package influxdb

import "errors"

var (
	// ErrDisabled is returned by New when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: export disabled")

	// ErrClosed is returned by HealthCheck after Close.
	ErrClosed = errors.New("influxdb: client closed")

	// ErrUnhealthy means the server answered a ping but reported itself unhealthy.
	ErrUnhealthy = errors.New("influxdb: server unhealthy")
)
