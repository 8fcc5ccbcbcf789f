// Package api implements the read-only status HTTP API and WebSocket
// stream for the I/O node.
//
// This package provides:
//   - GET /api/v1/health: component health checks
//   - GET /api/v1/status: the current status snapshot as JSON
//   - GET /api/v1/ws: a WebSocket stream, a snapshot frame followed by
//     status events filtered by ?events= or a filter frame
//   - GET /metrics: Prometheus metrics from the status tracker registry
//
// There is no write path: the LED is driven only through the MQTT command
// topic.
//
// The server follows the same lifecycle as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
