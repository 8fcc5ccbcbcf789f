// Package influxdb exports node telemetry to InfluxDB v2 using the
// official influxdb-client-go library.
//
// Every point carries a "device" tag. Measurements:
//   - button:  pressed=true|false on each debounced transition
//   - led:     level=0|1 on each applied command
//   - link:    state, addr on connectivity changes
//   - session: state on messaging session changes
//
// Export is optional (influxdb.enabled) and never blocks the node. The
// client does not contact the server at creation; points wait in the
// library retry buffer while the link is down.
package influxdb
