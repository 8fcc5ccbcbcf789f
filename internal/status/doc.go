// Package status keeps the node's observable state in one place.
//
// The [Tracker] is fed by callbacks from the link supervisor, the session
// manager, the sampler, the actuator and the command dispatcher. It keeps a
// JSON-friendly [Snapshot], updates Prometheus metrics in a private
// registry, and fans each change out to listeners (the WebSocket hub and
// the optional InfluxDB writer).
package status
