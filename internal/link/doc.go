// Package link supervises the node's network association.
//
// A [Driver] owns the actual radio and reports what happens to it as
// [Event] values. The [Supervisor] turns those events into a three-state
// machine (disconnected, connecting, connected) and keeps asking the
// driver to connect:
//
//   - Started: issue a connect attempt
//   - Disconnected: issue exactly one new connect attempt, every time,
//     with no backoff and no retry limit
//   - Connected: the link carries an address; startup may proceed
//
// Callers that must not run before the link is up block in
// [Supervisor.WaitConnected].
package link
