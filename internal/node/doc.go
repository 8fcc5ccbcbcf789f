// Package node wires the I/O node together and sequences its startup.
//
// Startup runs once, in order:
//  1. migrate the settings database, bump the boot counter, load the device id
//  2. start the link supervisor
//  3. wait for the link to report an address (bounded by
//     link.connect_wait_timeout when set)
//  4. configure the LED pin as an output, so a retained command delivered
//     on subscribe is applied
//  5. open the MQTT session against the configured broker, then configure
//     the button pin as an input
//  6. launch the input sampler
//
// After that the node runs until its context is cancelled. Link loss is
// retried forever by the supervisor; a session that drops while the link is
// down is re-opened when the link returns.
package node
