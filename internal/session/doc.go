// Package session owns the MQTT session that rides on top of the link.
//
// The [Manager] is the single handle shared by the transport callbacks and
// the input sampler. It tracks a three-state lifecycle:
//
//	Closed --Open()--> Opening --Connected--> Open
//	  ^                   ^                    |
//	  |                   +---Reconnecting-----+
//	  +--------------------Disconnected--------+
//
// On every Connected event it issues exactly one QoS 0 subscription for the
// command topic. Inbound messages are accepted only while Open and only for
// that exact topic. Publishes made while the session is not Open are logged
// and dropped; nothing is queued.
//
// When the link comes back after an outage, [Manager.LinkRestored] re-opens
// a session that had been opened before and is now Closed.
package session
