// Package wifi is the Linux link driver behind the connectivity supervisor.
//
// It reports link events from three sources:
//   - the optional supervised wpa_supplicant process (Started on each
//     launch, loss of connectivity when it dies)
//   - rtnetlink link updates for carrier (operational state)
//   - rtnetlink address updates for IPv4 addresses on the interface
//
// The link counts as connected while the supplicant runs, the interface
// is operationally up and it carries at least one IPv4 address. Connect
// requests are passed to wpa_cli as "reconnect".
//
// A failed association while connecting produces no event: the link never
// reported Connected, so there is nothing to withdraw. wpa_supplicant keeps
// scanning and retrying on its own, and the next address it brings up is
// reported as Connected.
//
// Events are emitted outside the driver's lock, in the order they were
// observed.
package wifi
