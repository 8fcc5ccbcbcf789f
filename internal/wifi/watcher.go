package wifi

import "context"

// netWatcher delivers carrier and IPv4 address changes for one interface.
// Existing state is reported first, as if it had just appeared.
type netWatcher interface {
	Watch(ctx context.Context, iface string, onLink func(up bool), onAddr func(addr string, added bool)) error
}
