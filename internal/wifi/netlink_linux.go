//go:build linux

package wifi

import (
	"context"
	"fmt"

	"github.com/vishvananda/netlink"
)

const updateBuffer = 16

type netlinkWatcher struct {
	logger Logger
}

func newNetWatcher(logger Logger) netWatcher {
	return &netlinkWatcher{logger: logger}
}

// Watch subscribes to rtnetlink link and address updates for iface.
func (w *netlinkWatcher) Watch(ctx context.Context, iface string, onLink func(up bool), onAddr func(addr string, added bool)) error {
	l, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("looking up interface %s: %w", iface, err)
	}
	index := l.Attrs().Index

	done := make(chan struct{})
	onErr := func(err error) {
		w.logger.Warn("netlink subscription error", "interface", iface, "error", err)
	}

	linkCh := make(chan netlink.LinkUpdate, updateBuffer)
	err = netlink.LinkSubscribeWithOptions(linkCh, done, netlink.LinkSubscribeOptions{
		ListExisting:  true,
		ErrorCallback: onErr,
	})
	if err != nil {
		close(done)
		return fmt.Errorf("subscribing to link updates: %w", err)
	}

	addrCh := make(chan netlink.AddrUpdate, updateBuffer)
	err = netlink.AddrSubscribeWithOptions(addrCh, done, netlink.AddrSubscribeOptions{
		ListExisting:  true,
		ErrorCallback: onErr,
	})
	if err != nil {
		close(done)
		return fmt.Errorf("subscribing to address updates: %w", err)
	}

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return

			case u, ok := <-linkCh:
				if !ok {
					linkCh = nil
					continue
				}
				if u.Attrs().Index != index {
					continue
				}
				onLink(operUp(u.Attrs().OperState))

			case u, ok := <-addrCh:
				if !ok {
					addrCh = nil
					continue
				}
				if u.LinkIndex != index || u.LinkAddress.IP.To4() == nil {
					continue
				}
				onAddr(u.LinkAddress.String(), u.NewAddr)
			}
		}
	}()

	return nil
}

// operUp treats "unknown" as up; several wireless drivers never report more.
func operUp(state netlink.LinkOperState) bool {
	return state == netlink.OperUp || state == netlink.OperUnknown
}
