//go:build !linux

package wifi

import (
	"context"
	"errors"
)

type unsupportedWatcher struct{}

func newNetWatcher(Logger) netWatcher {
	return unsupportedWatcher{}
}

func (unsupportedWatcher) Watch(context.Context, string, func(bool), func(string, bool)) error {
	return errors.New("wifi: interface watching requires linux")
}
