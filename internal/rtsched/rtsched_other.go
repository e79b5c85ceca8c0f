//go:build !linux

package rtsched

import "errors"

func elevate() error {
	return errors.New("rtsched: realtime scheduling not supported on this platform")
}
