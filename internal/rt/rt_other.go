// SPDX-License-Identifier: MIT
//go:build !linux

package rt

import "errors"

// ErrUnsupported is returned where memory locking is unavailable.
var ErrUnsupported = errors.New("memory locking not supported on this platform")

func LockMemory() error {
	return ErrUnsupported
}

func UnlockMemory() error {
	return nil
}

func MemlockLimit() (uint64, error) {
	return 0, ErrUnsupported
}
