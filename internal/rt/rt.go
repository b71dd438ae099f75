// SPDX-License-Identifier: MIT
/*
Package rt prepares the process for real-time audio: it pins the runtime to
a small number of OS threads and tries to lock memory. Failure to lock is
not fatal; the caller logs it and continues.
*/
package rt

import (
	"runtime"

	"colorizr/internal/log"
)

var logger = log.For("rt")

// Prepare limits GOMAXPROCS (one thread for audio, one for UI and I/O) and
// attempts to lock memory. It returns the previous GOMAXPROCS value.
func Prepare(procs int, lockMemory bool) int {
	if procs < 1 {
		procs = 1
	}
	prev := runtime.GOMAXPROCS(procs)

	if lockMemory {
		if err := LockMemory(); err != nil {
			if limit, lerr := MemlockLimit(); lerr == nil {
				logger.Warnf("running without locked memory (RLIMIT_MEMLOCK %d bytes): %v", limit, err)
			} else {
				logger.Warnf("running without locked memory: %v", err)
			}
		} else {
			logger.Debugf("memory locked")
		}
	}
	return prev
}
