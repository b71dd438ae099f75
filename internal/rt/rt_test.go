// SPDX-License-Identifier: MIT
package rt

import (
	"runtime"
	"testing"
)

func TestPrepare(t *testing.T) {
	orig := runtime.GOMAXPROCS(0)
	defer runtime.GOMAXPROCS(orig)

	prev := Prepare(2, false)
	if prev != orig {
		t.Errorf("Prepare() = %d, want previous value %d", prev, orig)
	}
	if got := runtime.GOMAXPROCS(0); got != 2 {
		t.Errorf("GOMAXPROCS = %d, want 2", got)
	}

	Prepare(0, false)
	if got := runtime.GOMAXPROCS(0); got != 1 {
		t.Errorf("GOMAXPROCS = %d after Prepare(0), want 1", got)
	}
}

func TestUnlockWithoutLock(t *testing.T) {
	if err := UnlockMemory(); err != nil {
		t.Errorf("UnlockMemory() error = %v", err)
	}
}
