// SPDX-License-Identifier: MIT
package tui

import (
	"sync"

	"colorizr/internal/snapshot"
	"colorizr/internal/transport"

	tea "github.com/charmbracelet/bubbletea"
)

// Sender is the part of *tea.Program the sink needs.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramSink forwards snapshots to a Bubble Tea program. Send keeps only the
// latest snapshot and never waits for the program; a forwarding goroutine
// delivers it.
type ProgramSink struct {
	program Sender

	mu      sync.Mutex
	pending snapshot.Snapshot
	dirty   bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewProgramSink starts forwarding to program.
func NewProgramSink(program Sender) *ProgramSink {
	ps := &ProgramSink{
		program: program,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go ps.forward()
	return ps
}

// Send implements transport.Transport.
func (ps *ProgramSink) Send(s *snapshot.Snapshot) error {
	ps.mu.Lock()
	ps.pending = *s
	ps.dirty = true
	ps.mu.Unlock()

	select {
	case ps.wake <- struct{}{}:
	default:
	}
	return nil
}

func (ps *ProgramSink) forward() {
	for {
		select {
		case <-ps.done:
			return
		case <-ps.wake:
			ps.mu.Lock()
			if !ps.dirty {
				ps.mu.Unlock()
				continue
			}
			msg := SnapshotMsg(ps.pending)
			ps.dirty = false
			ps.mu.Unlock()

			// Program.Send returns once the program has exited, so this
			// only waits while the UI is busy.
			ps.program.Send(msg)
		}
	}
}

// Close stops forwarding. It does not wait for a Send blocked on a program
// that has not started yet.
func (ps *ProgramSink) Close() error {
	ps.once.Do(func() {
		close(ps.done)
	})
	return nil
}

// Ensure ProgramSink satisfies the interface at compile time.
var _ transport.Transport = (*ProgramSink)(nil)
