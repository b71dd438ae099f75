// SPDX-License-Identifier: MIT
/*
Package transport moves engine snapshots off the audio goroutine.

The Publisher is the single reader of a snapshot.Channel. It polls at the UI
rate, and hands each new snapshot to every registered Transport (terminal UI,
WebSocket clients, UDP, log). Sinks run on the publisher goroutine and must
copy anything they keep beyond Send.
*/
package transport

import (
	"colorizr/internal/param"
	"colorizr/internal/snapshot"
)

// Transport defines a generic interface for sending snapshots.
type Transport interface {
	Send(s *snapshot.Snapshot) error
	Close() error
}

// ParamHandler receives parameter changes from remote clients. It is
// satisfied by *param.Set.
type ParamHandler interface {
	SetTarget(id param.ID, value float64)
}
