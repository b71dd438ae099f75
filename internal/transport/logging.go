// SPDX-License-Identifier: MIT
package transport

import (
	"colorizr/internal/log"
	"colorizr/internal/snapshot"
)

// LoggingTransport implements the Transport interface by logging a one-line
// summary of every Nth snapshot at debug level.
type LoggingTransport struct {
	every uint64
	count uint64
	log   *log.Logger
}

// NewLoggingTransport creates a new LoggingTransport. every <= 1 logs each
// snapshot.
func NewLoggingTransport(every int) *LoggingTransport {
	if every < 1 {
		every = 1
	}
	lt := &LoggingTransport{every: uint64(every), log: log.For("snapshot")}
	lt.log.Infof("logging every %d snapshot(s)", every)
	return lt
}

// Send logs the received snapshot.
func (lt *LoggingTransport) Send(s *snapshot.Snapshot) error {
	lt.count++
	if lt.count%lt.every != 0 {
		return nil
	}
	lt.log.Debugf("seq=%d peak=%.1fHz %.1fdB color=%s env=%.2f mod=%+.2f bands=%d active=%v",
		s.Sequence, s.PeakHz, s.PeakDB, s.Color.Hex(), s.Envelope, s.Modulation, s.BandCount, s.Active())
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.log.Debugf("closed after %d snapshot(s)", lt.count)
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
