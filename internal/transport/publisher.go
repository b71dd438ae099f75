// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"colorizr/internal/engine"
	"colorizr/internal/log"
	"colorizr/internal/snapshot"
)

// DefaultInterval is used when a publisher is created with a non-positive
// interval (~30 Hz).
const DefaultInterval = 33 * time.Millisecond

// statsEvery is how often counter deltas are checked and logged.
const statsEvery = 5 * time.Second

var logger = log.For("publisher")

// Publisher periodically reads the latest snapshot and fans it out to its
// sinks. It runs in a separate goroutine managed by Start and Stop.
type Publisher struct {
	channel  *snapshot.Channel
	stats    func() engine.Stats // Optional counter source.
	interval time.Duration
	sinks    []Transport

	ticker   *time.Ticker   // Ticker that triggers reads.
	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	// Owned by the publisher goroutine.
	snap      snapshot.Snapshot
	lastSeq   uint64
	lastStats engine.Stats
	lastCheck time.Time
	delivered uint64
}

// NewPublisher creates a publisher reading from channel. stats may be nil.
func NewPublisher(interval time.Duration, channel *snapshot.Channel, stats func() engine.Stats, sinks ...Transport) (*Publisher, error) {
	if channel == nil {
		return nil, fmt.Errorf("publisher: snapshot channel cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
		logger.Warnf("invalid interval provided, defaulting to %s", interval)
	}
	logger.Infof("initializing (interval: %s, sinks: %d)", interval, len(sinks))

	return &Publisher{
		channel:  channel,
		stats:    stats,
		interval: interval,
		sinks:    sinks,
	}, nil
}

// Start begins the periodic publishing process. Calling Start on a running
// publisher is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Captured so the goroutine never reads p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Debugf("goroutine started")
		for {
			select {
			case now := <-ticker.C:
				p.Poll()
				p.checkStats(now)
			case <-doneChan:
				logger.Debugf("goroutine received stop signal")
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// Calling Stop more than once is a no-op.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	logger.Infof("stopped after %d snapshot(s)", p.delivered)
	return nil
}

// Poll reads the channel once and delivers the snapshot if it is new. It
// reports whether anything was delivered. Poll must only be called from one
// goroutine at a time; Start does so on its own goroutine.
func (p *Publisher) Poll() bool {
	if !p.channel.ReadLatest(&p.snap) || p.snap.Sequence == p.lastSeq {
		return false
	}
	p.lastSeq = p.snap.Sequence
	p.delivered++

	for _, sink := range p.sinks {
		if err := sink.Send(&p.snap); err != nil {
			logger.Debugf("sink %T: %v", sink, err)
		}
	}
	return true
}

// checkStats logs counters that grew since the last check.
func (p *Publisher) checkStats(now time.Time) {
	if p.stats == nil || now.Sub(p.lastCheck) < statsEvery {
		return
	}
	p.lastCheck = now

	s := p.stats()
	if d := s.Overruns - p.lastStats.Overruns; d > 0 {
		logger.Warnf("%d overrun(s): host blocks exceeded the configured maximum", d)
	}
	if d := s.Underruns - p.lastStats.Underruns; d > 0 {
		logger.Warnf("%d underrun(s): empty or ragged host blocks", d)
	}
	if d := s.ChannelContention - p.lastStats.ChannelContention; d > 0 {
		logger.Debugf("%d snapshot(s) replaced before being read", d)
	}
	p.lastStats = s
}

// Close stops the publisher and closes every sink.
func (p *Publisher) Close() error {
	err := p.Stop()
	for _, sink := range p.sinks {
		err = errors.Join(err, sink.Close())
	}
	return err
}

// Ensure Publisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*Publisher)(nil)
