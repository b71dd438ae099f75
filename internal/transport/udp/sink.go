// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"

	"colorizr/internal/snapshot"
	"colorizr/internal/transport"
)

// Sender is the packet destination of a Sink. *UDPSender implements it.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// Sink packs snapshots and hands them to a Sender. The packet buffer is
// reused between sends.
type Sink struct {
	sender      Sender
	sequenceNum uint32
	packet      Packet
	buf         []byte
}

// NewSink creates a sink writing to sender.
func NewSink(sender Sender) (*Sink, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp sink: sender cannot be nil")
	}
	return &Sink{
		sender: sender,
		packet: Packet{Levels: make([]float32, snapshot.SpectrumBands)},
		buf:    make([]byte, 0, HeaderSize+4*snapshot.SpectrumBands),
	}, nil
}

// Dial is shorthand for NewSink(NewUDPSender(targetAddress)).
func Dial(targetAddress string) (*Sink, error) {
	sender, err := NewUDPSender(targetAddress)
	if err != nil {
		return nil, err
	}
	return NewSink(sender)
}

// Send packs s and transmits it.
func (k *Sink) Send(s *snapshot.Snapshot) error {
	k.sequenceNum++
	p := &k.packet
	p.Sequence = k.sequenceNum
	p.Timestamp = s.Timestamp
	p.PeakHz = float32(s.PeakHz)
	p.R, p.G, p.B = s.Color.R, s.Color.G, s.Color.B
	p.Levels = append(p.Levels[:0], s.Spectrum[:]...)

	k.buf = AppendPacket(k.buf[:0], p)
	if err := k.sender.Send(k.buf); err != nil {
		return err
	}
	logger.Debugf("sent packet %d (%d bytes)", k.sequenceNum, len(k.buf))
	return nil
}

// Close closes the sender.
func (k *Sink) Close() error {
	return k.sender.Close()
}

var _ transport.Transport = (*Sink)(nil)
