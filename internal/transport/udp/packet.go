// SPDX-License-Identifier: MIT
/*
Package udp sends snapshot packets to a UDP listener, e.g. a light or
visualiser controller.

Packet Structure (BigEndian):

	+-------------------+-----------+------+--------------------------------+
	| Field             | Data Type | Size | Description                    |
	|-------------------|-----------|------|--------------------------------|
	| Sequence Number   | uint32    | 4    | Monotonically increasing       |
	| Timestamp         | int64     | 8    | Nanoseconds since epoch        |
	| Peak Frequency    | float32   | 4    | Dominant frequency in Hz       |
	| Color             | 3 x uint8 | 3    | R, G, B of the mapped colour   |
	| Level Count       | uint16    | 2    | Number of floats (N)           |
	| Levels            | []float32 | N*4  | Display band levels in dBFS    |
	+-------------------+-----------+------+--------------------------------+
*/
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// HeaderSize is the size of the fixed part of a packet.
const HeaderSize = 4 + 8 + 4 + 3 + 2

// ErrShortPacket is returned for packets smaller than their declared size.
var ErrShortPacket = errors.New("short packet")

// Packet is the decoded form of a snapshot packet.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	PeakHz    float32
	R, G, B   uint8
	Levels    []float32
}

// AppendPacket encodes p onto dst and returns the extended slice.
func AppendPacket(dst []byte, p *Packet) []byte {
	dst = binary.BigEndian.AppendUint32(dst, p.Sequence)
	dst = binary.BigEndian.AppendUint64(dst, uint64(p.Timestamp))
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(p.PeakHz))
	dst = append(dst, p.R, p.G, p.B)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(p.Levels)))
	for _, v := range p.Levels {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// DecodePacket parses b. Levels are appended to dst.Levels[:0].
func DecodePacket(b []byte, dst *Packet) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	dst.Sequence = binary.BigEndian.Uint32(b[0:])
	dst.Timestamp = int64(binary.BigEndian.Uint64(b[4:]))
	dst.PeakHz = math.Float32frombits(binary.BigEndian.Uint32(b[12:]))
	dst.R, dst.G, dst.B = b[16], b[17], b[18]
	n := int(binary.BigEndian.Uint16(b[19:]))

	body := b[HeaderSize:]
	if len(body) < n*4 {
		return fmt.Errorf("%w: want %d levels, have %d bytes", ErrShortPacket, n, len(body))
	}
	dst.Levels = dst.Levels[:0]
	for i := 0; i < n; i++ {
		dst.Levels = append(dst.Levels, math.Float32frombits(binary.BigEndian.Uint32(body[i*4:])))
	}
	return nil
}
