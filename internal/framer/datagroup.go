// Package framer implements the bit-exact MSC Data Group and DAB Packet
// encoders used to carry packet-mode data (CAP bulletins) on a DAB
// ensemble's data subchannels, per ETSI EN 300 401 v2.1.1 §5.3.2/§5.3.3.
package framer

import "bytes"

// GroupEncoder builds MSC Data Groups and tracks the continuity and
// repetition indices required across successive payloads, per §5.3.2.
type GroupEncoder struct {
	lastPayload      []byte
	haveLast         bool
	continuityIndex  uint8 // 4 bits, wraps mod 16
	repetitionIndex  uint8 // 4 bits
}

// NewGroupEncoder returns a GroupEncoder whose continuity index is
// seeded at 15 so the first Build call wraps it to 0, per §5.3.2 (the
// first group on a subchannel must carry continuity index 0).
func NewGroupEncoder() *GroupEncoder {
	return &GroupEncoder{continuityIndex: 15}
}

// Build wraps payload in an MSC Data Group: a 2-byte header, the payload
// verbatim, and a CRC-16 trailer. Continuity advances whenever payload
// differs from the previous call's payload; otherwise repetition counts
// down, modelling retransmission of an unchanged group.
func (g *GroupEncoder) Build(payload []byte) []byte {
	if g.haveLast && bytes.Equal(g.lastPayload, payload) {
		if g.repetitionIndex > 0 {
			g.repetitionIndex--
		} else {
			g.repetitionIndex = 0
		}
	} else {
		g.continuityIndex = (g.continuityIndex + 1) % 16
		g.repetitionIndex = 0
	}
	g.lastPayload = append([]byte(nil), payload...)
	g.haveLast = true

	header := []byte{
		0x40, // ext=0, CRC=1, segment=0, user-access=0, type=0000
		(g.continuityIndex << 4) | g.repetitionIndex,
	}
	group := make([]byte, 0, len(header)+len(payload)+2)
	group = append(group, header...)
	group = append(group, payload...)
	return appendCRC16(group)
}
