package framer

// Framer composes a GroupEncoder and PacketEncoder into the pipeline used
// by the stream supervisor's packet-mode pump (§4.4): each data block
// becomes one MSC Data Group, split into DAB Packets at a fixed address.
type Framer struct {
	group  *GroupEncoder
	packet *PacketEncoder
}

// New returns a Framer whose packets carry the given 10-bit address.
func New(address uint16) *Framer {
	return &Framer{
		group:  NewGroupEncoder(),
		packet: NewPacketEncoder(address),
	}
}

// Frame encodes one block of bytes into the DAB Packets ready to write
// to the subchannel's IPC FIFO, in order.
func (f *Framer) Frame(block []byte) [][]byte {
	group := f.group.Build(block)
	return f.packet.Split(group)
}
