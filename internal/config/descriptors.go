package config

import "github.com/lokutor-ai/cap-dab-gateway/internal/stream"

var outputKinds = map[string]stream.OutputKind{
	"dab_audio":      stream.DabAudio,
	"dab_plus_audio": stream.DabPlusAudio,
	"packet_data":    stream.PacketData,
}

var inputKinds = map[string]stream.InputKind{
	"file":    stream.InputFile,
	"fifo":    stream.InputFifo,
	"gst_uri": stream.InputGstURI,
}

// ToDescriptors converts a decoded stream config into the Descriptor
// slice the stream supervisor is configured with.
func (c StreamConfig) ToDescriptors() []stream.Descriptor {
	descs := make([]stream.Descriptor, 0, len(c))
	for name, entry := range c {
		descs = append(descs, stream.Descriptor{
			Name:              name,
			OutputKind:        outputKinds[entry.OutputKind],
			InputKind:         inputKinds[entry.InputKind],
			InputLocation:     entry.InputLocation,
			BitrateKbps:       entry.BitrateKbps,
			ProtectionProfile: entry.ProtectionProfile,
			ProtectionLevel:   entry.ProtectionLevel,
			PADEnabled:        entry.PADEnabled,
			PADLength:         entry.PADLength,
			PacketAddress:     entry.PacketAddress,
		})
	}
	return descs
}
