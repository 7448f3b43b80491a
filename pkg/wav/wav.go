// Package wav builds minimal PCM WAV containers around raw sample data.
//
// The broadcast switchover controller (internal/switchover) receives the
// warning audio already framed as WAV by the external transcoder; it uses
// this package's Duration and Standard to report the rendered clip's
// length. Encode builds the same 44-byte-header container without pulling
// in a full audio-codec dependency.
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Format describes the PCM layout of a WAV container.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Standard is the format the broadcast switchover controller requires for
// rendered warning audio: pcm_s16le, 48 kHz, stereo.
var Standard = Format{SampleRate: 48000, Channels: 2, BitsPerSample: 16}

func (f Format) blockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

func (f Format) byteRate() int {
	return f.SampleRate * f.blockAlign()
}

// Validate reports whether f describes an encodable PCM layout.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("wav: sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("wav: channel count must be positive, got %d", f.Channels)
	}
	if f.BitsPerSample != 8 && f.BitsPerSample != 16 && f.BitsPerSample != 24 && f.BitsPerSample != 32 {
		return fmt.Errorf("wav: unsupported bits per sample %d", f.BitsPerSample)
	}
	return nil
}

// Encode wraps pcm in a canonical 44-byte-header RIFF/WAVE container.
func Encode(pcm []byte, f Format) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))                    // PCM fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))                     // audio format: PCM
	binary.Write(buf, binary.LittleEndian, uint16(f.Channels))            //nolint:gosec
	binary.Write(buf, binary.LittleEndian, uint32(f.SampleRate))          //nolint:gosec
	binary.Write(buf, binary.LittleEndian, uint32(f.byteRate()))          //nolint:gosec
	binary.Write(buf, binary.LittleEndian, uint16(f.blockAlign()))        //nolint:gosec
	binary.Write(buf, binary.LittleEndian, uint16(f.BitsPerSample))       //nolint:gosec

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// Duration returns the playback duration of pcm, in seconds, under f.
func Duration(pcm []byte, f Format) float64 {
	if f.byteRate() == 0 {
		return 0
	}
	return float64(len(pcm)) / float64(f.byteRate())
}
