package wav

import (
	"bytes"
	"testing"
)

func TestEncodeHeader(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	out, err := Encode(pcm, Standard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !bytes.HasPrefix(out, []byte("RIFF")) {
		t.Errorf("expected RIFF prefix")
	}
	if !bytes.Contains(out, []byte("WAVE")) {
		t.Errorf("expected WAVE format identifier")
	}

	expectedLen := 44 + len(pcm)
	if len(out) != expectedLen {
		t.Errorf("expected length %d, got %d", expectedLen, len(out))
	}
}

func TestEncodeRejectsInvalidFormat(t *testing.T) {
	_, err := Encode([]byte{1, 2}, Format{SampleRate: 0, Channels: 1, BitsPerSample: 16})
	if err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestDuration(t *testing.T) {
	f := Format{SampleRate: 48000, Channels: 2, BitsPerSample: 16}
	pcm := make([]byte, f.byteRate()) // exactly one second
	if d := Duration(pcm, f); d != 1.0 {
		t.Errorf("expected 1.0s, got %v", d)
	}
}
