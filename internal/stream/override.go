package stream

import (
	"context"
	"fmt"
)

// SetAudioFile reconfigures an audio subchannel to read from a file
// (the rendered TTS WAV) with PAD disabled, per §4.7's warning-edge
// reconfiguration of Alarm-advertising services.
func (s *Supervisor) SetAudioFile(ctx context.Context, name, path string) error {
	s.mu.Lock()
	ms, ok := s.streams[name]
	var desc Descriptor
	if ok {
		desc = ms.desc
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("stream %q not configured", name)
	}
	desc.InputKind = InputFile
	desc.InputLocation = path
	desc.PADEnabled = false
	return s.SetConfig(ctx, name, &desc)
}

// SetDataFIFO points a PacketData subchannel's input at the scheduler's
// data-pump FIFO, per §4.7's warning-edge data-subchannel redirection.
func (s *Supervisor) SetDataFIFO(ctx context.Context, name, fifoPath string) error {
	s.mu.Lock()
	ms, ok := s.streams[name]
	var desc Descriptor
	if ok {
		desc = ms.desc
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("stream %q not configured", name)
	}
	desc.InputKind = InputFifo
	desc.InputLocation = fifoPath
	return s.SetConfig(ctx, name, &desc)
}

// RestoreDefault restores a stream's originally configured descriptor,
// per §4.7's quiet-edge restore.
func (s *Supervisor) RestoreDefault(ctx context.Context, name string) error {
	return s.SetConfig(ctx, name, nil)
}
