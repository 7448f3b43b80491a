package ttsengine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// TranscodeTimeout bounds the external transcode process, per spec.md §4.7/§5.
const TranscodeTimeout = 20 * time.Second

// ProcessTranscoder shells out to an external transcoder (e.g. ffmpeg)
// to convert arbitrary encoded audio to pcm_s16le/48kHz/stereo WAV,
// feeding input on stdin and reading output from stdout.
type ProcessTranscoder struct {
	binary string
	args   func() []string
}

// NewProcessTranscoder returns a Transcoder invoking binary with args()
// appended (reasonable default: an ffmpeg-style invocation producing
// 16-bit 48kHz stereo WAV on stdout from stdin).
func NewProcessTranscoder(binary string, args func() []string) *ProcessTranscoder {
	if args == nil {
		args = defaultTranscodeArgs
	}
	return &ProcessTranscoder{binary: binary, args: args}
}

func defaultTranscodeArgs() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-ar", "48000", "-ac", "2", "-sample_fmt", "s16",
		"-f", "wav", "pipe:1",
	}
}

// Transcode runs the bounded external process, writing input to stdin
// and returning stdout.
func (t *ProcessTranscoder) Transcode(ctx context.Context, input []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, TranscodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.binary, t.args()...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ttsengine: transcode failed: %w: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}
