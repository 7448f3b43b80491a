// Package ttsengine renders warning scripts to speech and transcodes
// the result to the PCM format DAB audio encoders expect.
package ttsengine

import "context"

// Language is a synthesis voice locale. Only the three warning-capable
// locales in spec.md §4.7 are meaningful inputs; others fall back to
// en-US at the call site.
type Language string

const (
	LangEnglishUS Language = "en-US"
	LangGermanDE  Language = "de-DE"
	LangDutchNL   Language = "nl-NL"
)

// Synthesizer renders text to an MP3 byte stream, mirroring the
// teacher's TTSProvider.Synthesize contract.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, lang Language) ([]byte, error)
	Name() string
}

// Transcoder converts an encoded audio byte stream (e.g. MP3) to
// pcm_s16le/48kHz/stereo WAV, via a bounded-timeout external process.
type Transcoder interface {
	Transcode(ctx context.Context, input []byte) ([]byte, error)
}
