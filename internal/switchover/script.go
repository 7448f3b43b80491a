package switchover

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lokutor-ai/cap-dab-gateway/internal/capxml"
	"github.com/lokutor-ai/cap-dab-gateway/internal/ttsengine"
	"github.com/lokutor-ai/cap-dab-gateway/pkg/wav"
)

// wavHeaderSize is the canonical RIFF/WAVE header size pkg/wav.Encode
// writes, matching the fixed ffmpeg invocation defaultTranscodeArgs
// uses (pcm_s16le, 48kHz, stereo, no extra chunks).
const wavHeaderSize = 44

var supportedLanguages = map[string]ttsengine.Language{
	"en-US": ttsengine.LangEnglishUS,
	"de-DE": ttsengine.LangGermanDE,
	"nl-NL": ttsengine.LangDutchNL,
}

// chooseLanguage returns active[0].Language if it is one of the
// supported warning locales, else en-US, per §4.7.
func chooseLanguage(active []capxml.AlertEvent) ttsengine.Language {
	if len(active) == 0 {
		return ttsengine.LangEnglishUS
	}
	if lang, ok := supportedLanguages[active[0].Language]; ok {
		return lang
	}
	return ttsengine.LangEnglishUS
}

// composeScript renders the warning script per §4.7: a single-alert
// template or a multi-alert template with per-alert message/description
// pairs, followed by a trailing replay marker.
func composeScript(active []capxml.AlertEvent) string {
	var sb strings.Builder
	switch len(active) {
	case 0:
		return ""
	case 1:
		fmt.Fprintf(&sb, "<pause 2s> %s. <pause 0.5s> {end-of-message}", active[0].Description)
	default:
		for i, a := range active {
			fmt.Fprintf(&sb, "<pause 2s> {message-%d}. <pause 1s> %s. <pause 0.5s> {end-of-message-%d}", i+1, a.Description, i+1)
		}
	}
	sb.WriteString(" <pause 2s> {replay-follows}")
	return sb.String()
}

// renderWarningAudio synthesizes the active set's warning script and
// transcodes it to a WAV file, returning the file's path.
func (c *Controller) renderWarningAudio(ctx context.Context, active []capxml.AlertEvent) (string, error) {
	lang := chooseLanguage(active)
	script := composeScript(active)

	mp3, err := c.cfg.Synth.Synthesize(ctx, script, lang)
	if err != nil {
		return "", fmt.Errorf("switchover: synthesize: %w", err)
	}
	rendered, err := c.cfg.Transcoder.Transcode(ctx, mp3)
	if err != nil {
		return "", fmt.Errorf("switchover: transcode: %w", err)
	}

	if len(rendered) > wavHeaderSize {
		seconds := wav.Duration(rendered[wavHeaderSize:], wav.Standard)
		c.info("rendered warning audio", "seconds", seconds, "alerts", len(active))
	}

	path := c.warningAudioPath()
	if err := os.WriteFile(path, rendered, 0o600); err != nil {
		return "", fmt.Errorf("switchover: write warning audio: %w", err)
	}
	return path, nil
}

func (c *Controller) warningAudioPath() string {
	if c.cfg.WarningAudioPath != "" {
		return c.cfg.WarningAudioPath
	}
	return "/tmp/cap-dab-gateway-warning.wav"
}
