// Package switchover implements the broadcast switchover controller:
// the edge handler that reconfigures a running multiplexer and its
// encoders when the alert scheduler's broadcast state changes.
package switchover

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lokutor-ai/cap-dab-gateway/internal/capxml"
	"github.com/lokutor-ai/cap-dab-gateway/internal/muxctl"
	"github.com/lokutor-ai/cap-dab-gateway/internal/scheduler"
	"github.com/lokutor-ai/cap-dab-gateway/internal/ttsengine"
)

// ServiceLabel is one service's DLS label/shortLabel/PTY triple.
type ServiceLabel struct {
	Label      string
	ShortLabel string
	PTY        int
}

// AlarmService is one service advertising the Alarm announcement flag,
// with the subchannel it swaps to the rendered warning audio and its
// normal/warning label sets.
type AlarmService struct {
	Name       string
	Subchannel string
	Normal     ServiceLabel
	Warning    ServiceLabel
}

// MuxClient is the subset of *muxctl.Client the controller needs,
// narrowed to an interface so tests can substitute a fake mux.
type MuxClient interface {
	Set(ctx context.Context, entity, field, value string) (muxctl.Reply, error)
}

// StreamController is the subset of *stream.Supervisor the controller
// needs to swap subchannel inputs.
type StreamController interface {
	SetAudioFile(ctx context.Context, name, path string) error
	SetDataFIFO(ctx context.Context, name, fifoPath string) error
	RestoreDefault(ctx context.Context, name string) error
}

// Config wires a Controller's collaborators.
type Config struct {
	Mux              MuxClient
	Streams          StreamController
	Synth            ttsengine.Synthesizer
	Transcoder       ttsengine.Transcoder
	AlarmServices    []AlarmService
	AnnouncementName string
	DataSubchannels  []string
	DataPumpFIFO     string
	WarningAudioPath string
	Logger           *slog.Logger
}

// Controller is C7. It is called synchronously from the scheduler's
// single tick loop, so it needs no internal locking for ordering, but
// guards its own one-shot TTS render against concurrent callers anyway.
type Controller struct {
	cfg Config
	mu  sync.Mutex

	audioAvailable bool
	audioPath      string

	// warningApplied and activeFingerprint track the last Warning edge
	// this Controller actually issued mux/TTS commands for, so a
	// repeated Warning edge with an unchanged active set is a no-op per
	// §4.7 instead of re-rendering TTS and reissuing every command.
	warningApplied    bool
	activeFingerprint string
}

// New returns a Controller. It is idempotent: repeated Apply calls with
// the same desired state and active set are safe.
func New(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// Apply implements scheduler.Switchover.
func (c *Controller) Apply(ctx context.Context, desired scheduler.BroadcastState, active []capxml.AlertEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if desired == scheduler.Quiet {
		return c.applyQuiet(ctx)
	}
	return c.applyWarning(ctx, active)
}

func (c *Controller) applyQuiet(ctx context.Context) error {
	var firstErr error
	if _, err := c.cfg.Mux.Set(ctx, "announcements", c.cfg.AnnouncementName+".active", "0"); err != nil {
		c.warn("mux alarm deactivate failed", "error", err)
		firstErr = err
	}
	for _, svc := range c.cfg.AlarmServices {
		c.restoreLabel(ctx, svc)
		if err := c.cfg.Streams.RestoreDefault(ctx, svc.Subchannel); err != nil {
			c.warn("restore default subchannel failed", "subchannel", svc.Subchannel, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.audioAvailable = false
	c.audioPath = ""
	c.warningApplied = false
	c.activeFingerprint = ""
	return firstErr
}

func (c *Controller) applyWarning(ctx context.Context, active []capxml.AlertEvent) error {
	fp := activeFingerprint(active)
	if c.warningApplied && fp == c.activeFingerprint {
		// Already Swapped for this exact composition: the announcement
		// flag is already set and TTS already rendered this script, so
		// re-issuing either is a no-op per §4.7.
		return nil
	}

	var firstErr error

	wavPath, err := c.renderWarningAudio(ctx, active)
	if err != nil {
		c.warn("tts render/transcode failed, proceeding without audio swap", "error", err)
		firstErr = err
	} else {
		c.audioAvailable = true
		c.audioPath = wavPath
	}

	if _, err := c.cfg.Mux.Set(ctx, "announcements", c.cfg.AnnouncementName+".active", "1"); err != nil {
		c.warn("mux alarm activate failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, svc := range c.cfg.AlarmServices {
		c.setWarningLabel(ctx, svc)
		if c.audioAvailable {
			if err := c.cfg.Streams.SetAudioFile(ctx, svc.Subchannel, c.audioPath); err != nil {
				c.warn("audio subchannel swap failed", "subchannel", svc.Subchannel, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}

	for _, name := range c.cfg.DataSubchannels {
		if err := c.cfg.Streams.SetDataFIFO(ctx, name, c.cfg.DataPumpFIFO); err != nil {
			c.warn("data subchannel swap failed", "subchannel", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr == nil {
		c.warningApplied = true
		c.activeFingerprint = fp
	}
	return firstErr
}

// activeFingerprint produces a cheap composition signature so Apply can
// detect that a Warning edge's active set is unchanged from the one it
// last applied, per §4.7's edge-idempotence requirement.
func activeFingerprint(active []capxml.AlertEvent) string {
	var sb strings.Builder
	for _, ev := range active {
		sb.WriteString(ev.Identifier)
		sb.WriteByte('|')
		sb.WriteString(ev.Sender)
		sb.WriteByte('|')
		sb.WriteString(ev.Sent.String())
		sb.WriteByte(';')
	}
	return sb.String()
}

func (c *Controller) restoreLabel(ctx context.Context, svc AlarmService) {
	c.setLabel(ctx, svc.Name, svc.Normal)
}

func (c *Controller) setWarningLabel(ctx context.Context, svc AlarmService) {
	c.setLabel(ctx, svc.Name, svc.Warning)
}

func (c *Controller) setLabel(ctx context.Context, serviceName string, l ServiceLabel) {
	if _, err := c.cfg.Mux.Set(ctx, serviceName, "label", l.Label); err != nil {
		c.warn("set label failed", "service", serviceName, "error", err)
	}
	if _, err := c.cfg.Mux.Set(ctx, serviceName, "shortlabel", l.ShortLabel); err != nil {
		c.warn("set shortlabel failed", "service", serviceName, "error", err)
	}
	if _, err := c.cfg.Mux.Set(ctx, serviceName, "pty", fmt.Sprintf("%d", l.PTY)); err != nil {
		c.warn("set pty failed", "service", serviceName, "error", err)
	}
}

func (c *Controller) warn(msg string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Warn(msg, args...)
	}
}

func (c *Controller) info(msg string, args ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Info(msg, args...)
	}
}
