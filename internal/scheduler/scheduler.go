package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/lokutor-ai/cap-dab-gateway/internal/capxml"
	"github.com/lokutor-ai/cap-dab-gateway/internal/framer"
	"github.com/lokutor-ai/cap-dab-gateway/internal/metrics"
)

// TickInterval is the scheduler loop's cadence, per §4.6 (≤1s).
const TickInterval = 1 * time.Second

// Dequeuer is the consumer side of the intake queue.
type Dequeuer interface {
	TryDequeue() (capxml.AlertEvent, bool)
}

// Switchover is C7's contract, invoked on every edge and on active-set
// composition change while Warning.
type Switchover interface {
	Apply(ctx context.Context, desired BroadcastState, active []capxml.AlertEvent) error
}

// DataWriter delivers framed bytes to one named data subchannel's IPC
// FIFO. A short timeout or non-blocking write is expected of the
// implementation so a stalled subchannel never blocks the tick.
type DataWriter interface {
	Write(subchannel string, framed []byte) error
}

// Scheduler is the C6 tick loop.
type Scheduler struct {
	state      State
	queue      Dequeuer
	switchover Switchover
	dataWriter DataWriter
	subchans   []string
	framers    map[string]*framer.Framer
	logger     *slog.Logger
	metrics    metrics.Metrics
	now        func() time.Time

	// applyFailed records that the last Switchover.Apply returned an
	// error, so the next tick calls Apply again.
	applyFailed bool
}

// Config configures a Scheduler.
type Config struct {
	Queue           Dequeuer
	Switchover      Switchover
	DataWriter      DataWriter
	DataSubchannels []string
	PacketAddress   func(subchannel string) uint16
	Logger          *slog.Logger
	Metrics         metrics.Metrics
}

// New returns a Scheduler in the Quiet state with empty pending/active sets.
func New(cfg Config) *Scheduler {
	framers := make(map[string]*framer.Framer, len(cfg.DataSubchannels))
	for _, name := range cfg.DataSubchannels {
		var addr uint16
		if cfg.PacketAddress != nil {
			addr = cfg.PacketAddress(name)
		}
		framers[name] = framer.New(addr)
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.Noop{}
	}
	return &Scheduler{
		state:      State{LastBroadcastState: Quiet},
		queue:      cfg.Queue,
		switchover: cfg.Switchover,
		dataWriter: cfg.DataWriter,
		subchans:   cfg.DataSubchannels,
		framers:    framers,
		logger:     cfg.Logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Run executes the tick loop until ctx is cancelled. Shutdown is
// cooperative: the in-flight tick completes, broadcast state is left
// as-is, and Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick runs one iteration of the loop's five steps. Exported so the
// process wiring and tests can drive it deterministically.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	start := time.Now()
	defer func() { s.metrics.ObserveTickDuration(time.Since(start)) }()

	activeCompositionBefore := fingerprint(s.state.active)

	// 1. Expiry sweep.
	s.state.expireActive(now)

	// 2. Data rebroadcast.
	if !s.state.isEmpty() {
		s.rebroadcast()
	}

	// 3. Promotion.
	s.state.promotePending(now)

	// 4. Intake drain: at most one event per tick.
	if ev, ok := s.queue.TryDequeue(); ok {
		s.absorb(ev, now)
	}

	// 5. Edge action.
	desired := Quiet
	if len(s.state.active) > 0 {
		desired = Warning
	}
	activeCompositionAfter := fingerprint(s.state.active)
	changed := desired != s.state.LastBroadcastState
	recomposed := desired == Warning && activeCompositionAfter != activeCompositionBefore
	if changed || recomposed || s.applyFailed {
		if err := s.switchover.Apply(ctx, desired, s.state.Active()); err != nil {
			s.applyFailed = true
			s.warn("switchover failed, will retry next tick", "desired", desired, "error", err)
		} else {
			s.applyFailed = false
			s.state.LastBroadcastState = desired
		}
	}

	s.metrics.SetActiveAlertCount(len(s.state.active))
}

func (s *Scheduler) absorb(ev capxml.AlertEvent, now time.Time) {
	switch ev.Kind {
	case capxml.KindAlert:
		switch {
		case !ev.Expires.After(now):
			s.warn("dropping already-expired alert", "identifier", ev.Identifier)
		case !ev.Effective.After(now):
			s.state.addActive(ev)
		default:
			s.state.addPending(ev)
		}
	case capxml.KindCancel:
		if matched := s.state.cancel(ev.References); matched == 0 {
			s.warn("cancel matched no pending/active alert", "sender", ev.Sender, "identifier", ev.Identifier)
		}
	case capxml.KindLinkTest:
		// already acked at intake; no state change.
	}
}

func (s *Scheduler) rebroadcast() {
	var payload []byte
	for _, ev := range s.state.Active() {
		payload = append(payload, ev.Raw...)
	}
	for _, ev := range s.state.Pending() {
		payload = append(payload, ev.Raw...)
	}
	if len(payload) == 0 {
		return
	}
	for _, name := range s.subchans {
		fr := s.framers[name]
		for _, pkt := range fr.Frame(payload) {
			if err := s.dataWriter.Write(name, pkt); err != nil {
				s.warn("data rebroadcast write failed", "subchannel", name, "error", err)
			}
		}
	}
}

// fingerprint produces a cheap composition signature so the scheduler
// can detect that the active set changed shape even though desired
// state (Warning) did not.
func fingerprint(set []capxml.AlertEvent) string {
	var sb []byte
	for _, ev := range set {
		sb = append(sb, ev.Identifier...)
		sb = append(sb, ev.Sender...)
		sb = append(sb, ev.Sent.String()...)
		sb = append(sb, '|')
	}
	return string(sb)
}

func (s *Scheduler) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// State exposes the scheduler's current pending/active snapshot for
// status endpoints and tests.
func (s *Scheduler) State() *State { return &s.state }
