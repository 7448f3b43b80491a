package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lokutor-ai/cap-dab-gateway/internal/metrics"
)

// EncoderCommand builds the argv for the encoder (and, if enabled, PAD
// encoder) process for a descriptor. Supplied by the caller so this
// package stays agnostic of the actual ODR-AudioEnc/ODR-PadEnc binaries
// and their flag conventions.
type EncoderCommand func(d Descriptor, fifoPath string) (name string, args []string)

// managedStream is the supervisor's per-subchannel lifecycle controller.
// It owns the descriptor, the restart policy, and the live Runtime.
type managedStream struct {
	desc     Descriptor
	launcher Launcher
	encoder  EncoderCommand
	pad      EncoderCommand // nil if PAD disabled
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	runtime    *Runtime
	failed     *startFailureTracker
	live       *liveProcesses
	generation uint64
	metrics    metrics.Metrics

	fifoAlloc func(name string) (string, func() error, error)
}

func newManagedStream(d Descriptor, launcher Launcher, encoder, pad EncoderCommand, logger *slog.Logger, fifoAlloc func(string) (string, func() error, error)) *managedStream {
	return &managedStream{
		desc:      d,
		launcher:  launcher,
		encoder:   encoder,
		pad:       pad,
		logger:    logger,
		state:     StateStopped,
		failed:    newStartFailureTracker(2*time.Second, 4),
		fifoAlloc: fifoAlloc,
		metrics:   metrics.Noop{},
	}
}

// setStateLocked updates state and reports the transition for metrics.
// Caller must hold mu.
func (m *managedStream) setStateLocked(s State) {
	m.state = s
	m.metrics.SetStreamState(m.desc.Name, string(s))
}

// liveProcesses is the pair of handles a running managedStream owns.
type liveProcesses struct {
	encoder    Process
	pad        Process
	fifoPath   string
	fifoCloser func() error
}

// start launches the encoder (and PAD encoder, if enabled), recording
// Runtime on success. On failure it updates the restart tracker and
// returns StateFailedToStart once the window's failure budget is spent.
func (m *managedStream) start(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.desc.Validate(); err != nil {
		m.setStateLocked(StateMisconfigured)
		return m.state, err
	}

	fifoPath, closer, err := m.fifoAlloc(m.desc.Name)
	if err != nil {
		return m.recordFailureLocked(fmt.Errorf("allocate fifo: %w", err))
	}

	name, args := m.encoder(m.desc, fifoPath)
	encProc, err := m.launcher.Launch(ctx, name, args...)
	if err != nil {
		closer()
		return m.recordFailureLocked(fmt.Errorf("start encoder: %w", err))
	}

	var padProc Process
	if m.desc.PADEnabled && m.pad != nil {
		padName, padArgs := m.pad(m.desc, fifoPath)
		padProc, err = m.launcher.Launch(ctx, padName, padArgs...)
		if err != nil {
			encProc.Kill()
			closer()
			return m.recordFailureLocked(fmt.Errorf("start pad encoder: %w", err))
		}
	}

	live := &liveProcesses{encoder: encProc, pad: padProc, fifoPath: fifoPath, fifoCloser: closer}
	m.live = live
	m.runtime = &Runtime{
		EncoderPID: encProc.PID(),
		FIFOPath:   fifoPath,
		StartedAt:  time.Now(),
	}
	if padProc != nil {
		m.runtime.PADPID = padProc.PID()
	}
	m.generation++
	gen := m.generation
	m.setStateLocked(StateRunning)
	m.failed.reset()
	go m.watch(ctx, gen, live)
	return m.state, nil
}

// watch blocks on the encoder's exit and, if it dies while still the
// current generation (i.e. stop()/SetConfig didn't already tear it
// down deliberately), treats it as a ProcessFailure: the PAD encoder is
// killed lockstep, per §4.4, and a restart is attempted within the
// backoff window's failure budget.
func (m *managedStream) watch(ctx context.Context, gen uint64, live *liveProcesses) {
	live.encoder.Wait()

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return
	}
	if live.pad != nil {
		waitOrKill(live.pad, StopTimeout)
	}
	m.live = nil
	m.runtime = nil
	state, _ := m.recordFailureLocked(fmt.Errorf("encoder %q exited unexpectedly", m.desc.Name))
	m.mu.Unlock()

	if state == StateStopped {
		m.metrics.StreamRestarted(m.desc.Name)
		m.start(ctx)
	}
}

func (m *managedStream) recordFailureLocked(cause error) (State, error) {
	if m.failed.recordFailure() {
		m.setStateLocked(StateFailedToStart)
		m.logWarn("stream permanently failed to start", "stream", m.desc.Name, "error", cause)
		return m.state, cause
	}
	m.setStateLocked(StateStopped)
	return m.state, cause
}

// stop terminates PAD first (bounded), then the encoder (bounded), then
// force-kills, then releases the FIFO. Lockstep: if the encoder is
// already gone, PAD is still torn down the same way.
func (m *managedStream) stop(stopTimeout time.Duration) {
	m.mu.Lock()
	live := m.live
	m.live = nil
	m.runtime = nil
	m.generation++
	m.setStateLocked(StateStopped)
	m.mu.Unlock()

	if live == nil {
		return
	}
	if live.pad != nil {
		waitOrKill(live.pad, stopTimeout)
	}
	waitOrKill(live.encoder, stopTimeout)
	if live.fifoCloser != nil {
		live.fifoCloser()
	}
}

func waitOrKill(p Process, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		p.Stop()
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		p.Kill()
	}
}

func (m *managedStream) status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *managedStream) logWarn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}
