package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lokutor-ai/cap-dab-gateway/internal/metrics"
)

// StopTimeout bounds how long stop() waits for graceful termination
// before force-killing a process, per §4.4.
const StopTimeout = 5 * time.Second

// settleInterval is the pause set_config takes between tearing down the
// old processes and spawning the replacement, giving sockets/FIFOs time
// to unbind.
const settleInterval = 200 * time.Millisecond

// Supervisor owns the full set of configured streams and supervises
// their external encoder processes.
type Supervisor struct {
	launcher Launcher
	encoder  EncoderCommand
	pad      EncoderCommand
	fifoMgr  FIFOAllocator
	logger   *slog.Logger
	pump     *PumpRunner
	metrics  metrics.Metrics

	mu       sync.Mutex
	streams  map[string]*managedStream
	original map[string]Descriptor
}

// FIFOAllocator creates and cleans up the IPC FIFO each stream uses to
// feed its encoder or, for PacketData streams, to receive framed packets.
type FIFOAllocator interface {
	Allocate(streamName string) (path string, cleanup func() error, err error)
}

// NewSupervisor returns a Supervisor with no streams configured yet.
func NewSupervisor(launcher Launcher, encoder, pad EncoderCommand, fifos FIFOAllocator, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		launcher: launcher,
		encoder:  encoder,
		pad:      pad,
		fifoMgr:  fifos,
		logger:   logger,
		streams:  make(map[string]*managedStream),
		original: make(map[string]Descriptor),
		pump:     NewPumpRunner(logger),
		metrics:  metrics.Noop{},
	}
}

// WithMetrics wires a Metrics recorder; every managed stream configured
// afterward reports its state transitions and restarts through it.
func (s *Supervisor) WithMetrics(m metrics.Metrics) *Supervisor {
	if m != nil {
		s.metrics = m
	}
	return s
}

// Configure registers the full set of StreamDescriptors this supervisor
// will manage. Call before StartAll.
func (s *Supervisor) Configure(descs []Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range descs {
		s.original[d.Name] = d
		ms := newManagedStream(d, s.launcher, s.encoder, s.pad, s.logger, s.fifoMgr.Allocate)
		ms.metrics = s.metrics
		s.streams[d.Name] = ms
	}
}

// StartResult is the per-stream outcome of StartAll.
type StartResult struct {
	Name  string
	State State
	Err   error
}

// StartAll allocates a FIFO and spawns the encoder (and PAD encoder, if
// enabled) for every configured stream. PacketData streams additionally
// start a pump goroutine feeding framed packets into the FIFO.
func (s *Supervisor) StartAll(ctx context.Context) []StartResult {
	s.mu.Lock()
	streams := make([]*managedStream, 0, len(s.streams))
	for _, ms := range s.streams {
		streams = append(streams, ms)
	}
	s.mu.Unlock()

	results := make([]StartResult, 0, len(streams))
	for _, ms := range streams {
		state, err := ms.start(ctx)
		results = append(results, StartResult{Name: ms.desc.Name, State: state, Err: err})
		if err == nil && ms.desc.OutputKind == PacketData {
			s.pump.Start(ctx, ms.desc, ms.runtime.FIFOPath)
		}
	}
	return results
}

// StopAll tears down every stream's processes and, for PacketData
// streams, stops the packet pump, in the PAD-then-encoder order §4.4
// requires.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	streams := make([]*managedStream, 0, len(s.streams))
	for _, ms := range s.streams {
		streams = append(streams, ms)
	}
	s.mu.Unlock()

	s.pump.StopAll()
	for _, ms := range streams {
		ms.stop(StopTimeout)
	}
}

// SetConfig atomically replaces a stream's runtime configuration: the
// current processes are joined, a settle interval elapses, then the
// stream is respawned with newDesc. Passing nil restores the originally
// configured descriptor.
func (s *Supervisor) SetConfig(ctx context.Context, name string, newDesc *Descriptor) error {
	s.mu.Lock()
	ms, ok := s.streams[name]
	original, hasOriginal := s.original[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("stream %q not configured", name)
	}

	desc := original
	if newDesc != nil {
		desc = *newDesc
	} else if !hasOriginal {
		return fmt.Errorf("stream %q has no original descriptor to restore", name)
	}
	if err := desc.Validate(); err != nil {
		return err
	}

	s.pump.Stop(name)
	ms.stop(StopTimeout)
	time.Sleep(settleInterval)

	s.mu.Lock()
	ms.desc = desc
	s.mu.Unlock()

	state, err := ms.start(ctx)
	if err != nil {
		return err
	}
	if state == StateRunning && desc.OutputKind == PacketData {
		s.pump.Start(ctx, desc, ms.runtime.FIFOPath)
	}
	return nil
}

// Status reports every configured stream's current State.
func (s *Supervisor) Status() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]State, len(s.streams))
	for name, ms := range s.streams {
		out[name] = ms.status()
	}
	return out
}
