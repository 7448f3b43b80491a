package stream

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/lokutor-ai/cap-dab-gateway/internal/framer"
)

// pumpBlockSize is the read chunk size for packet-mode input sources,
// per §4.4.
const pumpBlockSize = 1024

// InputOpener opens the byte source for a PacketData stream's pump.
// Supplied so tests can substitute an in-memory reader for a real file
// or named pipe.
type InputOpener func(location string) (io.ReadCloser, error)

// PumpRunner runs one goroutine per PacketData stream, reading blocks
// from the stream's configured input and writing framed DAB Packets to
// its IPC FIFO. EOF on the input reopens it rather than ending the pump.
type PumpRunner struct {
	logger *slog.Logger
	opener InputOpener

	mu     sync.Mutex
	cancel map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewPumpRunner returns a PumpRunner that opens inputs with os.Open.
func NewPumpRunner(logger *slog.Logger) *PumpRunner {
	return &PumpRunner{
		logger: logger,
		opener: func(location string) (io.ReadCloser, error) { return os.Open(location) },
		cancel: make(map[string]context.CancelFunc),
	}
}

// WithOpener overrides how the pump opens its input source.
func (r *PumpRunner) WithOpener(o InputOpener) *PumpRunner {
	r.opener = o
	return r
}

// Start begins pumping desc's input through the packet framer into the
// FIFO at fifoPath. A second Start for the same stream name is a no-op.
func (r *PumpRunner) Start(ctx context.Context, desc Descriptor, fifoPath string) {
	r.mu.Lock()
	if _, running := r.cancel[desc.Name]; running {
		r.mu.Unlock()
		return
	}
	pumpCtx, cancel := context.WithCancel(ctx)
	r.cancel[desc.Name] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(pumpCtx, desc, fifoPath)
	}()
}

// Stop cancels the named stream's pump goroutine, if running.
func (r *PumpRunner) Stop(name string) {
	r.mu.Lock()
	cancel, ok := r.cancel[name]
	delete(r.cancel, name)
	r.mu.Unlock()
	if ok {
		cancel()
	}
}

// StopAll cancels every running pump and waits for them to exit.
func (r *PumpRunner) StopAll() {
	r.mu.Lock()
	for name, cancel := range r.cancel {
		cancel()
		delete(r.cancel, name)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *PumpRunner) run(ctx context.Context, desc Descriptor, fifoPath string) {
	out, err := os.OpenFile(fifoPath, os.O_WRONLY, 0)
	if err != nil {
		r.logWarn("pump: open fifo failed", "stream", desc.Name, "error", err)
		return
	}
	defer out.Close()

	fr := framer.New(desc.PacketAddress)
	buf := make([]byte, pumpBlockSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		in, err := r.opener(desc.InputLocation)
		if err != nil {
			r.logWarn("pump: open input failed", "stream", desc.Name, "error", err)
			return
		}
		r.drain(ctx, in, out, fr, buf, desc.Name)
		in.Close()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// drain reads blocks from in until EOF or ctx cancellation, framing and
// writing each one to out.
func (r *PumpRunner) drain(ctx context.Context, in io.Reader, out io.Writer, fr *framer.Framer, buf []byte, name string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := in.Read(buf)
		if n > 0 {
			for _, pkt := range fr.Frame(buf[:n]) {
				if _, werr := out.Write(pkt); werr != nil {
					r.logWarn("pump: write fifo failed", "stream", name, "error", werr)
					return
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				r.logWarn("pump: read input failed", "stream", name, "error", err)
			}
			return
		}
	}
}

func (r *PumpRunner) logWarn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
