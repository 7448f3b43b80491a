package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/cap-dab-gateway/internal/capxml"
	"github.com/lokutor-ai/cap-dab-gateway/internal/config"
	"github.com/lokutor-ai/cap-dab-gateway/internal/intake"
	"github.com/lokutor-ai/cap-dab-gateway/internal/metrics"
	"github.com/lokutor-ai/cap-dab-gateway/internal/muxctl"
	"github.com/lokutor-ai/cap-dab-gateway/internal/scheduler"
	"github.com/lokutor-ai/cap-dab-gateway/internal/stream"
	"github.com/lokutor-ai/cap-dab-gateway/internal/switchover"
	"github.com/lokutor-ai/cap-dab-gateway/internal/ttsengine"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = pflag.String("config", "/etc/capdabd/server.yaml", "path to the server config file")
		strictFlag  = pflag.Bool("strict", false, "override cap.strict_parsing to true")
		listenAddr  = pflag.String("listen", "", "override cap.host:cap.port for the intake server")
		metricsAddr = pflag.String("metrics-listen", ":9090", "address the /metrics and /healthz endpoints bind to")
	)
	pflag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "note: no .env file found, using system environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capdabd: config load failed: %v\n", err)
		return 1
	}
	if *strictFlag {
		cfg.CAP.StrictParsing = true
	}

	logger := newLogger(cfg.General.LogFormat)

	streamCfg, err := config.LoadStreamConfig(cfg.DAB.StreamConfigPath)
	if err != nil {
		logger.Error("stream config load failed", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.NewPrometheus()

	mux := muxctl.New("unix", cfg.DAB.MuxControlSocket, muxctl.WithLogger(logger))
	defer mux.Close()

	fifoAlloc := stream.NewFIFOAllocator(cfg.DAB.FIFODir)
	supervisor := stream.NewSupervisor(stream.NewExecLauncher(), encoderCommand(cfg.DAB.EncoderBinary), padCommand(cfg.DAB.PADEncoderBinary), fifoAlloc, logger)
	supervisor.WithMetrics(met)

	descs := streamCfg.ToDescriptors()
	supervisor.Configure(descs)
	for _, r := range supervisor.StartAll(ctx) {
		if r.Err != nil {
			logger.Error("stream failed to start", "stream", r.Name, "error", r.Err)
		}
	}

	synth := ttsengine.NewHTTPSynthesizer(os.Getenv("TTS_API_HOST"), os.Getenv("TTS_API_KEY"))
	transcoder := ttsengine.NewProcessTranscoder("ffmpeg", nil)

	dataSubchannels := packetDataSubchannelNames(descs)
	dataPumpFIFO := fmt.Sprintf("%s/scheduler-data.fifo", cfg.DAB.FIFODir)

	ctrl := switchover.New(switchover.Config{
		Mux:              mux,
		Streams:          supervisor,
		Synth:            synth,
		Transcoder:       transcoder,
		AlarmServices:    alarmServices(cfg, descs),
		AnnouncementName: cfg.Warning.AnnouncementName,
		DataSubchannels:  dataSubchannels,
		DataPumpFIFO:     dataPumpFIFO,
		Logger:           logger,
	})

	parser := capxml.NewParser(cfg.CAP.StrictParsing)
	ackGen := capxml.NewAckGenerator(cfg.CAP.IdentifierPrefix)
	queue := intake.NewBoundedQueue(cfg.General.QueueLimit)

	server := intake.New(intake.Config{
		Parser:    parser,
		Queue:     queue,
		Ack:       ackGen,
		Strict:    cfg.CAP.StrictParsing,
		AckSender: cfg.CAP.Sender,
		Logger:    logger,
		OnMetric:  intakeMetricHook(met),
	})

	dataWriter := newFIFODataWriter(dataPumpFIFO, logger)
	defer dataWriter.Close()

	sched := scheduler.New(scheduler.Config{
		Queue:           queue,
		Switchover:      ctrl,
		DataWriter:      dataWriter,
		DataSubchannels: dataSubchannels,
		PacketAddress:   packetAddressLookup(descs),
		Logger:          logger,
		Metrics:         met,
	})

	watcher, err := config.NewWatcher(logger, cfg.DAB.StreamConfigPath, cfg.DAB.MuxConfigPath)
	if err != nil {
		logger.Warn("config watcher unavailable, hot reload disabled", "error", err)
	}

	var ready int32
	httpMux := http.NewServeMux()
	httpMux.Handle("/", server)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", met.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&ready) == 0 {
			http.Error(w, "scheduler not yet ticked", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	addr := *listenAddr
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.CAP.Host, cfg.CAP.Port)
	}
	httpServer := &http.Server{Addr: addr, Handler: httpMux}
	metricsServer := &http.Server{Addr: *metricsAddr, Handler: metricsMux}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return runHTTPServer(gctx, httpServer) })
	g.Go(func() error { return runHTTPServer(gctx, metricsServer) })
	g.Go(func() error {
		runSchedulerWithReadiness(gctx, sched, &ready)
		return nil
	})
	if watcher != nil {
		g.Go(func() error {
			watcher.Run(gctx, func(path string) {
				logger.Info("config change detected, reloading stream config", "path", path)
				newStreamCfg, err := config.LoadStreamConfig(cfg.DAB.StreamConfigPath)
				if err != nil {
					logger.Error("reload failed, keeping running config", "error", err)
					return
				}
				applyStreamConfigChanges(gctx, supervisor, streamCfg, newStreamCfg, logger)
				streamCfg = newStreamCfg
			})
			return nil
		})
	}

	<-gctx.Done()
	logger.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)
	if watcher != nil {
		watcher.Close()
	}
	supervisor.StopAll()

	if err := g.Wait(); err != nil {
		logger.Error("component returned an error during shutdown", "error", err)
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func runHTTPServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func runSchedulerWithReadiness(ctx context.Context, sched *scheduler.Scheduler, ready *int32) {
	ticker := time.NewTicker(scheduler.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sched.Tick(ctx, time.Now())
			atomic.StoreInt32(ready, 1)
		}
	}
}

func intakeMetricHook(m metrics.Metrics) func(outcome string) {
	return func(outcome string) {
		switch outcome {
		case "enqueued":
			m.AlertReceived()
		case "queue-full":
			m.AlertDropped()
		}
	}
}

// fifoDataWriter feeds the scheduler's framed data-subchannel payloads
// into the shared data-pump FIFO that switchover redirects every
// PacketData subchannel's input to while Warning. The descriptor
// writes non-blocking so a subchannel with no reader attached yet
// never stalls a tick.
type fifoDataWriter struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
	fd *os.File
}

func newFIFODataWriter(path string, logger *slog.Logger) *fifoDataWriter {
	return &fifoDataWriter{path: path, logger: logger}
}

func (w *fifoDataWriter) Write(subchannel string, framed []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fd == nil {
		fd, err := os.OpenFile(w.path, os.O_WRONLY|os.O_NONBLOCK, 0)
		if err != nil {
			return fmt.Errorf("open data pump fifo: %w", err)
		}
		w.fd = fd
	}
	if _, err := w.fd.Write(framed); err != nil {
		w.fd.Close()
		w.fd = nil
		return fmt.Errorf("write data pump fifo (subchannel %s): %w", subchannel, err)
	}
	return nil
}

func (w *fifoDataWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fd == nil {
		return nil
	}
	err := w.fd.Close()
	w.fd = nil
	return err
}

func packetDataSubchannelNames(descs []stream.Descriptor) []string {
	var names []string
	for _, d := range descs {
		if d.OutputKind == stream.PacketData {
			names = append(names, d.Name)
		}
	}
	return names
}

func packetAddressLookup(descs []stream.Descriptor) func(string) uint16 {
	addrs := make(map[string]uint16, len(descs))
	for _, d := range descs {
		addrs[d.Name] = d.PacketAddress
	}
	return func(name string) uint16 { return addrs[name] }
}

func alarmServices(cfg *config.ServerConfig, descs []stream.Descriptor) []switchover.AlarmService {
	if !cfg.Warning.AlarmEnabled {
		return nil
	}
	var services []switchover.AlarmService
	for _, d := range descs {
		if d.OutputKind == stream.PacketData {
			continue
		}
		services = append(services, switchover.AlarmService{
			Name:       d.Name,
			Subchannel: d.Name,
			Normal: switchover.ServiceLabel{
				Label:      d.Name,
				ShortLabel: d.Name,
			},
			Warning: switchover.ServiceLabel{
				Label:      cfg.Warning.Label,
				ShortLabel: cfg.Warning.ShortLabel,
				PTY:        cfg.Warning.PTY,
			},
		})
	}
	return services
}

func encoderCommand(binary string) stream.EncoderCommand {
	return func(d stream.Descriptor, fifoPath string) (string, []string) {
		return binary, []string{"-i", d.InputLocation, "-b", fmt.Sprintf("%d", d.BitrateKbps), "-o", fifoPath}
	}
}

func padCommand(binary string) stream.EncoderCommand {
	if binary == "" {
		return nil
	}
	return func(d stream.Descriptor, fifoPath string) (string, []string) {
		return binary, []string{"-o", fifoPath, "-l", fmt.Sprintf("%d", d.PADLength)}
	}
}

// applyStreamConfigChanges diffs the previous and newly loaded stream
// configs and pushes each changed entry through SetConfig, per spec.md's
// resolution of hot-reload in favor of targeted SetConfig calls over a
// full process restart.
func applyStreamConfigChanges(ctx context.Context, supervisor *stream.Supervisor, oldCfg, newCfg config.StreamConfig, logger *slog.Logger) {
	for name, entry := range newCfg {
		if old, ok := oldCfg[name]; ok && old == entry {
			continue
		}
		desc := config.StreamConfig{name: entry}.ToDescriptors()[0]
		if err := supervisor.SetConfig(ctx, name, &desc); err != nil {
			logger.Error("hot reload failed to apply stream config", "stream", name, "error", err)
		}
	}
}
