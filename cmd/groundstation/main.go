package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"groundstation/pkg/bridge/foxglove"
	"groundstation/pkg/config"
	"groundstation/pkg/dashboard"
	"groundstation/pkg/engine"
	"groundstation/pkg/logger"
	"groundstation/pkg/observability"
	"groundstation/pkg/station"
	"groundstation/pkg/timebase"
	"groundstation/pkg/transport"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		return runHeadless([]string{}, stdout, stderr)
	}

	switch args[0] {
	case "run":
		return runHeadless(args[1:], stdout, stderr)
	case "dashboard":
		return runDashboard(args[1:], stdout, stderr)
	case "ports":
		return runPorts(args[1:], stdout, stderr, transport.ListSerialPorts)
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintln(stderr, "unknown command:", args[0])
		printUsage(stderr)
		return 2
	}
}

type options struct {
	configPath string
	mock       bool
	mockHz     int
	jsonl      bool
	bridge     bool
	metrics    string
	logLevel   string
	logFormat  string
}

func registerFlags(fs *flag.FlagSet, jsonlDefault bool) *options {
	o := &options{}
	fs.StringVar(&o.configPath, "config", config.DefaultConfigPath, "TOML config path")
	fs.BoolVar(&o.mock, "mock", false, "simulate a vehicle instead of opening a serial port")
	fs.IntVar(&o.mockHz, "mock-hz", 20, "simulated vehicle packet rate")
	fs.BoolVar(&o.jsonl, "jsonl", jsonlDefault, "write every record to stdout as JSON lines")
	fs.BoolVar(&o.bridge, "bridge", false, "enable the Foxglove websocket bridge")
	fs.StringVar(&o.metrics, "metrics", "", "serve Prometheus metrics on this address")
	fs.StringVar(&o.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	fs.StringVar(&o.logFormat, "log-format", "", "override log format (text, json)")
	return o
}

// pipeline wires the link supervisor to a station and its sinks.
type pipeline struct {
	cfg     config.StationConfig
	logger  *slog.Logger
	closer  io.Closer
	events  *transport.Queue
	hub     *engine.Hub
	station *station.Station
}

func newPipeline(ctx context.Context, o *options, stdout io.Writer, logOut io.Writer) (*pipeline, error) {
	cfg, _, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if o.bridge {
		cfg.Bridge.Enabled = true
	}
	if o.metrics != "" {
		cfg.Metrics.Addr = o.metrics
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, closer, err := observability.NewLogger(cfg.Log.Observability(), logOut)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewLinkMetrics(reg)

	hub := engine.NewHub()
	go hub.Run(ctx)

	events := transport.NewQueue()
	locator := transport.NewLocator(transport.ListSerialPorts)
	locator.VID = cfg.Link.VID
	locator.PID = cfg.Link.PID
	locator.Logger = log
	open := transport.SerialOpener(cfg.Link.Baud, cfg.Link.ReadTimeoutDuration())
	if o.mock {
		mock := newMockLink(ctx, o.mockHz)
		locator.Enumerate = mock.enumerate
		open = mock.open
		log.Info("using simulated vehicle", "hz", o.mockHz)
	}

	transport.StartSupervisor(ctx, events,
		transport.WithLocator(locator),
		transport.WithOpener(open),
		transport.WithPollInterval(cfg.Link.PollEvery()),
		transport.WithBufferSize(cfg.Link.BufferSize),
		transport.WithProbeInterval(cfg.Link.ProbeEvery()),
		transport.WithLogger(log),
		transport.WithMetrics(metrics),
	)

	tm := timebase.NewManager(timebase.WithLogger(log))
	st := station.New(
		station.WithTimeManager(tm),
		station.WithPublisher(hub),
		station.WithLogger(log),
		station.WithBasis(cfg.Dashboard.Basis()),
	)

	if o.jsonl {
		go logger.NewJSONLWriter(stdout).Consume(ctx, hub.Subscribe())
	}

	if cfg.Bridge.Enabled {
		srv := foxglove.NewServer(foxglove.Config{
			WSAddr:      cfg.Bridge.WSAddr,
			Name:        cfg.Bridge.Name,
			TopicPrefix: cfg.Bridge.TopicPrefix,
			SendBuf:     cfg.Bridge.SendBuf,
		}, hub, foxglove.WithLogger(log))
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error("foxglove bridge stopped", "err", err)
			}
		}()
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := observability.ServeMetrics(ctx, cfg.Metrics.Addr, reg, log); err != nil {
				log.Error("metrics server stopped", "err", err)
			}
		}()
	}

	return &pipeline{
		cfg:     cfg,
		logger:  log,
		closer:  closer,
		events:  events,
		hub:     hub,
		station: st,
	}, nil
}

func runHeadless(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := registerFlags(fs, true)
	duration := fs.Duration("duration", 0, "stop after this long (0 runs until interrupted)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	p, err := newPipeline(ctx, o, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "startup failed:", err)
		return 1
	}
	defer p.closer.Close()

	p.logger.Info("ground station started", "config", p.cfg.ConfigPath())
	err = p.station.Run(ctx, p.events, p.cfg.Dashboard.RefreshEvery())
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		p.logger.Error("station stopped", "err", err)
		return 1
	}
	// Let sinks flush what the last drain published.
	time.Sleep(50 * time.Millisecond)
	p.logger.Info("ground station stopped")
	return 0
}

func runDashboard(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := registerFlags(fs, false)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The terminal belongs to the dashboard; logs only go to the
	// configured file.
	p, err := newPipeline(ctx, o, io.Discard, io.Discard)
	if err != nil {
		fmt.Fprintln(stderr, "startup failed:", err)
		return 1
	}
	defer p.closer.Close()

	if err := dashboard.Run(ctx, p.station, p.events, p.cfg.Dashboard.RefreshEvery()); err != nil {
		fmt.Fprintln(stderr, "dashboard failed:", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  groundstation run       [--config groundstation.toml] [--mock] [--jsonl] [--bridge] [--metrics addr] [--duration 0]")
	fmt.Fprintln(w, "  groundstation dashboard [--config groundstation.toml] [--mock] [--bridge] [--metrics addr]")
	fmt.Fprintln(w, "  groundstation ports")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run        connect to the vehicle and stream records as JSON lines")
	fmt.Fprintln(w, "  dashboard  interactive terminal status view")
	fmt.Fprintln(w, "  ports      list serial ports and mark the vehicle")
}
