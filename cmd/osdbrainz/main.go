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

	"golang.org/x/sync/errgroup"

	"osdbrainz/internal/ctrl"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("osdbrainz v%s\n", version)
	fmt.Println("Debounced controller command decoder for video processor OSD control")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  osdbrainz [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Samples a game controller once per poll tick, decodes OSD button")
	fmt.Println("  combinations into debounced commands and publishes them over")
	fmt.Println("  WebSocket. Pad state can also be driven over a Unix socket (osd-ctl).")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file (optional; flags override file values)")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Printf("        Linux input event device for the controller (default %q, empty disables)\n", defaultInputDevice)
	fmt.Println()
	fmt.Println("  -history-length int")
	fmt.Printf("        Debounce threshold; commands need history-length+1 identical polls (default %d)\n", ctrl.HistoryLength)
	fmt.Println()
	fmt.Println("  -poll-hz int")
	fmt.Printf("        Controller poll frequency in Hz (default %d)\n", defaultPollHz)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocket)
	fmt.Println()
	fmt.Println("  -http-port int")
	fmt.Printf("        Port for /ws and /metrics, 0 disables (default %d)\n", defaultHTTPPort)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -log-file string")
	fmt.Println("        Write logs to a rotated file instead of stdout")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  osdbrainz -input-device /dev/input/event3")
	fmt.Println("  osdbrainz -config /etc/osdbrainz.yml -log-level debug")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to input device (run as root or add user to 'input' group)")
	fmt.Println()
}

func main() {
	var (
		configPath    = flag.String("config", "", "YAML config file")
		inputDevice   = flag.String("input-device", defaultInputDevice, "Linux input event device for the controller")
		historyLength = flag.Int("history-length", ctrl.HistoryLength, "Debounce threshold")
		pollHz        = flag.Int("poll-hz", defaultPollHz, "Controller poll frequency in Hz")
		ipcSocketPath = flag.String("ipc-socket", defaultIPCSocket, "Unix domain socket path for IPC")
		httpPort      = flag.Int("http-port", defaultHTTPPort, "Port for /ws and /metrics, 0 disables")
		logLevelStr   = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		logFile       = flag.String("log-file", "", "Write logs to a rotated file")
		showVersion   = flag.Bool("version", false, "Print version and exit")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	var o FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input-device":
			o.InputDevice = inputDevice
		case "history-length":
			o.HistoryLength = historyLength
		case "poll-hz":
			o.PollHz = pollHz
		case "ipc-socket":
			o.IPCSocketPath = ipcSocketPath
		case "http-port":
			o.HTTPPort = httpPort
		case "log-level":
			o.LogLevel = logLevelStr
		case "log-file":
			o.LogFile = logFile
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	out := logOutput(cfg.Logging)
	logger := setupLogger(logLevel, out)
	if c, ok := out.(io.Closer); ok && out != os.Stdout {
		defer c.Close()
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("osdbrainz stopped", "error", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal or a fatal error.
func run(cfg Config, logger *slog.Logger) error {
	dec, err := ctrl.NewDecoder(cfg.Decoder.HistoryLength)
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	keymap, err := cfg.Keymap()
	if err != nil {
		return err
	}

	metrics, metricsHandler, shutdownMetrics, err := initMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			logger.Warn("metrics shutdown", "error", err)
		}
	}()

	// Open input devices before starting anything else so permission
	// problems fail fast.
	files := make([]*os.File, 0, len(cfg.Input.Devices))
	for _, dev := range cfg.Input.Devices {
		f, err := os.Open(dev)
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}
			return fmt.Errorf("open input device %s (run as root or add user to 'input' group): %w", dev, err)
		}
		files = append(files, f)
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	events := make(chan Event, 64)
	broadcasts := make(chan StateBroadcast, 64)

	hub := NewHub(logger, metrics, HubConfig{})

	g.Go(func() error {
		runDaemon(gctx, events, broadcasts, dec, NewDaemonState(dec), cfg.PollInterval(), metrics, logger)
		return nil
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		RunBroadcaster(gctx, hub, broadcasts, logger)
		return nil
	})
	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, events, metrics, logger)
	})

	if cfg.HTTP.Port != 0 {
		mux := newHTTPMux(cfg.HTTP, NewServer(logger, hub, events), metricsHandler)
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.HTTP.Port, mux, logger)
		})
	}

	if len(files) > 0 {
		tr := newPadTranslator(keymap, cfg.Input.HatDPad, cfg.Input.AnalogStick)
		raw := make(chan inputEvent, 64)
		readErr := make(chan error, len(files))

		// The reader blocks in the kernel and is not cancellable; it ends
		// with the process.
		go readInputDevices(files, raw, readErr)

		g.Go(func() error {
			return forwardInput(gctx, tr, raw, readErr, events, metrics)
		})
	}

	logger.Info("listening",
		"input_devices", cfg.Input.Devices,
		"ipc", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port,
		"poll_hz", cfg.Decoder.PollHz,
		"history_length", dec.HistoryLength())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutting down")
	return nil
}

// forwardInput translates device events into pad Events until ctx ends or
// the device reader fails.
func forwardInput(
	ctx context.Context,
	tr *padTranslator,
	raw <-chan inputEvent,
	readErr <-chan error,
	events chan<- Event,
	metrics *Metrics,
) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			return fmt.Errorf("input reader stopped: %w", err)

		case ev := <-raw:
			out := tr.translate(ev)
			metrics.RecordInput(ctx, len(out))
			for _, pe := range out {
				select {
				case events <- pe:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
