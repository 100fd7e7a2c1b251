package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/KafClaw/monitor/internal/config"
	"github.com/KafClaw/monitor/internal/dispatch"
	"github.com/KafClaw/monitor/internal/escalation"
	"github.com/KafClaw/monitor/internal/hub"
	"github.com/KafClaw/monitor/internal/instance"
	"github.com/KafClaw/monitor/internal/session"
	"github.com/KafClaw/monitor/internal/timeline"
	webassets "github.com/KafClaw/monitor/web"
	"github.com/spf13/cobra"
)

var (
	serveHost        string
	servePort        int
	serveLogLevel    string
	serveMementoRoot string
	serveDispatch    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitor HTTP server and escalation sweeps",
	RunE:  runServe,
}

var serveSignalNotify = signal.Notify
var serveSignalStop = signal.Stop

// serveReady is called with the bound address once the listener is up.
var serveReady = func(addr string) {}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", -1, "Listen port (overrides server.port)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	serveCmd.Flags().StringVar(&serveMementoRoot, "memento-root", "", "Memento root directory (overrides paths.mementoRoot)")
	serveCmd.Flags().StringVar(&serveDispatch, "dispatch", "", "Dispatch mode: agentd, kafka, none")
}

// runtime is everything serve owns for its lifetime.
type runtime struct {
	cfg      *config.Config
	layout   config.Layout
	lock     *instance.FileLock
	timeline *timeline.Service
	gateway  *dispatch.CommandGateway
	engine   *escalation.Engine
	server   *hub.Server
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := setupLogging(serveLogLevel); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort >= 0 {
		cfg.Server.Port = servePort
	}
	if serveMementoRoot != "" {
		cfg.Paths.MementoRoot = serveMementoRoot
	}
	if serveDispatch != "" {
		cfg.Dispatch.Mode = serveDispatch
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := cmd.OutOrStdout()
	printHeader(out, "🛰️ Memento Monitor")

	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:           rt.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	serveSignalNotify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer serveSignalStop(sigChan)

	// Deferred after rt.Close so it runs first: no sweep may still be
	// dispatching when the gateway and timeline close.
	defer startEngine(ctx, cancel, rt.engine)()

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Serve(ln)
	}()

	addr := ln.Addr().String()
	fmt.Fprintf(out, "📡 Listening on http://%s\n", addr)
	fmt.Fprintf(out, "Memento root: %s\n", rt.layout.MementoRoot)
	fmt.Fprintf(out, "Dispatch:     %s\n", cfg.Dispatch.Mode)
	slog.Info("Monitor started", "addr", addr, "mementoRoot", rt.layout.MementoRoot, "dispatch", cfg.Dispatch.Mode)
	serveReady(addr)

	select {
	case sig := <-sigChan:
		slog.Info("Shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	fmt.Fprintln(out, "Monitor stopped.")
	return nil
}

type sweeper interface {
	Run(ctx context.Context) error
}

// startEngine runs e in the background. The returned stop cancels it and
// blocks until Run has returned.
func startEngine(ctx context.Context, cancel context.CancelFunc, e sweeper) (stop func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Escalation engine stopped", "error", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// buildRuntime resolves paths, takes the instance lock and wires every
// component. Callers must Close the result.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	layout := cfg.Resolve()
	if layout.MementoRoot == "" {
		return nil, errors.New("memento root not resolved: set MEMENTO_ROOT, paths.mementoRoot or a .memento-root file")
	}
	rt := &runtime{cfg: cfg, layout: layout}

	lock, err := instance.Acquire(layout.LockPath)
	if err != nil {
		return nil, err
	}
	rt.lock = lock

	var journal timeline.Journal
	var events hub.EventSource
	if cfg.Timeline.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Timeline.DBPath), 0o755); err != nil {
			rt.Close()
			return nil, fmt.Errorf("create timeline dir: %w", err)
		}
		svc, err := timeline.NewService(cfg.Timeline.DBPath)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.timeline = svc
		journal = svc
		events = svc
	}

	gw, err := buildGateway(cfg, layout)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.gateway = gw

	var notifier escalation.Notifier
	if n := escalation.NewSlackNotifier(cfg.Escalation.SlackWebhookURL, cfg.Escalation.SlackChannel); n != nil {
		notifier = n
	}

	tracker := session.NewTracker()
	rt.engine = escalation.New(escalation.Config{
		IdleTimeout:  cfg.Chat.IdleTimeout(),
		SLA:          cfg.Chat.SLA(),
		IdleInterval: cfg.Chat.IdleSweep(),
		SLAInterval:  cfg.Chat.SLASweep(),
	}, tracker, gw, notifier, journal)

	rt.server = hub.New(hub.Options{
		Layout:       layout,
		Tracker:      tracker,
		Gateway:      gw,
		Journal:      journal,
		Events:       events,
		UI:           uiFS(cfg.Paths.UIDir),
		AuthToken:    cfg.Server.AuthToken,
		AgentdSocket: cfg.Dispatch.AgentdSocket,
	})
	return rt, nil
}

func buildGateway(cfg *config.Config, layout config.Layout) (*dispatch.CommandGateway, error) {
	var waker dispatch.Waker
	if cfg.Dispatch.KickScript != "" {
		waker = dispatch.NewKicker(cfg.Dispatch.KickScript)
	}
	switch cfg.Dispatch.Mode {
	case config.DispatchAgentd, "":
		return dispatch.NewGateway(dispatch.NewAgentdTransport(dispatch.AgentdConfig{
			Python:      cfg.Dispatch.Python,
			Script:      cfg.Dispatch.AgentdScript,
			Socket:      cfg.Dispatch.AgentdSocket,
			MementoRoot: layout.MementoRoot,
			LogPath:     layout.AgentdLog,
			Timeout:     cfg.Dispatch.Timeout(),
			MaxParallel: cfg.Dispatch.MaxParallel,
		}), waker), nil
	case config.DispatchKafka:
		kt, err := dispatch.NewKafkaTransport(dispatch.KafkaConfig{
			Brokers:       cfg.Dispatch.Brokers(),
			Topic:         cfg.Dispatch.KafkaTopic,
			Timeout:       cfg.Dispatch.Timeout(),
			SASLMechanism: cfg.Dispatch.KafkaSASLMechanism,
			Username:      cfg.Dispatch.KafkaUsername,
			Password:      cfg.Dispatch.KafkaPassword,
			TLS:           cfg.Dispatch.KafkaTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("dispatch mode kafka: %w", err)
		}
		return dispatch.NewGateway(kt, waker), nil
	case config.DispatchNone:
		return dispatch.NewGateway(dispatch.Nop{}, nil), nil
	default:
		return nil, fmt.Errorf("unknown dispatch mode %q", cfg.Dispatch.Mode)
	}
}

func uiFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return webassets.UI()
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	if rt.gateway != nil {
		if err := rt.gateway.Close(); err != nil {
			slog.Warn("Close dispatch gateway", "error", err)
		}
	}
	if rt.timeline != nil {
		if err := rt.timeline.Close(); err != nil {
			slog.Warn("Close timeline", "error", err)
		}
	}
	if rt.lock != nil {
		if err := rt.lock.Unlock(); err != nil {
			slog.Warn("Release instance lock", "error", err)
		}
	}
}
