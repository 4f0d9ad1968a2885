package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/audiolink/wavebridge/internal/backend"
	"github.com/audiolink/wavebridge/internal/codec"
	"github.com/audiolink/wavebridge/internal/config"
	"github.com/audiolink/wavebridge/internal/database"
	"github.com/audiolink/wavebridge/internal/health"
	internalhttp "github.com/audiolink/wavebridge/internal/http"
	"github.com/audiolink/wavebridge/internal/http/handlers"
	"github.com/audiolink/wavebridge/internal/jobs"
	"github.com/audiolink/wavebridge/internal/notify"
	"github.com/audiolink/wavebridge/internal/player"
	"github.com/audiolink/wavebridge/internal/sink"
	"github.com/audiolink/wavebridge/internal/state"
	"github.com/audiolink/wavebridge/internal/stream"
	"github.com/audiolink/wavebridge/internal/transport"
	"github.com/audiolink/wavebridge/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wavebridge daemon",
	Long: `Start the wavebridge daemon.

The daemon connects to the audio backend, keeps the stream alive
through drops and restarts, and exposes the local control API:
- stream lifecycle operations (start, stop, pause, resume)
- visibility events from the player surface
- combined diagnostic status and health check
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind the control API to")
	serveCmd.Flags().Int("port", 8176, "Port for the control API")
	serveCmd.Flags().String("backend-url", "", "Audio backend base URL")
	serveCmd.Flags().String("sink-output", "", "Sink output (stdout, discard, or a FIFO path)")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("backend.base_url", serveCmd.Flags().Lookup("backend-url"))
	mustBindPFlag("sink.output", serveCmd.Flags().Lookup("sink-output"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing state database: %w", err)
	}
	defer db.Close()

	store, err := state.NewStore(db, logger)
	if err != nil {
		return fmt.Errorf("initializing state store: %w", err)
	}

	// Player identity drives buffering profiles and restore pacing.
	family := player.DetectFamily(cfg.Player.Ident)
	support := player.NewSupport(cfg.Player.SupportedFormats)
	defaultFormat, ok := codec.Parse(cfg.Player.DefaultFormat)
	if !ok {
		defaultFormat = codec.Fallback
	}
	negotiator := codec.NewNegotiator(support, defaultFormat, logger)

	backendClient := backend.New(cfg.Backend, logger)

	sinkOut, sinkCloser, err := openSinkOutput(cfg.Sink.Output)
	if err != nil {
		return fmt.Errorf("opening sink output: %w", err)
	}
	if sinkCloser != nil {
		defer sinkCloser.Close()
	}
	audioSink := sink.NewHTTPSink(sinkOut, logger)

	var realtime transport.RealtimeTransport
	if cfg.Backend.RealtimeEnabled {
		realtime = transport.NewRealtime(backendClient.SignalURL(), logger)
	}
	selector := transport.NewSelector(
		backendClient, realtime, negotiator, family,
		cfg.Backend.RealtimeEnabled, logger,
	)

	notifier := notify.NewCenter(logger)
	engine := stream.NewEngine(selector, audioSink, cfg.Stream, notifier, logger)
	defer engine.Close()

	manager := state.NewManager(
		store, engine, audioSink, family,
		nil, backendClient, cfg.Stream, logger,
	)

	// Persist a snapshot whenever the session settles into a state
	// worth restoring. The listener runs under the engine lock, so the
	// write happens on its own goroutine.
	engine.OnStateChange(func(old, next stream.State, sess stream.Session) {
		if next != stream.StateStreaming && next != stream.StatePaused {
			return
		}
		format := sess.Format
		go func() {
			if err := manager.SaveSnapshot(context.Background(), format); err != nil {
				logger.Warn("saving snapshot on state change", slog.Any("error", err))
			}
		}()
	})

	monitor := health.NewMonitor(engine, manager, cfg.Stream, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Restore before serving: the fast path first, the full rebuild
	// when the fast window has passed.
	if started, err := manager.FastRestore(ctx); err != nil {
		logger.Warn("fast restore failed", slog.Any("error", err))
	} else if !started {
		if _, err := manager.FullRestore(ctx); err != nil {
			logger.Warn("full restore failed", slog.Any("error", err))
		}
	}

	go monitor.Run(ctx)

	scheduler := jobs.NewScheduler(logger)
	if err := registerJobs(scheduler, cfg.Jobs, engine, manager, backendClient, logger); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	serverConfig := internalhttp.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	if cfg.Server.ReadTimeout > 0 {
		serverConfig.ReadTimeout = cfg.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout > 0 {
		serverConfig.WriteTimeout = cfg.Server.WriteTimeout
	}
	if cfg.Server.ShutdownTimeout > 0 {
		serverConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}
	server := internalhttp.NewServer(serverConfig, logger, version.Version)

	streamHandler := handlers.NewStreamHandler(engine, manager, monitor, defaultFormat, logger)
	streamHandler.Register(server.API())

	statusHandler := handlers.NewStatusHandler(engine, backendClient, db, version.Version, logger)
	statusHandler.Register(server.API())

	noticesHandler := handlers.NewNoticesHandler(notifier)
	noticesHandler.Register(server.API())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))

		// Capture the session before teardown so a quick restart can
		// pick up where this one left off.
		if err := manager.SaveSnapshot(context.Background(), engine.Session().Format); err != nil {
			logger.Warn("saving snapshot on shutdown", slog.Any("error", err))
		}
		cancel()
	}()

	logger.Info("starting wavebridge daemon",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("player_family", string(family)),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// registerJobs wires the periodic maintenance jobs.
func registerJobs(
	scheduler *jobs.Scheduler,
	cfg config.JobsConfig,
	engine *stream.Engine,
	manager *state.Manager,
	backendClient *backend.Client,
	logger *slog.Logger,
) error {
	if err := scheduler.Add("status-poll", cfg.StatusPollCron, func(ctx context.Context) error {
		if !engine.State().InFlight() {
			return nil
		}
		status, err := backendClient.StreamStatus(ctx)
		if err != nil {
			return err
		}
		logger.Debug("backend stream status",
			slog.Bool("is_active", status.IsActive),
			slog.String("status", status.StatusText),
			slog.Int("active_clients", status.ActiveClients),
		)
		return nil
	}); err != nil {
		return err
	}

	if err := scheduler.Add("snapshot-refresh", cfg.SnapshotRefreshCron, func(ctx context.Context) error {
		return manager.SaveSnapshot(ctx, engine.Session().Format)
	}); err != nil {
		return err
	}

	if err := scheduler.Add("snapshot-janitor", cfg.SnapshotJanitorCron, func(ctx context.Context) error {
		return manager.PruneStale(ctx)
	}); err != nil {
		return err
	}

	return nil
}

// openSinkOutput resolves the sink output target. A path is opened for
// writing; typically a FIFO the player reads from.
func openSinkOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "discard":
		return io.Discard, nil, nil
	default:
		f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", output, err)
		}
		return f, f, nil
	}
}
