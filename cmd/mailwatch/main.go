package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/mailwatch/internal/admin"
	"github.com/nixlim/mailwatch/internal/alerts"
	"github.com/nixlim/mailwatch/internal/archive"
	"github.com/nixlim/mailwatch/internal/config"
	"github.com/nixlim/mailwatch/internal/logging"
	"github.com/nixlim/mailwatch/internal/metrics"
	"github.com/nixlim/mailwatch/internal/monitor"
	"github.com/nixlim/mailwatch/internal/receiver"
	"github.com/nixlim/mailwatch/internal/storage"
	"github.com/nixlim/mailwatch/internal/tui"
)

func main() {
	configFlag := flag.String("config", "", "Path to the TOML config file (default ~/.config/mailwatch/config.toml)")
	headlessFlag := flag.Bool("headless", false, "Run without the terminal dashboard until SIGINT/SIGTERM")
	debugFlag := flag.String("debug", "", "Write received send attempts (JSONL) to the specified file path")
	testEmailFlag := flag.String("test-email", "", "Send one verification email to this address and exit")
	flag.Parse()

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mailwatch: config error: %v\n", err)
		os.Exit(1)
	}

	if *testEmailFlag != "" {
		os.Exit(RunTestEmail(cfg, *testEmailFlag))
	}

	// With the dashboard on screen, logs only go to log.file.
	var logOut io.Writer
	if *headlessFlag {
		logOut = os.Stderr
	}
	logger, closeLog, err := logging.Open(cfg.Log, logOut)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mailwatch: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	log.SetOutput(io.Discard)

	store, isPersistent := storage.NewStore(cfg.Storage, storage.WithLogger(logger.With().Str("component", "storage").Logger()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resetHooks := []monitor.Option{monitor.WithResetHook(store.PersistSummary)}
	var archiver *archive.Archiver
	if cfg.Archive.S3Bucket != "" {
		archiver, err = archive.New(ctx, cfg.Archive, archive.WithLogger(logger.With().Str("component", "archive").Logger()))
		if err != nil {
			logger.Warn().Err(err).Msg("S3 archive disabled")
		} else {
			resetHooks = append(resetHooks, monitor.WithResetHook(archiver.Archive))
		}
	}

	health := &healthAdapter{}
	engine := alerts.NewEngine(
		alerts.WithPersister(store),
		alerts.WithHealthSource(health),
		alerts.WithNotifier(alerts.NewLogNotifier(logger)),
		alerts.WithNotifier(alerts.NewPlatformNotifier(cfg.Alerts.Notifications.SystemNotify, logger)),
		alerts.WithLogger(logger.With().Str("component", "alerts").Logger()),
		alerts.WithDedupWindow(time.Duration(cfg.Alerts.DedupMinutes)*time.Minute),
		alerts.WithEvaluateInterval(time.Duration(cfg.Alerts.EvaluateIntervalSeconds)*time.Second),
	)

	monOpts := append([]monitor.Option{
		monitor.WithLogger(logger.With().Str("component", "monitor").Logger()),
		monitor.WithNotifier(engine),
		monitor.WithEventHook(store.RecordEvent),
	}, resetHooks...)
	mon := monitor.New(monitorConfig(cfg), monOpts...)
	health.mon = mon

	scheduler := monitor.NewScheduler(mon,
		monitor.WithInterval(cfg.Monitor.ResetInterval()),
		monitor.WithSchedulerLogger(logger.With().Str("component", "scheduler").Logger()),
	)

	recvOpts := []receiver.Option{receiver.WithLogger(logger.With().Str("component", "receiver").Logger())}
	if *debugFlag != "" {
		debugFile, err := os.OpenFile(*debugFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mailwatch: failed to open debug log %q: %v\n", *debugFlag, err)
			os.Exit(1)
		}
		defer debugFile.Close()
		recvOpts = append(recvOpts, receiver.WithDebugLogger(receiver.NewFileLogger(debugFile)))
	}
	grpcRecv := receiver.NewGRPCReceiver(cfg.Receiver, mon, recvOpts...)
	httpRecv := receiver.NewHTTPReceiver(cfg.Receiver, mon, recvOpts...)

	var adminSrv *admin.Server
	if cfg.Admin.Enabled {
		exporter := metrics.NewExporter(metrics.NewCollector(mon, metrics.WithDroppedWrites(store.DroppedWrites)))
		adminSrv = admin.New(cfg.Admin, mon,
			admin.WithHistory(store),
			admin.WithMetrics(exporter.Handler()),
			admin.WithLogger(logger.With().Str("component", "admin").Logger()),
		)
	}

	shutdownMgr := tui.NewShutdownManager()
	shutdownMgr.StopIngest = func(context.Context) error {
		grpcRecv.Stop()
		httpRecv.Stop()
		if adminSrv != nil {
			adminSrv.Stop()
		}
		return nil
	}
	shutdownMgr.StopBackground = func() {
		scheduler.Stop()
		engine.Stop()
	}
	shutdownMgr.Cleanup = func() {
		if archiver != nil {
			archiver.Close(10 * time.Second)
		}
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("closing history store")
		}
	}

	var shutdownOnce sync.Once
	shutdown := func() {
		shutdownOnce.Do(func() {
			if err := shutdownMgr.Shutdown(); err != nil {
				logger.Error().Err(err).Msg("shutdown")
			}
		})
	}

	if err := startServers(ctx, grpcRecv, httpRecv, adminSrv); err != nil {
		fmt.Fprintf(os.Stderr, "mailwatch: %v\n", err)
		shutdown()
		os.Exit(1)
	}
	scheduler.Start(ctx)
	engine.Start(ctx)

	logger.Info().
		Int("daily_quota", cfg.Quota.DailyLimit).
		Bool("persistent", isPersistent).
		Msg("mailwatch started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *headlessFlag {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		shutdown()
		return
	}

	model := tui.NewModel(*cfg,
		tui.WithMonitor(mon),
		tui.WithAlertProvider(engine),
		tui.WithHistoryProvider(store),
		tui.WithPersistenceFlag(isPersistent),
		tui.WithOnShutdown(shutdown),
	)

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
	)

	go func() {
		select {
		case <-sigCh:
			shutdown()
			p.Quit()
		case <-ctx.Done():
			return
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "mailwatch: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	var (
		res *config.LoadResult
		err error
	)
	if path == "" {
		res, err = config.Load()
	} else {
		res, err = config.LoadFrom(path)
	}
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "mailwatch: config warning: %s\n", w)
	}
	return &res.Config, nil
}

type server interface {
	Start(ctx context.Context) error
}

func startServers(ctx context.Context, grpcRecv, httpRecv server, adminSrv *admin.Server) error {
	if err := grpcRecv.Start(ctx); err != nil {
		return fmt.Errorf("starting gRPC receiver: %w", err)
	}
	if err := httpRecv.Start(ctx); err != nil {
		return fmt.Errorf("starting HTTP receiver: %w", err)
	}
	if adminSrv != nil {
		if err := adminSrv.Start(ctx); err != nil {
			return fmt.Errorf("starting admin API: %w", err)
		}
	}
	return nil
}
