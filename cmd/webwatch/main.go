// Command webwatch runs the page change monitor, either as a single
// batch cycle or as a long-running service with an hourly schedule.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yoshidak/webwatch/internal/api"
	"github.com/yoshidak/webwatch/internal/clock/system"
	"github.com/yoshidak/webwatch/internal/config"
	"github.com/yoshidak/webwatch/internal/cycle"
	"github.com/yoshidak/webwatch/internal/detector"
	collyfetcher "github.com/yoshidak/webwatch/internal/fetcher/colly"
	"github.com/yoshidak/webwatch/internal/fetcher/headless"
	"github.com/yoshidak/webwatch/internal/hash/sha256"
	hdetector "github.com/yoshidak/webwatch/internal/headless/detector"
	"github.com/yoshidak/webwatch/internal/logging"
	"github.com/yoshidak/webwatch/internal/metrics"
	"github.com/yoshidak/webwatch/internal/notify"
	"github.com/yoshidak/webwatch/internal/notify/push"
	notifypubsub "github.com/yoshidak/webwatch/internal/notify/pubsub"
	"github.com/yoshidak/webwatch/internal/oracle/gemini"
	"github.com/yoshidak/webwatch/internal/ratelimit"
	"github.com/yoshidak/webwatch/internal/resolver"
	"github.com/yoshidak/webwatch/internal/rowstore/memory"
	"github.com/yoshidak/webwatch/internal/rowstore/postgres"
	"github.com/yoshidak/webwatch/internal/rowstore/sheets"
	"github.com/yoshidak/webwatch/internal/watch"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	serve := flag.Bool("serve", false, "run the hourly scheduler and ops server instead of a single cycle")
	flag.Parse()

	if err := run(*configPath, *serve); err != nil {
		fmt.Fprintf(os.Stderr, "webwatch: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, serve bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	notifier, closeNotify, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotify()

	deps := cycle.Deps{
		Store:    store,
		Resolver: buildResolver(cfg, logger),
		Probe: collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   cfg.FetchTimeout(),
		}),
		Classifier: detector.New(sha256.New(), detector.Config{
			LargePageThreshold: cfg.Monitor.LargePageThreshold,
			MinChangeChars:     cfg.Monitor.MinChangeChars,
			MinChangeRatio:     cfg.Monitor.MinChangeRatio,
		}),
		Notifier: notifier,
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.RateLimit.RPS,
			DefaultBurst: cfg.RateLimit.Burst,
		}),
		Clock:  system.New(),
		Logger: logger,
	}

	if cfg.Headless.Enabled {
		headlessFetcher, err := headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("init headless fetcher: %w", err)
		}
		defer headlessFetcher.Close()
		deps.Headless = headlessFetcher
		deps.Promoter = hdetector.NewHeuristic(cfg.Headless.PromotionThresh)
	}

	runner := cycle.New(deps, cycle.Config{
		Concurrency:   cfg.Monitor.Concurrency,
		TargetTimeout: cfg.TargetTimeout(),
		Location:      cfg.Location(),
	})

	if serve {
		return runServe(ctx, cfg, runner, store, logger)
	}

	summary, err := runner.TryRun(ctx)
	if err != nil {
		return fmt.Errorf("run cycle: %w", err)
	}
	logger.Info("cycle complete",
		zap.Int("total", summary.Total),
		zap.Int("notified", summary.Notified),
		zap.Int("errors", summary.Errors),
	)
	return nil
}

func buildStore(ctx context.Context, cfg config.Config) (watch.RowStore, func(), error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		store, err := postgres.New(ctx, postgres.Config{
			DSN:   cfg.Store.DSN,
			Table: cfg.Store.Table,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres store: %w", err)
		}
		return store, store.Close, nil
	case config.StoreSheets:
		store, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.Store.SpreadsheetID,
			SheetName:       cfg.Store.SheetName,
			SheetID:         cfg.Store.SheetID,
			CredentialsFile: cfg.Store.CredentialsFile,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init sheets store: %w", err)
		}
		return store, func() {}, nil
	default:
		return memory.New(), func() {}, nil
	}
}

func buildResolver(cfg config.Config, logger *zap.Logger) *resolver.Resolver {
	var oracle watch.Oracle
	if cfg.Oracle.Enabled {
		client, err := gemini.New(gemini.Config{
			APIKey:   cfg.Oracle.APIKey,
			Model:    cfg.Oracle.Model,
			Endpoint: cfg.Oracle.Endpoint,
			Timeout:  time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			logger.Warn("oracle disabled", zap.Error(err))
		} else {
			oracle = client
		}
	}
	return resolver.New(oracle, logger)
}

func buildNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (*notify.Notifier, func(), error) {
	switch cfg.Notify.Backend {
	case config.NotifyPush:
		pusher, err := push.New(push.Config{
			Endpoint: cfg.Notify.Endpoint,
			Token:    cfg.Notify.Token,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init push client: %w", err)
		}
		return notify.New(pusher, cfg.Notify.Recipient, logger), func() {}, nil
	case config.NotifyPubSub:
		pusher, err := notifypubsub.New(ctx, cfg.Notify.ProjectID, cfg.Notify.Topic)
		if err != nil {
			return nil, nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		closer := func() { _ = pusher.Close() }
		return notify.New(pusher, cfg.Notify.Recipient, logger), closer, nil
	default:
		return notify.New(&notify.LogPusher{Logger: logger}, cfg.Notify.Recipient, logger), func() {}, nil
	}
}

func runServe(ctx context.Context, cfg config.Config, runner *cycle.Runner, store watch.RowStore, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(store, runner, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ops server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go scheduleLoop(ctx, runner, cfg.Location(), logger)

	select {
	case err := <-errCh:
		return fmt.Errorf("ops server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown ops server: %w", err)
	}
	logger.Info("shut down cleanly")
	return nil
}

// scheduleLoop fires one cycle at the top of every hour. A cycle still
// in flight when the next tick arrives makes that tick a no-op.
func scheduleLoop(ctx context.Context, runner *cycle.Runner, loc *time.Location, logger *zap.Logger) {
	for {
		now := time.Now().In(loc)
		next := now.Truncate(time.Hour).Add(time.Hour)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		summary, err := runner.TryRun(ctx)
		switch {
		case errors.Is(err, cycle.ErrCycleRunning):
			logger.Warn("skipping tick, previous cycle still running")
		case err != nil:
			logger.Error("scheduled cycle failed", zap.Error(err))
		default:
			logger.Info("scheduled cycle complete",
				zap.Int("total", summary.Total),
				zap.Int("notified", summary.Notified),
				zap.Int("errors", summary.Errors),
			)
		}
	}
}
