package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/duelarena/internal/adapters/http/api"
	"github.com/okian/duelarena/internal/adapters/http/swagger"
	"github.com/okian/duelarena/internal/adapters/mq/publisher"
	app "github.com/okian/duelarena/internal/app"
	"github.com/okian/duelarena/internal/config"
	"github.com/okian/duelarena/internal/domain/question"
	"github.com/okian/duelarena/pkg/logger"
	"github.com/okian/duelarena/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants. WriteTimeout stays zero: hijacked
// websocket connections manage their own deadlines.
const (
	readTimeout            = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString("duelarena: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	registerRuntimeCollectors(metrics.GetRegistry())

	opts, err := serviceOptions(cfg, log)
	if err != nil {
		return err
	}
	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("ws", cfg.WSPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// serviceOptions maps configuration onto service options, loading the
// question pool and connecting the result publisher when configured.
func serviceOptions(cfg *config.Config, log logger.Logger) ([]app.Option, error) {
	opts := []app.Option{
		app.WithLogger(log),
		app.WithQuestionsPerMatch(cfg.QuestionsPerMatch),
		app.WithQuestionTopic(cfg.QuestionTopic),
		app.WithNumericTolerance(cfg.NumericTolerance),
		app.WithGracePeriod(cfg.GracePeriod()),
		app.WithRetention(cfg.Retention()),
		app.WithSweepInterval(cfg.SweepInterval()),
		app.WithAbandonPolicy(cfg.AbandonPolicy),
		app.WithOutboxSize(cfg.OutboxSize),
		app.WithDispatchWorkers(cfg.DispatchWorkers),
		app.WithReplayWindow(cfg.ReplayWindow),
		app.WithMaxMessageBytes(cfg.MaxMessageBytes),
		app.WithSeed(cfg.Seed()),
	}

	if cfg.QuestionBankFile != "" {
		pool, err := question.LoadFile(cfg.QuestionBankFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load question bank: %w", err)
		}
		opts = append(opts, app.WithQuestionPool(pool))
	}

	if cfg.NATSURL != "" {
		pub, err := publisher.Connect(cfg.NATSURL,
			publisher.WithSubject(cfg.NATSSubject),
			publisher.WithLogger(log.Named("publisher")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect result publisher: %w", err)
		}
		opts = append(opts, app.WithPublisher(pub))
	}

	return opts, nil
}

// newMux wires the API, docs and websocket routes for a started service.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.WithWebsocket(cfg.WSPath, svc.Handler())).Register(ctx, mux)
	return mux
}

// registerRuntimeCollectors exposes Go runtime and process metrics on the
// service registry. Repeated registration is ignored.
func registerRuntimeCollectors(reg prometheus.Registerer) {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				logger.Get().Warn(context.Background(), "failed to register collector", logger.Error(err))
			}
		}
	}
}

// startServiceMetricsUpdater periodically refreshes the service gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateServiceMetrics refreshes gauges; GetStats publishes them as a side effect.
func updateServiceMetrics(svc *app.Service) {
	_ = svc.GetStats()
}
