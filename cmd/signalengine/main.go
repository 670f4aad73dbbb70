// signalengine is the long-running signal pipeline process. It schedules the
// four periodic jobs (generation, resolution, insights, backtest), exposes
// Prometheus metrics and a health endpoint, and serves the WebSocket signal
// feed.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fxsignals/config"
	"fxsignals/internal/backtest"
	"fxsignals/internal/insights"
	"fxsignals/internal/logger"
	"fxsignals/internal/metrics"
	"fxsignals/internal/model"
	"fxsignals/internal/notification"
	"fxsignals/internal/pipeline"
	"fxsignals/internal/provider"
	"fxsignals/internal/provider/fxapi"
	"fxsignals/internal/resolver"
	"fxsignals/internal/scheduler"
	redisstore "fxsignals/internal/store/redis"
	sqlitestore "fxsignals/internal/store/sqlite"
	"fxsignals/internal/strategy"
	"fxsignals/internal/stream"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[signalengine] starting...")

	if err := godotenv.Load(); err == nil {
		log.Println("[signalengine] loaded .env")
	}

	cfg := config.Load()
	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Fatal("[signalengine] no valid symbols configured")
	}
	log.Printf("[signalengine] watching %d pairs: %v", len(symbols), symbols)

	logger.Init("signalengine", slog.LevelInfo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Storage ----
	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[signalengine] sqlite: %v", err)
	}
	defer store.Close()

	var cache *redisstore.Cache
	if cfg.RedisAddr != "" {
		cache, err = redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[signalengine] redis unavailable, continuing without cache: %v", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// ---- Metrics & health ----
	mets := metrics.New()
	health := metrics.NewHealthStatus()
	health.SetProviderOK(true)
	health.CheckSQLite(ctx, store.DB())
	health.StartLivenessChecker(ctx, cache.Client(), store.DB(), 30*time.Second)

	// ---- Provider ----
	client := fxapi.New(fxapi.Config{
		APIKey:     cfg.FXAPIKey,
		ClientID:   cfg.FXClientID,
		Password:   cfg.FXPassword,
		TOTPSecret: cfg.FXTOTPSecret,
		BaseURL:    cfg.FXBaseURL,
	})
	breaker := provider.NewCircuitBreaker(5, 30*time.Second)
	breaker.OnStateChange = func(from, to provider.State) {
		log.Printf("[signalengine] provider breaker %s -> %s", from, to)
		health.SetProviderOK(to == provider.StateClosed)
		if to == provider.StateOpen {
			mets.ProviderErrors.WithLabelValues("breaker_open").Inc()
		}
	}
	source := provider.NewGuardedSource(client, client, breaker)
	pacer := provider.NewPacer(cfg.ProviderPace)

	// ---- Notifications ----
	notifier := buildNotifier(cfg)

	// ---- Stream hub ----
	hub := stream.NewHub(stream.WithClientGauge(mets.StreamClients))
	if cache != nil {
		// Redis carries the events; the hub relays the shared channel.
		go hub.ConsumeRedis(ctx, cache)
	}

	// publishEvent pushes a lifecycle event to Redis when available, or
	// straight into the hub otherwise.
	publishEvent := func(ev redisstore.SignalEvent) {
		if cache != nil {
			cache.PublishSignalEvent(ctx, ev)
			return
		}
		hub.Publish(ev)
	}

	// ---- Pipeline components ----
	analyzer := insights.New(store)
	engine := strategy.NewEngine(
		strategy.WithHighTierRisk(cfg.HighTierRiskPct),
		strategy.WithWeightProvider(analyzer),
	)
	params := pipeline.NewCachedParameters(store, 0)

	genOpts := []pipeline.Option{
		pipeline.WithCache(cache),
		pipeline.WithMetrics(mets),
	}
	if notifier != nil {
		genOpts = append(genOpts, pipeline.WithNotifier(notifier))
	}
	if cache == nil {
		genOpts = append(genOpts, pipeline.WithEventSink(hub))
	}
	gen := pipeline.New(symbols, source, source, store, engine, params, pacer, genOpts...)

	res := resolver.New(store, source, model.Interval1H,
		resolver.WithResolvedCallback(func(sig model.Signal, outcome model.Outcome, price, pips float64) {
			mets.SignalsResolved.WithLabelValues(string(outcome)).Inc()
			publishEvent(redisstore.SignalEvent{Type: "resolved", Signal: &sig})
			if notifier != nil {
				if err := notifier.Send(ctx, notification.OutcomeAlert(&sig, outcome, price, pips)); err != nil {
					log.Printf("[signalengine] outcome alert for %s failed: %v", sig.ID, err)
				}
			}
		}))

	bt := backtest.New(store, store, store)

	// ---- Scheduled jobs ----
	coord := scheduler.New(store)

	registerJob := func(name string, interval time.Duration, fn scheduler.JobFunc) {
		coord.Register(name, interval, func(ctx context.Context) error {
			start := time.Now()
			err := fn(ctx)
			mets.JobDur.WithLabelValues(name).Observe(time.Since(start).Seconds())
			result := "ok"
			if err != nil {
				result = "error"
			}
			mets.JobRuns.WithLabelValues(name, result).Inc()
			return err
		})
	}

	registerJob(scheduler.JobGeneration, scheduler.GenerationInterval, func(ctx context.Context) error {
		_, err := gen.Run(ctx)
		if err == nil {
			health.SetLastCycleTime(time.Now())
		}
		return err
	})

	registerJob(scheduler.JobResolution, scheduler.ResolutionInterval, func(ctx context.Context) error {
		_, err := res.Run(ctx)
		if pending, perr := store.GetPending(ctx); perr == nil {
			mets.SignalsPending.Set(float64(len(pending)))
		}
		return err
	})

	registerJob(scheduler.JobInsights, scheduler.InsightsInterval, func(ctx context.Context) error {
		for _, symbol := range symbols {
			ins, err := analyzer.Analyze(ctx, symbol)
			if err != nil {
				return err
			}
			cache.SetInsights(ctx, ins)
		}
		return nil
	})

	registerJob(scheduler.JobBacktest, scheduler.BacktestInterval, func(ctx context.Context) error {
		n, err := bt.Run(ctx, symbols)
		mets.Recommendations.Add(float64(n))
		return err
	})

	go coord.RunTicker(ctx, scheduler.JobGeneration, time.Minute)
	go coord.RunTicker(ctx, scheduler.JobResolution, time.Minute)
	go coord.RunTicker(ctx, scheduler.JobInsights, 10*time.Minute)
	go coord.RunTicker(ctx, scheduler.JobBacktest, time.Hour)

	// ---- HTTP surface ----
	srv := metrics.NewServer(cfg.MetricsAddr, health, map[string]http.Handler{
		"/ws": hub,
	})
	srv.Start()

	// ---- Graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[signalengine] shutting down...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Stop(shutdownCtx)
	log.Println("[signalengine] stopped")
}

// buildNotifier assembles the configured alert backends. With none
// configured, alerts go to the process log only.
func buildNotifier(cfg *config.Config) notification.Notifier {
	var backends []notification.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		log.Println("[signalengine] telegram alerts enabled")
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Println("[signalengine] webhook alerts enabled")
	}
	switch len(backends) {
	case 0:
		return notification.NewLogNotifier()
	case 1:
		return backends[0]
	default:
		return notification.NewMulti(backends...)
	}
}
