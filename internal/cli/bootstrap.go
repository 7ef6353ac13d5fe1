package cli

import (
	"context"
	"fmt"
	"io"

	"tickerSignal/config"
	"tickerSignal/internal/adapters/logger"
	"tickerSignal/internal/adapters/metrics"
	"tickerSignal/internal/adapters/postgres"
	redisadapter "tickerSignal/internal/adapters/redis"
	"tickerSignal/internal/adapters/signalhub"
	"tickerSignal/internal/adapters/sqlite"
	"tickerSignal/internal/app"
	"tickerSignal/internal/ports"
)

// runtime is the set of adapters a command works with.
type runtime struct {
	cfg       *config.Config
	logger    ports.Logger
	repo      ports.TickerRepository
	publisher ports.SignalPublisher
	hub       *signalhub.Hub
	redis     bool
	metrics   *metrics.Recorder
	service   *app.SignalService
}

// bootstrap builds the logger, the Ticker Store selected by DATABASE_URL,
// the in-process signal hub, the optional Redis publisher and the
// SignalService.
func bootstrap(ctx context.Context, cfg *config.Config, logOut io.Writer) (*runtime, error) {
	rt := &runtime{
		cfg:     cfg,
		logger:  logger.New(logOut, cfg.LogFormat, cfg.LogLevel),
		metrics: metrics.NewRecorder(),
	}
	rt.logger.Debug(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel, "format": cfg.LogFormat})

	repo, err := openStore(ctx, cfg, rt.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ticker store: %w", err)
	}
	rt.repo = repo

	rt.hub, err = signalhub.New(rt.logger)
	if err != nil {
		rt.close(ctx)
		return nil, fmt.Errorf("failed to initialize signal hub: %w", err)
	}

	var redisPub ports.SignalPublisher
	if cfg.RedisEnabled() {
		pub, err := redisadapter.NewPublisher(ctx, redisadapter.Config{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPassword,
			DB:            cfg.RedisDB,
			Prefix:        cfg.RedisPrefix,
			SignalStream:  cfg.RedisSignalStream,
			SignalChannel: cfg.RedisSignalChannel,
			LatestTTL:     cfg.RedisLatestTTL,
			Logger:        rt.logger,
		})
		if err != nil {
			// Publishing is best-effort; the API keeps working without it.
			rt.logger.Warn(ctx, "Redis publisher unavailable, signals will not be published to Redis",
				map[string]interface{}{"addr": cfg.RedisAddr, "error": err.Error()})
		} else {
			redisPub = pub
			rt.redis = true
		}
	}
	rt.publisher = app.CombinePublishers(redisPub, rt.hub)

	rt.service, err = app.NewSignalService(cfg.Windows, rt.logger, rt.repo, rt.publisher, rt.metrics)
	if err != nil {
		rt.close(ctx)
		return nil, fmt.Errorf("failed to initialize signal service: %w", err)
	}
	return rt, nil
}

func openStore(ctx context.Context, cfg *config.Config, log ports.Logger) (ports.TickerRepository, error) {
	if cfg.UsesPostgres() {
		repo, err := postgres.NewRepository(ctx, postgres.Config{DSN: cfg.DatabaseURL, Logger: log})
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DatabaseURL, Logger: log})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (rt *runtime) close(ctx context.Context) {
	if rt.publisher != nil {
		if err := rt.publisher.Close(); err != nil {
			rt.logger.Error(ctx, err, "Error closing signal publisher")
		}
	}
	if rt.repo != nil {
		if err := rt.repo.Close(); err != nil {
			rt.logger.Error(ctx, err, "Error closing ticker store")
		}
	}
}
