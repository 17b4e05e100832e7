package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sjsage522/doctorworker/config"
	"sjsage522/doctorworker/helpers"
	"sjsage522/doctorworker/internal/crawler"
	"sjsage522/doctorworker/internal/metrics"
	"sjsage522/doctorworker/logger"
	"sjsage522/doctorworker/services/cache"
	"sjsage522/doctorworker/services/fetcher"
	"sjsage522/doctorworker/services/proxy"
	"sjsage522/doctorworker/services/publisher"
	"sjsage522/doctorworker/services/sink"
	"sjsage522/doctorworker/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if path := os.Getenv("INPUT_FILE"); path != "" {
		if err := cfg.ApplyInputFile(path); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply input file")
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("specialty", cfg.Specialty).
		Str("city", cfg.City).
		Int("results_wanted", cfg.ResultsWanted).
		Dur("crawl_interval", cfg.CrawlInterval).
		Msg("Starting application")

	// Cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Msg("Metrics server stopped")
			}
		}()
	}

	factory := func() (crawler.Strategies, error) {
		return crawler.CreateStrategies(cfg, services.Fetcher)
	}

	w := worker.NewWorker(
		crawler.NewOptions(cfg),
		factory,
		services.Sink,
		services.Publisher,
		helpers.NewLogger(cfg.ErrorLogFile),
		cfg.CrawlInterval,
	)

	log.Info().Int("sinks", services.Sink.Len()).Msg("Starting doctor worker")
	if err := w.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("Worker stopped")
	} else {
		log.Info().Msg("Worker exited normally")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Fetcher   *fetcher.Client
	Publisher publisher.Publisher
	Sink      *sink.MultiSink
}

// Cleanup flushes and closes every output
func (s *Services) Cleanup() {
	if s.Sink == nil {
		return
	}
	if err := s.Sink.Close(); err != nil {
		logger.Error("Failed to close sinks: %v", err)
	}
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	// Memcache holds the rate-limit blocks; without it no host is blocked
	if cfg.MemcacheAddr != "" {
		memcache := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := memcache.Ping(); err != nil {
			logger.Warn("Memcache at %s is not reachable: %v", cfg.MemcacheAddr, err)
		}
		services.Cache = memcache
		logger.Info("Using Memcache at %s", cfg.MemcacheAddr)
	}

	rotator, err := proxy.NewRotator(cfg.ProxyURLs)
	if err != nil {
		return nil, err
	}
	if cfg.ProxyListURL != "" {
		added, err := rotator.Load(ctx, cfg.ProxyListURL)
		if err != nil {
			logger.Warn("Failed to load proxy list: %v", err)
		} else {
			logger.Info("Loaded %d proxies from %s", added, cfg.ProxyListURL)
		}
	}
	logger.Default.Info().Interface("proxy_stats", rotator.Stats()).Msg("Proxy stats")

	opts := fetcher.DefaultOptions()
	opts.Timeout = cfg.RequestTimeout
	opts.MaxRetries = cfg.MaxRetries
	opts.BlockFor = cfg.RateLimitBlock
	services.Fetcher = fetcher.New(opts, rotator, services.Cache)

	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisPublisher.Ping(pingCtx)
		cancel()
		if err != nil {
			redisPublisher.Close()
			return nil, err
		}
		services.Publisher = redisPublisher

		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	outputs, err := openSinks(ctx, cfg, services.Publisher)
	if err != nil {
		if services.Publisher != nil {
			services.Publisher.Close()
		}
		return nil, err
	}
	services.Sink = sink.NewMultiSink(outputs...)
	return services, nil
}

// openSinks opens the configured outputs with the local ones first, so a
// record rejected locally never reaches the stream.
func openSinks(ctx context.Context, cfg *config.Config, pub publisher.Publisher) ([]sink.Sink, error) {
	var outputs []sink.Sink

	if cfg.SQLitePath != "" {
		sqliteSink, err := sink.NewSQLiteSink(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, sqliteSink)
	}

	if cfg.OutputFile != "" {
		fileSink, err := sink.NewFileSink(cfg.OutputFile)
		if err != nil {
			closeAll(outputs)
			return nil, err
		}
		outputs = append(outputs, fileSink)
	}

	if pub != nil {
		outputs = append(outputs, sink.NewPublisherSink(pub))
	}
	return outputs, nil
}

func closeAll(outputs []sink.Sink) {
	for _, s := range outputs {
		s.Close()
	}
}
