package worker

import (
	"context"
	"time"

	"sjsage522/doctorworker/helpers"
	"sjsage522/doctorworker/internal/crawler"
	"sjsage522/doctorworker/logger"
	"sjsage522/doctorworker/services/publisher"
)

// StrategyFactory builds the adapters for one cycle
type StrategyFactory func() (crawler.Strategies, error)

// Worker runs acquisition cycles and maintains the output streams
type Worker struct {
	opts          crawler.Options
	strategies    StrategyFactory
	sink          crawler.Sink
	publisher     publisher.Publisher
	failures      helpers.LoggerInterface
	crawlInterval time.Duration
	log           *logger.Logger
}

// NewWorker creates a new worker. pub may be nil when no stream output is
// configured; failures receives failed detail URLs. A zero crawlInterval
// makes Start run a single cycle.
func NewWorker(
	opts crawler.Options,
	strategies StrategyFactory,
	sink crawler.Sink,
	pub publisher.Publisher,
	failures helpers.LoggerInterface,
	crawlInterval time.Duration,
) *Worker {
	return &Worker{
		opts:          opts,
		strategies:    strategies,
		sink:          sink,
		publisher:     pub,
		failures:      failures,
		crawlInterval: crawlInterval,
		log:           logger.ForWorker(),
	}
}

// Start runs cycles until ctx is cancelled, sleeping crawlInterval between
// them. With no interval it returns after the first cycle.
func (w *Worker) Start(ctx context.Context) error {
	for {
		start := time.Now()
		_, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}
		w.log.Info().Dur("elapsed", time.Since(start)).Msg("Crawl cycle finished")

		if w.crawlInterval <= 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.crawlInterval):
		}
	}
}

// RunOnce runs one orchestrator to completion and then trims the streams.
// Only cancellation of ctx is returned as an error; a cycle that cannot
// build its strategies is logged and skipped.
func (w *Worker) RunOnce(ctx context.Context) (crawler.RunStats, error) {
	strategies, err := w.strategies()
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to build strategies")
		w.failures.LogError("worker", err)
		return crawler.RunStats{}, nil
	}

	orchestrator := crawler.NewOrchestrator(w.opts, strategies, w.sink, w.failures)
	stats, err := orchestrator.Run(ctx)

	w.log.Info().
		Str("run_id", stats.RunID).
		Int("saved", stats.Saved).
		Int("dropped", stats.Dropped).
		Int("detail_failures", stats.DetailFailures).
		Int("pages", stats.PagesFetched).
		Interface("transitions", stats.Transitions).
		Msg("Run summary")
	if stats.Saved == 0 && err == nil {
		w.failures.LogInfo("run %s finished without results for %q in %q", stats.RunID, w.opts.Query.Specialty, w.opts.Query.City)
	}

	// Trim all streams after crawling
	if w.publisher != nil {
		trimCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := w.publisher.TrimStreams(trimCtx); err != nil {
			w.failures.LogError("StreamTrimming", err)
		}
	}

	return stats, err
}
