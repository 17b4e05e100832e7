package crawler

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"sjsage522/doctorworker/helpers"
	"sjsage522/doctorworker/internal/metrics"
	"sjsage522/doctorworker/logger"
	"sjsage522/doctorworker/pkg/errors"

	"github.com/google/uuid"
)

// State is a step of the acquisition state machine
type State string

const (
	StateSelectAPI       State = "SELECT_API"
	StateSitemapDiscover State = "SITEMAP_DISCOVER"
	StateListTraverse    State = "LIST_TRAVERSE"
	StateDetailFetch     State = "DETAIL_FETCH"
	StateDone            State = "DONE"
)

// Options controls one acquisition run
type Options struct {
	Query          SearchQuery
	ResultsWanted  int // 0 means unbounded
	MaxPages       int
	CollectDetails bool
	StartURLs      []string
	Concurrency    int
}

// Strategies are the adapters available to the orchestrator. A nil API or
// Sitemap adapter skips that strategy.
type Strategies struct {
	API     Adapter
	Sitemap Adapter
	Listing Adapter
	Details DetailSource
}

// RunStats summarizes a finished run
type RunStats struct {
	RunID          string
	Saved          int
	Dropped        int
	DetailFailures int
	PagesFetched   int
	Transitions    []State
	Duration       time.Duration
}

// detailTask is a profile URL queued for a detail fetch, with the partials
// already known about it
type detailTask struct {
	URL     string
	Carried []PartialRecord
}

// Orchestrator chooses strategies, drives pagination and enforces the quota
type Orchestrator struct {
	opts       Options
	strategies Strategies
	sink       Sink
	failures   helpers.LoggerInterface
	runID      string
	log        *logger.Logger

	quota          int64
	saved          atomic.Int64
	dropped        atomic.Int64
	detailFailures atomic.Int64
	pages          atomic.Int64
	emitted        sync.Map // profile URL -> struct{}
	transitions    []State
}

// NewOrchestrator creates an orchestrator for a single run. failures may be
// nil; when set, failed detail URLs are reported to it.
func NewOrchestrator(opts Options, strategies Strategies, sink Sink, failures helpers.LoggerInterface) *Orchestrator {
	opts.Query = opts.Query.Normalize()
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	quota := int64(math.MaxInt64)
	if opts.ResultsWanted > 0 {
		quota = int64(opts.ResultsWanted)
	}

	runID := uuid.NewString()
	return &Orchestrator{
		opts:       opts,
		strategies: strategies,
		sink:       sink,
		failures:   failures,
		runID:      runID,
		log:        logger.ForOrchestrator(runID),
		quota:      quota,
	}
}

// RunID returns the identifier attached to this run's logs
func (o *Orchestrator) RunID() string {
	return o.runID
}

type runIDKey struct{}

// WithRunID attaches a run identifier to ctx; sinks read it to tag records
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier set by WithRunID, or ""
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Run executes the state machine until quota is met, traversal is exhausted
// or the page limit is hit. Adapter failures never make Run fail; the only
// error is cancellation of ctx.
func (o *Orchestrator) Run(ctx context.Context) (RunStats, error) {
	start := time.Now()
	ctx = WithRunID(ctx, o.runID)
	o.log.Info().
		Str("specialty", o.opts.Query.Specialty).
		Str("city", o.opts.Query.City).
		Int("results_wanted", o.opts.ResultsWanted).
		Int("max_pages", o.opts.MaxPages).
		Int("start_urls", len(o.opts.StartURLs)).
		Msg("Starting acquisition run")

	if len(o.opts.StartURLs) > 0 {
		o.log.Info().Msg("Skipping search API because explicit start URLs were supplied")
		o.runListing(ctx)
	} else {
		o.transition(StateSelectAPI)
		o.runAPI(ctx)
		if !o.quotaReached() && ctx.Err() == nil {
			metrics.Fallbacks.WithLabelValues("api", "sitemap").Inc()
			o.transition(StateSitemapDiscover)
			urls := o.discover(ctx)
			if len(urls) > 0 {
				tasks := make([]detailTask, 0, len(urls))
				for _, u := range urls {
					tasks = append(tasks, detailTask{URL: u})
				}
				o.transition(StateDetailFetch)
				o.fetchDetails(ctx, tasks)
			}
		}
	}
	o.transition(StateDone)

	stats := RunStats{
		RunID:          o.runID,
		Saved:          int(o.saved.Load()),
		Dropped:        int(o.dropped.Load()),
		DetailFailures: int(o.detailFailures.Load()),
		PagesFetched:   int(o.pages.Load()),
		Transitions:    o.transitions,
		Duration:       time.Since(start),
	}
	o.log.Info().
		Int("saved", stats.Saved).
		Int("dropped", stats.Dropped).
		Int("detail_failures", stats.DetailFailures).
		Int("pages", stats.PagesFetched).
		Dur("duration", stats.Duration).
		Msg("Acquisition run finished")

	return stats, ctx.Err()
}

// runAPI pages through the search API sequentially, trimming each page to
// the remaining quota. It stops on quota, max_pages, exhaustion or ok=false.
func (o *Orchestrator) runAPI(ctx context.Context) {
	api := o.strategies.API
	if api == nil {
		return
	}

	token := PageToken{Page: 1}
	for ctx.Err() == nil && !o.quotaReached() && token.Page <= o.opts.MaxPages {
		res := api.FetchPage(ctx, o.opts.Query, token)
		o.pageFetched(api.Name())
		if !res.OK {
			o.log.Warn().Int("page", token.Page).Msg("Search API returned no data, falling back")
			return
		}

		records := res.Records
		if remaining := o.remaining(); remaining < len(records) {
			records = records[:remaining]
		}
		for _, rec := range records {
			o.emit(ctx, api.Name(), rec, o.fallbackPartial())
		}
		o.log.Info().Int("page", token.Page).Int("saved", int(o.saved.Load())).Msg("Processed search API page")

		if res.Next == nil {
			return
		}
		token = *res.Next
	}
}

// discover walks the sitemap documents sequentially and returns up to the
// remaining quota of distinct profile URLs.
func (o *Orchestrator) discover(ctx context.Context) []string {
	sitemap := o.strategies.Sitemap
	if sitemap == nil {
		return nil
	}

	limit := o.remaining()
	seen := make(map[string]struct{})
	var urls []string

	saved := func(u string) bool {
		_, done := o.emitted.Load(u)
		return done
	}

	token := PageToken{Page: 1}
	for ctx.Err() == nil && len(urls) < limit {
		token.Skip = saved
		if limit != math.MaxInt {
			token.Limit = limit - len(urls)
		}
		res := sitemap.FetchPage(ctx, o.opts.Query, token)
		o.pageFetched(sitemap.Name())

		for _, rec := range res.Records {
			if rec.URL == "" {
				continue
			}
			if _, dup := seen[rec.URL]; dup {
				continue
			}
			seen[rec.URL] = struct{}{}
			if saved(rec.URL) {
				continue
			}
			urls = append(urls, rec.URL)
			if len(urls) >= limit {
				break
			}
		}

		if res.Next == nil {
			break
		}
		token = *res.Next
	}

	o.log.Info().Int("urls", len(urls)).Msg("Sitemap discovery finished")
	return urls
}

// runListing traverses each explicit start URL page by page. With detail
// collection on, cards with a profile URL are fetched in detail before the
// next page is requested; other cards are emitted directly.
func (o *Orchestrator) runListing(ctx context.Context) {
	listing := o.strategies.Listing
	if listing == nil {
		return
	}

	for _, start := range o.opts.StartURLs {
		token := PageToken{Page: 1, URLs: []string{start}}
		for ctx.Err() == nil && !o.quotaReached() {
			o.transition(StateListTraverse)
			res := listing.FetchPage(ctx, o.opts.Query, token)
			o.pageFetched(listing.Name())
			if !res.OK {
				o.log.Info().Str("start_url", start).Int("page", token.Page).Msg("Listing exhausted")
				break
			}

			var tasks []detailTask
			for _, group := range GroupByIdentity(res.Records) {
				if o.opts.CollectDetails && o.strategies.Details != nil && group[0].URL != "" {
					tasks = append(tasks, detailTask{URL: group[0].URL, Carried: group})
					continue
				}
				o.emit(ctx, listing.Name(), append(group, o.fallbackPartial())...)
			}

			if remaining := o.remaining(); remaining < len(tasks) {
				tasks = tasks[:remaining]
			}
			if len(tasks) > 0 {
				o.transition(StateDetailFetch)
				o.fetchDetails(ctx, tasks)
			}

			if o.quotaReached() || token.Page >= o.opts.MaxPages || res.Next == nil {
				break
			}
			token = *res.Next
		}
	}
}

// fetchDetails runs detail tasks on a bounded pool. Once the quota is met no
// new task starts; tasks already running finish and their records are
// discarded by the reservation check.
func (o *Orchestrator) fetchDetails(ctx context.Context, tasks []detailTask) {
	if o.strategies.Details == nil {
		return
	}

	sem := make(chan struct{}, o.opts.Concurrency)
	var wg sync.WaitGroup

dispatch:
	for _, task := range tasks {
		if o.quotaReached() {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}

		wg.Add(1)
		go func(task detailTask) {
			defer wg.Done()
			defer func() { <-sem }()
			o.runDetail(ctx, task)
		}(task)
	}
	wg.Wait()
}

func (o *Orchestrator) runDetail(ctx context.Context, task detailTask) {
	if o.quotaReached() || ctx.Err() != nil {
		return
	}

	partials, ok := o.strategies.Details.FetchDetail(ctx, task.URL)
	o.pageFetched("detail")
	if !ok {
		o.detailFailures.Add(1)
		metrics.DetailFailures.Inc()
		err := errors.NewNetwork("detail", "skipping profile after retries: "+task.URL, nil)
		o.log.Warn().Err(err).Str("url", task.URL).Msg("Detail fetch failed")
		if o.failures != nil {
			o.failures.LogError("detail", err)
		}
		return
	}

	fallback := o.fallbackPartial()
	fallback.URL = task.URL
	partials = append(partials, task.Carried...)
	o.emit(ctx, "detail", append(partials, fallback)...)
}

// emit merges partials and pushes the record if a quota slot can be reserved
func (o *Orchestrator) emit(ctx context.Context, strategy string, partials ...PartialRecord) bool {
	record, ok := Merge(partials...)
	if !ok {
		o.dropped.Add(1)
		metrics.RecordsDropped.Inc()
		o.log.Debug().
			Err(errors.NewValidation(strategy, "record has no name")).
			Msg("Dropping record")
		return false
	}

	// the same profile can surface through more than one strategy
	if record.URL != nil {
		if _, dup := o.emitted.LoadOrStore(*record.URL, struct{}{}); dup {
			return false
		}
	}

	if !o.tryReserve() {
		o.forget(record)
		return false
	}
	if err := o.sink.Push(ctx, record); err != nil {
		o.saved.Add(-1)
		o.forget(record)
		metrics.SinkFailures.Inc()
		o.log.Error().Err(err).Str("identity", record.Identity()).Msg("Sink rejected record")
		return false
	}

	metrics.RecordsSaved.WithLabelValues(strategy).Inc()
	return true
}

func (o *Orchestrator) forget(record NormalizedRecord) {
	if record.URL != nil {
		o.emitted.Delete(*record.URL)
	}
}

// tryReserve claims one quota slot; the check and increment are one step
func (o *Orchestrator) tryReserve() bool {
	for {
		current := o.saved.Load()
		if current >= o.quota {
			return false
		}
		if o.saved.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (o *Orchestrator) quotaReached() bool {
	return o.saved.Load() >= o.quota
}

// remaining is the unfilled quota, or math.MaxInt when unbounded
func (o *Orchestrator) remaining() int {
	if o.quota == math.MaxInt64 {
		return math.MaxInt
	}
	return int(max(0, o.quota-o.saved.Load()))
}

// fallbackPartial carries query-derived values with the lowest precedence
func (o *Orchestrator) fallbackPartial() PartialRecord {
	return PartialRecord{
		Specialty: o.opts.Query.Specialty,
		City:      o.opts.Query.City,
		Origin:    OriginFallback,
	}
}

func (o *Orchestrator) pageFetched(adapter string) {
	o.pages.Add(1)
	metrics.PagesFetched.WithLabelValues(adapter).Inc()
}

// transition appends a state, collapsing repeats
func (o *Orchestrator) transition(s State) {
	if n := len(o.transitions); n > 0 && o.transitions[n-1] == s {
		return
	}
	o.transitions = append(o.transitions, s)
	o.log.Debug().Str("state", string(s)).Msg("State transition")
}
