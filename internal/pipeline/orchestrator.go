// Package pipeline drives one ingestion cycle: fetch, parse, normalize, and
// reconcile every active region's advisory feed against the storm store.
package pipeline

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/storm-advisory-ingest/internal/domain"
	"github.com/couchcryptid/storm-advisory-ingest/internal/feed"
	"github.com/couchcryptid/storm-advisory-ingest/internal/observability"
)

// Store is the persistence collaborator. Each storm identifier's state row is
// the unit of mutation; the orchestrator guarantees no concurrent writes to
// the same identifier by processing entries sequentially within a region.
type Store interface {
	ListActiveRegions(ctx context.Context) ([]domain.Region, error)
	GetStormState(ctx context.Context, stormID string) (*domain.StormState, error)
	UpsertStormState(ctx context.Context, state domain.StormState) error
	AppendHistory(ctx context.Context, entry domain.HistoryEntry) error

	// Inactive-sweep support: active storms for a region, miss accounting,
	// and the inactive transition.
	ListActiveStorms(ctx context.Context, regionID string) ([]domain.StormState, error)
	RecordMiss(ctx context.Context, stormID string) (int, error)
	MarkInactive(ctx context.Context, stormID string) error
}

// Fetcher retrieves a raw feed document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// AdvisoryParser converts raw feed bytes into a restartable sequence of raw
// advisories, or fails when the document is malformed as a whole.
type AdvisoryParser interface {
	Parse(data []byte) (iter.Seq[domain.RawAdvisory], error)
}

// HistoryPublisher receives every appended history entry. Optional; used for
// downstream data integration when enabled.
type HistoryPublisher interface {
	PublishHistory(ctx context.Context, entry domain.HistoryEntry) error
}

// Outcome summarizes one region's slice of an ingestion cycle.
type Outcome struct {
	Region         string `json:"region"`
	EntriesSeen    int    `json:"entries_seen"`
	Created        int    `json:"created"`
	Refreshed      int    `json:"refreshed"`
	WithHistory    int    `json:"with_history"`
	Skipped        int    `json:"skipped"` // normalize + persistence failures
	MarkedInactive int    `json:"marked_inactive"`
	Err            error  `json:"-"`
}

// CycleReport aggregates all region outcomes for one ingestion cycle. It is
// the unit of atomicity for reporting purposes only; there is no cross-region
// transaction.
type CycleReport struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Outcomes  []Outcome
}

// Options tune orchestrator behavior beyond its collaborators.
type Options struct {
	// Workers bounds concurrent region processing. Zero or negative means 1.
	Workers int

	// CycleTimeout is the deadline for a whole cycle; fetches still in
	// flight past it are cancelled. Zero disables the deadline.
	CycleTimeout time.Duration

	// MissingCycleThreshold is how many consecutive cycles a previously
	// active storm may be absent from its feed before it is marked
	// inactive.
	MissingCycleThreshold int

	// FollowWalletFeeds enables fetching each storm's wallet sub-feed after
	// the main region feed, picking up advisories the basin feed trims.
	FollowWalletFeeds bool

	// Publisher, when non-nil, receives every appended history entry.
	Publisher HistoryPublisher
}

// Orchestrator runs ingestion cycles over the configured regions.
type Orchestrator struct {
	store   Store
	fetcher Fetcher
	parser  AdvisoryParser
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options

	ready   atomic.Bool
	running atomic.Bool
}

// ErrCycleInProgress is returned when a cycle is requested while another is
// still running. Cycles never overlap; the scheduler skips the tick instead.
var ErrCycleInProgress = errors.New("ingestion cycle already in progress")

// New creates an Orchestrator with the given collaborators and options.
func New(store Store, fetcher Fetcher, parser AdvisoryParser, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MissingCycleThreshold <= 0 {
		opts.MissingCycleThreshold = 3
	}
	return &Orchestrator{
		store:   store,
		fetcher: fetcher,
		parser:  parser,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
	}
}

// CheckReadiness returns nil once at least one cycle has completed.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("no ingestion cycle has completed yet")
	}
	return nil
}

// RunCycle executes one ingestion cycle across all active regions and returns
// the per-region outcome report. Regions run concurrently up to the worker
// bound; a region's failure never affects another's processing. Entry-level
// failures are recorded in the region outcome and skipped.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleReport, error) {
	if !o.running.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInProgress
	}
	defer o.running.Store(false)

	o.metrics.IngestRunning.Set(1)
	defer o.metrics.IngestRunning.Set(0)

	if o.opts.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.CycleTimeout)
		defer cancel()
	}

	report := CycleReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := o.logger.With("run_id", report.RunID)

	regions, err := o.store.ListActiveRegions(ctx)
	if err != nil {
		return report, err
	}
	logger.Info("ingestion cycle started", "regions", len(regions), "workers", o.opts.Workers)

	report.Outcomes = make([]Outcome, len(regions))

	sem := make(chan struct{}, o.opts.Workers)
	var wg sync.WaitGroup
	for i, region := range regions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			report.Outcomes[i] = o.processRegion(ctx, logger, region)
		}()
	}
	wg.Wait()

	report.Duration = time.Since(report.StartedAt)
	o.metrics.CyclesRun.Inc()
	o.metrics.CycleDuration.Observe(report.Duration.Seconds())
	o.ready.Store(true)

	for _, out := range report.Outcomes {
		if out.Err != nil {
			logger.Warn("region failed",
				"region", out.Region, "error", out.Err, "entries_seen", out.EntriesSeen)
			continue
		}
		logger.Info("region processed",
			"region", out.Region,
			"entries_seen", out.EntriesSeen,
			"created", out.Created,
			"refreshed", out.Refreshed,
			"with_history", out.WithHistory,
			"skipped", out.Skipped,
			"marked_inactive", out.MarkedInactive,
		)
	}
	logger.Info("ingestion cycle finished", "duration", report.Duration)

	return report, nil
}

// processRegion runs the fetch-parse-normalize-reconcile sequence for one
// region. Entries are processed strictly in document order so history appends
// for a given storm identifier stay monotonic.
func (o *Orchestrator) processRegion(ctx context.Context, logger *slog.Logger, region domain.Region) Outcome {
	out := Outcome{Region: region.ID}
	logger = logger.With("region", region.ID)

	start := time.Now()
	data, err := o.fetcher.Fetch(ctx, region.FeedURL)
	o.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		o.metrics.RegionFailures.WithLabelValues("fetch").Inc()
		out.Err = err
		return out
	}

	entries, err := o.parser.Parse(data)
	if err != nil {
		o.metrics.RegionFailures.WithLabelValues("parse").Inc()
		out.Err = err
		return out
	}

	seen := make(map[string]struct{})
	walletURLs := make(map[string]struct{})

	for raw := range entries {
		out.EntriesSeen++
		o.metrics.EntriesSeen.Inc()

		obs, err := domain.NormalizeAdvisory(raw, region)
		if err != nil {
			logger.Warn("skipping malformed advisory entry", "error", err, "title", raw[domain.FieldTitle])
			o.metrics.NormalizeErrors.Inc()
			out.Skipped++
			continue
		}

		o.applyObservation(ctx, logger, obs, &out)
		seen[obs.StormID] = struct{}{}
		if o.opts.FollowWalletFeeds && obs.WalletURL != "" {
			walletURLs[obs.WalletURL] = struct{}{}
		}
	}

	if o.opts.FollowWalletFeeds {
		o.processWalletFeeds(ctx, logger, region, walletURLs, seen, &out)
	}

	o.sweepMissing(ctx, logger, region, seen, &out)
	o.metrics.RegionsProcessed.Inc()
	return out
}

// applyObservation reconciles one observation against stored state and
// persists the decision. Persistence failures are entry-fatal only: they are
// counted and the caller moves on to the next entry.
func (o *Orchestrator) applyObservation(ctx context.Context, logger *slog.Logger, obs domain.Observation, out *Outcome) {
	prev, err := o.store.GetStormState(ctx, obs.StormID)
	if err != nil {
		logger.Warn("load storm state failed, skipping entry", "storm_id", obs.StormID, "error", err)
		o.metrics.PersistenceErrors.Inc()
		out.Skipped++
		return
	}

	dec := domain.Reconcile(obs, prev)

	if err := o.store.UpsertStormState(ctx, dec.State); err != nil {
		logger.Warn("upsert storm state failed, skipping entry", "storm_id", obs.StormID, "error", err)
		o.metrics.PersistenceErrors.Inc()
		out.Skipped++
		return
	}

	if dec.History != nil {
		if err := o.store.AppendHistory(ctx, *dec.History); err != nil {
			logger.Warn("append history failed", "storm_id", obs.StormID, "error", err)
			o.metrics.PersistenceErrors.Inc()
			out.Skipped++
			return
		}
		o.publishHistory(ctx, logger, *dec.History)
	}

	switch dec.Action {
	case domain.ActionCreate:
		out.Created++
		o.metrics.EntriesCreated.Inc()
		logger.Info("new storm tracked", "storm_id", obs.StormID, "name", obs.Name, "type", obs.StormType)
	case domain.ActionRefresh:
		out.Refreshed++
		o.metrics.EntriesRefreshed.Inc()
	case domain.ActionRefreshWithHistory:
		out.WithHistory++
		o.metrics.EntriesWithHistory.Inc()
	}
}

// processWalletFeeds pulls each distinct wallet sub-feed observed in the main
// feed, sequentially and in stable order. Wallet failures are warnings: the
// main feed already succeeded, so the region outcome stays clean.
func (o *Orchestrator) processWalletFeeds(ctx context.Context, logger *slog.Logger, region domain.Region, walletURLs map[string]struct{}, seen map[string]struct{}, out *Outcome) {
	urls := make([]string, 0, len(walletURLs))
	for u := range walletURLs {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	for _, u := range urls {
		data, err := o.fetcher.Fetch(ctx, u)
		if err != nil {
			logger.Warn("wallet feed fetch failed", "url", u, "error", err)
			continue
		}
		entries, err := o.parser.Parse(data)
		if err != nil {
			logger.Warn("wallet feed unparsable", "url", u, "error", err)
			continue
		}
		for raw := range entries {
			out.EntriesSeen++
			o.metrics.EntriesSeen.Inc()
			obs, err := domain.NormalizeAdvisory(raw, region)
			if err != nil {
				logger.Warn("skipping malformed wallet advisory", "url", u, "error", err)
				o.metrics.NormalizeErrors.Inc()
				out.Skipped++
				continue
			}
			o.applyObservation(ctx, logger, obs, out)
			seen[obs.StormID] = struct{}{}
		}
	}
}

// sweepMissing increments the miss counter of active storms absent from this
// cycle's feed snapshot and marks them inactive at the configured threshold.
// Regions that failed this cycle are never swept: a broken feed says nothing
// about its storms.
func (o *Orchestrator) sweepMissing(ctx context.Context, logger *slog.Logger, region domain.Region, seen map[string]struct{}, out *Outcome) {
	states, err := o.store.ListActiveStorms(ctx, region.ID)
	if err != nil {
		logger.Warn("inactive sweep skipped, cannot list active storms", "error", err)
		return
	}

	for _, state := range states {
		if _, ok := seen[state.StormID]; ok {
			continue
		}
		misses, err := o.store.RecordMiss(ctx, state.StormID)
		if err != nil {
			logger.Warn("record miss failed", "storm_id", state.StormID, "error", err)
			continue
		}
		if misses < o.opts.MissingCycleThreshold {
			continue
		}
		if err := o.store.MarkInactive(ctx, state.StormID); err != nil {
			logger.Warn("mark inactive failed", "storm_id", state.StormID, "error", err)
			continue
		}
		out.MarkedInactive++
		o.metrics.StormsMarkedInactive.Inc()
		logger.Info("storm marked inactive", "storm_id", state.StormID, "missed_cycles", misses)
	}
}

func (o *Orchestrator) publishHistory(ctx context.Context, logger *slog.Logger, entry domain.HistoryEntry) {
	if o.opts.Publisher == nil {
		return
	}
	if err := o.opts.Publisher.PublishHistory(ctx, entry); err != nil {
		logger.Warn("history publish failed", "storm_id", entry.StormID, "error", err)
	}
}

// IsFeedError reports whether err is a region-level feed failure (fetch or
// parse), as opposed to an entry-level or store failure.
func IsFeedError(err error) bool {
	var fe *feed.FetchError
	var pe *feed.ParseError
	return errors.As(err, &fe) || errors.As(err, &pe)
}
