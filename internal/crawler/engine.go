package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/clock/system"
	"github.com/JakeFAU/linkcrawler/internal/dispatcher"
	"github.com/JakeFAU/linkcrawler/internal/hash/sha256"
	uuidgen "github.com/JakeFAU/linkcrawler/internal/id/uuid"
	"github.com/JakeFAU/linkcrawler/internal/metrics"
	"github.com/JakeFAU/linkcrawler/internal/progress"
)

// ErrAlreadyRun is returned when Run is called on an engine that has already run.
var ErrAlreadyRun = errors.New("crawl engine already ran")

// Engine drives the round-based breadth-first crawl. Each round shuffles the
// frontier, checks every admitted URL on a bounded worker pool, then folds the
// results through a single aggregating stage that writes records and stages
// the next frontier. Nothing discovered in round N is fetched before round N
// completes.
type Engine struct {
	cfg        Config
	normalizer *Normalizer
	policy     *DomainPolicy
	deps       Dependencies
	dispatch   *dispatcher.Dispatcher
	state      *crawlState
	rng        *rand.Rand
	logger     *zap.Logger

	started atomic.Bool
	runID   uuid.UUID
	rounds  int
}

// checkOutcome is one fetch. Only claimed outcomes are recorded as checked
// links; every outcome gets a crawl log line.
type checkOutcome struct {
	link    Link
	claimed bool
	page    PageLinks
	dur     time.Duration
}

// NewEngine validates the configuration and wires the collaborators.
// Configuration problems are returned as *ConfigError.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if len(cfg.Seeds) == 0 {
		return nil, configErr("links", "", ErrNoSeeds)
	}
	if deps.Fetcher == nil || deps.Pages == nil || deps.Recorder == nil {
		return nil, errors.New("crawl engine requires a fetcher, page fetcher, and recorder")
	}
	normalizer, err := NewNormalizer(cfg.DeleteParams)
	if err != nil {
		return nil, err
	}
	policy, err := NewDomainPolicy(cfg.Seeds, cfg.SkipDomains, cfg.SkipURLs)
	if err != nil {
		return nil, err
	}

	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if deps.Hasher == nil {
		deps.Hasher = sha256.New()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = uuidgen.NewUUIDGenerator()
	}
	if deps.Progress == nil {
		deps.Progress = progress.Discard
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	seed := cfg.ShuffleSeed
	if seed == 0 {
		seed = rand.Uint64()
	}

	return &Engine{
		cfg:        cfg,
		normalizer: normalizer,
		policy:     policy,
		deps:       deps,
		dispatch:   dispatcher.New(cfg.Concurrency),
		state:      newCrawlState(),
		rng:        rand.New(rand.NewPCG(seed, seed>>1|1)),
		logger:     logger,
	}, nil
}

// Run crawls until the frontier is empty or ctx is canceled. Per-URL fetch
// failures are recorded and never abort the crawl.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	runID, err := e.newRunID()
	if err != nil {
		return err
	}
	e.runID = runID
	e.logger = e.logger.With(zap.Stringer("run_id", runID))

	start := e.deps.Clock.Now()
	frontier := e.seedFrontier()
	if len(frontier) == 0 {
		return configErr("links", strings.Join(e.cfg.Seeds, ","), ErrNoSeeds)
	}
	e.emit(progress.Event{Stage: progress.StageCrawlStart, Queued: len(frontier)})
	e.logger.Info("crawl started",
		zap.Strings("internal_domains", e.policy.InternalDomains()),
		zap.Int("seeds", len(frontier)),
		zap.Int("concurrency", e.dispatch.Workers()),
	)

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return e.fail(err, start)
		}
		next, err := e.runRound(ctx, frontier)
		if err != nil {
			return e.fail(err, start)
		}
		frontier = next
	}

	checked := len(e.state.checkedLinks())
	e.emit(progress.Event{
		Stage:   progress.StageCrawlDone,
		Checked: int64(checked),
		Dur:     e.deps.Clock.Since(start),
	})
	e.logger.Info("crawl finished",
		zap.Int("rounds", e.rounds),
		zap.Int("checked", checked),
		zap.Int("edges", len(e.state.siteMap())),
	)
	return nil
}

func (e *Engine) fail(err error, start time.Time) error {
	e.emit(progress.Event{
		Stage:   progress.StageCrawlError,
		Checked: int64(len(e.state.checkedLinks())),
		Dur:     e.deps.Clock.Since(start),
		Note:    err.Error(),
	})
	e.logger.Warn("crawl aborted", zap.Int("rounds", e.rounds), zap.Error(err))
	return fmt.Errorf("crawl round %d: %w", e.rounds, err)
}

func (e *Engine) seedFrontier() []string {
	set := make(map[string]struct{}, len(e.cfg.Seeds))
	for _, seed := range e.cfg.Seeds {
		if canonical := e.normalizer.Canonicalize(seed); canonical != "" {
			set[canonical] = struct{}{}
		}
	}
	return sortedKeys(set)
}

func (e *Engine) runRound(ctx context.Context, frontier []string) ([]string, error) {
	e.rounds++
	round := e.rounds
	start := e.deps.Clock.Now()
	batch := e.shuffle(frontier)

	FrontierSize.Set(float64(len(batch)))
	e.deps.Recorder.WriteLogLine(fmt.Sprintf("URLs to check: %d", len(batch)))
	e.emit(progress.Event{Stage: progress.StageRoundStart, Round: round, Queued: len(batch)})

	dispatched := make([]string, 0, len(batch))
	for _, u := range batch {
		if verdict := e.policy.Admit(u); verdict != VerdictAccept {
			e.reject("frontier", u, verdict)
			continue
		}
		if !e.state.markRequested(u) {
			continue
		}
		dispatched = append(dispatched, u)
	}

	outcomes := make([]*checkOutcome, len(dispatched))
	err := e.dispatch.Run(ctx, len(dispatched), func(ctx context.Context, i int) error {
		outcomes[i] = e.check(ctx, dispatched[i])
		return nil
	})
	if err != nil {
		return nil, err
	}

	next := make(map[string]struct{})
	for _, out := range outcomes {
		if out != nil {
			e.aggregate(round, out, next)
		}
	}
	queued := sortedKeys(next)

	RoundsCompleted.Inc()
	e.emit(progress.Event{
		Stage:  progress.StageRoundDone,
		Round:  round,
		Queued: len(queued),
		Dur:    e.deps.Clock.Since(start),
	})
	e.logger.Debug("round finished",
		zap.Int("round", round),
		zap.Int("batch", len(batch)),
		zap.Int("dispatched", len(dispatched)),
		zap.Int("next", len(queued)),
	)
	return queued, nil
}

func (e *Engine) shuffle(frontier []string) []string {
	batch := slices.Clone(frontier)
	slices.Sort(batch)
	e.rng.Shuffle(len(batch), func(i, j int) {
		batch[i], batch[j] = batch[j], batch[i]
	})
	return batch
}

// check runs on a worker goroutine. It fetches requested, validates the
// effective URL, claims it in the checked set, and downloads the page links
// when the link is eligible for extraction.
func (e *Engine) check(ctx context.Context, requested string) *checkOutcome {
	start := e.deps.Clock.Now()
	res, err := e.deps.Fetcher.Fetch(ctx, requested, e.policy.IsInternal(requested))
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		FetchFailures.Inc()
		e.logger.Warn("fetch failed", zap.String("url", requested), zap.Error(err))
		res = FetchResult{HTTPCode: StatusFetchFailed, EffectiveURL: requested}
	}
	if res.EffectiveURL == "" {
		res.EffectiveURL = requested
	}

	link := Link{
		RequestedURL:  requested,
		EffectiveURL:  res.EffectiveURL,
		HTTPCode:      res.HTTPCode,
		RedirectCount: res.RedirectCount,
		MIMEType:      res.MIMEType,
		IsInternal:    e.policy.IsInternal(requested),
	}
	out := &checkOutcome{link: link}

	effective := e.normalizer.Canonicalize(res.EffectiveURL)
	if effective == "" {
		e.reject("effective", res.EffectiveURL, VerdictUnparseable)
		return out
	}
	out.link.EffectiveURL = effective
	if verdict := e.policy.Admit(effective); verdict != VerdictAccept {
		e.reject("effective", effective, verdict)
		return out
	}
	if !e.state.claimChecked(out.link) {
		e.logger.Debug("effective url already checked",
			zap.String("url", requested),
			zap.String("effective_url", effective),
		)
		return out
	}
	out.claimed = true
	link = out.link
	if e.extractable(link) {
		page, err := e.deps.Pages.FetchLinks(ctx, effective)
		switch {
		case err == nil:
			out.page = page
		case ctx.Err() == nil:
			e.logger.Warn("link extraction failed", zap.String("effective_url", effective), zap.Error(err))
		}
	}
	out.dur = e.deps.Clock.Since(start)
	return out
}

// extractable reports whether outbound links should be read from link. The
// effective URL decides internal-ness so a redirect off-site is not crawled.
func (e *Engine) extractable(link Link) bool {
	return !link.Failed() &&
		link.IsHTML() &&
		!link.HitRedirectCap(e.cfg.MaxRedirects) &&
		e.policy.IsInternal(link.EffectiveURL)
}

// aggregate runs on the round goroutine only.
func (e *Engine) aggregate(round int, out *checkOutcome, next map[string]struct{}) {
	link := out.link
	rec := e.deps.Recorder
	rec.WriteLogLine(link.LogLine())
	if !out.claimed {
		return
	}
	rec.WriteURLRow(link.EffectiveURL, link.HTTPCode)
	if out.page.CacheID > 0 {
		rec.WriteLogLine(fmt.Sprintf("Cached %d: %s", out.page.CacheID, link.EffectiveURL))
	}

	class := progress.ClassifyStatus(link.HTTPCode)
	URLsChecked.WithLabelValues(string(class)).Inc()

	for _, raw := range out.page.Links {
		candidate := e.resolveOutbound(raw, link.EffectiveURL)
		if candidate == "" {
			continue
		}
		if verdict := e.policy.Admit(candidate); verdict != VerdictAccept {
			e.reject("outbound", candidate, verdict)
			continue
		}
		e.recordEdge(link.EffectiveURL, candidate)
		if e.state.known(candidate) {
			continue
		}
		next[candidate] = struct{}{}
	}

	e.emit(progress.Event{
		Stage:       progress.StageFetchDone,
		Round:       round,
		Site:        metrics.SanitizeSite(link.EffectiveURL),
		URL:         link.EffectiveURL,
		Bytes:       out.page.Bytes,
		Checked:     1,
		StatusClass: class,
		Dur:         out.dur,
	})
}

func (e *Engine) resolveOutbound(raw, base string) string {
	candidate := e.normalizer.Canonicalize(raw)
	if candidate == "" {
		return ""
	}
	resolved := e.normalizer.Resolve(candidate, base)
	if resolved == "" {
		return ""
	}
	return e.normalizer.Canonicalize(resolved)
}

func (e *Engine) recordEdge(source, dest string) {
	key, err := e.deps.Hasher.HashEdge(source, dest)
	if err != nil {
		key = source + "\x00" + dest
	}
	if e.state.markEdge(key, Edge{Source: source, Dest: dest}) {
		e.deps.Recorder.WriteMapRow(source, dest)
		SiteMapEdges.Inc()
	}
}

func (e *Engine) reject(stage, rawURL string, verdict Verdict) {
	URLsRejected.WithLabelValues(stage, verdict.String()).Inc()
	e.logger.Debug("url rejected",
		zap.String("stage", stage),
		zap.String("url", rawURL),
		zap.Stringer("reason", verdict),
	)
}

func (e *Engine) emit(evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(e.runID)
	evt.TS = e.deps.Clock.Now().UTC()
	e.deps.Progress.Emit(evt)
}

func (e *Engine) newRunID() (uuid.UUID, error) {
	raw, err := e.deps.IDs.NewID()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate run id: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse run id %q: %w", raw, err)
	}
	return id, nil
}

// Checked returns the checked links in the order they were claimed.
func (e *Engine) Checked() []Link {
	return e.state.checkedLinks()
}

// Lookup returns the checked link stored under a canonical effective URL.
func (e *Engine) Lookup(effectiveURL string) (Link, bool) {
	return e.state.lookup(effectiveURL)
}

// SiteMap returns the unique site-map edges in discovery order.
func (e *Engine) SiteMap() []Edge {
	return e.state.siteMap()
}

// Rounds returns the number of rounds run. Read it after Run returns.
func (e *Engine) Rounds() int {
	return e.rounds
}

// RunID returns the identifier of the current or last run.
func (e *Engine) RunID() uuid.UUID {
	return e.runID
}

// Normalizer exposes the URL normalizer built from the configuration.
func (e *Engine) Normalizer() *Normalizer {
	return e.normalizer
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
