// Package cycle implements the single-pass monitor loop over all targets.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yoshidak/webwatch/internal/id/uuid"
	"github.com/yoshidak/webwatch/internal/metrics"
	"github.com/yoshidak/webwatch/internal/normalize"
	"github.com/yoshidak/webwatch/internal/resolver"
	"github.com/yoshidak/webwatch/internal/schedule"
	"github.com/yoshidak/webwatch/internal/watch"
)

// ErrCycleRunning is returned by TryRun when a cycle is already in flight.
var ErrCycleRunning = errors.New("monitor cycle already running")

// Resolver turns a keyword watch into a fetchable URL.
type Resolver interface {
	Resolve(ctx context.Context, word, source string) (string, error)
}

// Classifier compares normalized text against the stored baseline.
type Classifier interface {
	Classify(text string, prevFingerprint string, prevLength int) (watch.Classification, error)
}

// Notifier delivers a change notification for one target.
type Notifier interface {
	NotifyChange(ctx context.Context, target watch.MonitorTarget) error
}

// Config controls Runner behavior.
type Config struct {
	Concurrency   int
	TargetTimeout time.Duration
	Location      *time.Location
}

// Deps are the collaborators a Runner drives.
type Deps struct {
	Store      watch.RowStore
	Resolver   Resolver
	Probe      watch.Fetcher
	Headless   watch.Fetcher
	Promoter   watch.HeadlessDetector
	Classifier Classifier
	Notifier   Notifier
	Limiter    watch.Limiter
	Clock      watch.Clock
	Logger     *zap.Logger
}

// Summary aggregates one cycle's per-target results.
type Summary struct {
	CycleID   string         `json:"cycle_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Total     int            `json:"total"`
	Outcomes  map[string]int `json:"outcomes"`
	Notified  int            `json:"notified"`
	Errors    int            `json:"errors"`
	Results   []watch.Result `json:"-"`
}

// Runner executes monitor cycles.
type Runner struct {
	deps    Deps
	cfg     Config
	ids     *uuid.Generator
	running atomic.Bool
}

// New constructs a Runner.
func New(deps Deps, cfg Config) *Runner {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.TargetTimeout <= 0 {
		cfg.TargetTimeout = 60 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Runner{deps: deps, cfg: cfg, ids: uuid.New()}
}

// Running reports whether a cycle is currently in flight.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// TryRun runs a cycle unless one is already in flight.
func (r *Runner) TryRun(ctx context.Context) (Summary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Summary{}, ErrCycleRunning
	}
	defer r.running.Store(false)
	return r.runCycle(ctx)
}

// RunCycle runs one pass over every target. Callers that need overlap
// protection should use TryRun.
func (r *Runner) RunCycle(ctx context.Context) (Summary, error) {
	return r.runCycle(ctx)
}

func (r *Runner) runCycle(ctx context.Context) (Summary, error) {
	start := r.deps.Clock.Now()
	cycleID, err := r.ids.NewID()
	if err != nil {
		cycleID = "unknown"
	}
	summary := Summary{
		CycleID:   cycleID,
		StartedAt: start,
		Outcomes:  make(map[string]int),
	}

	targets, err := r.deps.Store.List(ctx)
	if err != nil {
		metrics.ObserveCycle("list_failed")
		return summary, fmt.Errorf("list targets: %w", err)
	}
	summary.Total = len(targets)
	hour := schedule.HourIn(start, r.cfg.Location)

	var (
		mu      sync.Mutex
		results = make([]watch.Result, 0, len(targets))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, target := range targets {
		target := target
		g.Go(func() error {
			result := r.processTarget(gctx, target, hour)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; per-target failures live in results.
	_ = g.Wait()

	for _, result := range results {
		summary.Outcomes[string(result.Outcome)]++
		if result.Notified {
			summary.Notified++
		}
		if result.Outcome == watch.OutcomeError {
			summary.Errors++
		}
		metrics.ObserveTarget(string(result.Outcome))
	}
	summary.Results = results
	summary.Duration = time.Since(start)

	status := "ok"
	if ctx.Err() != nil {
		status = "canceled"
	} else if summary.Errors > 0 {
		status = "partial"
	}
	metrics.ObserveCycle(status)
	metrics.ObserveCycleDuration(summary.Duration)

	r.deps.Logger.Info("cycle finished",
		zap.String("cycle_id", cycleID),
		zap.Int("total", summary.Total),
		zap.Int("notified", summary.Notified),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", summary.Duration),
	)
	return summary, ctx.Err()
}

func (r *Runner) processTarget(ctx context.Context, target watch.MonitorTarget, hour int) watch.Result {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.TargetTimeout)
	defer cancel()

	logger := r.deps.Logger.With(
		zap.String("ref", string(target.Ref)),
		zap.String("word", target.Word),
	)

	justResolved := false
	if !target.Resolved() {
		if target.PageWatch() {
			// A page watch with no usable URL is a data problem.
			return watch.Result{
				Target:  target,
				Outcome: watch.OutcomeError,
				ErrKind: watch.ErrKindRow,
				Err:     fmt.Errorf("page watch %s has no url", target.Ref),
			}
		}
		url, err := r.deps.Resolver.Resolve(ctx, target.Word, target.Source)
		if err != nil {
			if errors.Is(err, resolver.ErrNoMatch) {
				logger.Warn("target unresolved", zap.String("source", target.Source))
				return watch.Result{Target: target, Outcome: watch.OutcomeUnresolved, Err: err}
			}
			return watch.Result{
				Target:  target,
				Outcome: watch.OutcomeError,
				ErrKind: watch.ErrKindResolve,
				Err:     fmt.Errorf("resolve %q: %w", target.Word, err),
			}
		}
		target.URL = url
		justResolved = true
		if err := r.deps.Store.UpdateCell(ctx, target.Ref, watch.FieldURL, url); err != nil {
			// Keep going; the URL will be re-resolved next cycle.
			logger.Warn("persist resolved url failed", zap.Error(err))
		}
		logger.Info("target resolved", zap.String("url", url))
	}

	// A freshly resolved target takes its baseline fetch immediately;
	// everything else obeys the hourly gate.
	if !justResolved && !schedule.ShouldRun(target.Frequency, hour) {
		return watch.Result{Target: target, Outcome: watch.OutcomeSkipped}
	}

	text, err := r.fetchText(ctx, target, logger)
	if err != nil {
		logger.Error("fetch failed", zap.String("url", target.URL), zap.Error(err))
		return watch.Result{
			Target:  target,
			Outcome: watch.OutcomeError,
			ErrKind: watch.ErrKindFetch,
			Err:     err,
		}
	}

	classification, err := r.deps.Classifier.Classify(text, target.PrevFingerprint, target.PrevLength)
	if err != nil {
		return watch.Result{
			Target:  target,
			Outcome: watch.OutcomeError,
			ErrKind: watch.ErrKindFetch,
			Err:     fmt.Errorf("classify content: %w", err),
		}
	}

	result := watch.Result{Target: target, Outcome: classification.Outcome}

	switch classification.Outcome {
	case watch.OutcomeUnchanged:
		return result
	case watch.OutcomeNoBaseline, watch.OutcomeMinorSuppressed, watch.OutcomeSignificantChange:
		if err := r.deps.Store.UpdateState(ctx, target.Ref, classification.Fingerprint, classification.Length); err != nil {
			result.Outcome = watch.OutcomeError
			result.ErrKind = watch.ErrKindStore
			result.Err = fmt.Errorf("persist state: %w", err)
			return result
		}
	}

	if classification.Outcome == watch.OutcomeSignificantChange {
		// Baseline is already advanced, so delivery is at most once:
		// a failed push is dropped, not retried.
		if err := r.deps.Notifier.NotifyChange(ctx, target); err != nil {
			metrics.ObserveNotification("failed")
			result.Err = err
		} else {
			metrics.ObserveNotification("sent")
			result.Notified = true
		}
		logger.Info("change detected",
			zap.String("url", target.URL),
			zap.Int("change_chars", classification.ChangeChars),
			zap.Float64("change_ratio", classification.ChangeRatio),
			zap.Bool("notified", result.Notified),
		)
	}
	return result
}

func (r *Runner) fetchText(ctx context.Context, target watch.MonitorTarget, logger *zap.Logger) (string, error) {
	if r.deps.Limiter != nil {
		if err := r.deps.Limiter.Wait(ctx, target.URL); err != nil {
			return "", err
		}
	}

	resp, err := r.deps.Probe.Fetch(ctx, watch.FetchRequest{URL: target.URL})
	if err != nil {
		return "", fmt.Errorf("probe fetch: %w", err)
	}
	metrics.ObserveFetch(target.URL, "probe", resp.Duration)

	if promoted, ok := r.maybePromote(ctx, target, resp, logger); ok {
		resp = promoted
		metrics.ObserveFetch(target.URL, "headless", resp.Duration)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: status %d", target.URL, resp.StatusCode)
	}

	text, err := normalize.Text(resp.Body)
	if err != nil {
		return "", fmt.Errorf("normalize %s: %w", target.URL, err)
	}
	return text, nil
}

func (r *Runner) maybePromote(
	ctx context.Context,
	target watch.MonitorTarget,
	resp watch.FetchResponse,
	logger *zap.Logger,
) (watch.FetchResponse, bool) {
	if r.deps.Promoter == nil || r.deps.Headless == nil {
		return resp, false
	}
	if !r.deps.Promoter.ShouldPromote(resp) {
		return resp, false
	}

	headlessResp, err := r.deps.Headless.Fetch(ctx, watch.FetchRequest{URL: target.URL})
	if err != nil {
		logger.Warn("headless promotion failed", zap.String("url", target.URL), zap.Error(err))
		return resp, false
	}
	headlessResp.UsedHeadless = true
	logger.Debug("headless promotion applied", zap.String("url", target.URL))
	return headlessResp, true
}
