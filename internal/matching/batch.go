package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plugcu/backend/internal/models"
)

const tracerName = "github.com/plugcu/backend/internal/matching"

// BrandSource reads brand profiles.
type BrandSource interface {
	ListByStatus(ctx context.Context, status models.VerificationStatus) ([]*models.Brand, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Brand, error)
}

// EventSource reads events joined with their organization.
type EventSource interface {
	ListPublished(ctx context.Context) ([]*models.EventWithOrg, error)
	GetWithOrg(ctx context.Context, id uuid.UUID) (*models.EventWithOrg, error)
}

// Store persists match records.
type Store interface {
	// UpsertMatch writes m keyed on (BrandID, EventID). It reports false when the
	// stored record already carries m.ContentKey.
	UpsertMatch(ctx context.Context, m *models.Match) (bool, error)
	DeleteMatch(ctx context.Context, brandID, eventID uuid.UUID) (bool, error)
	DeleteForBrand(ctx context.Context, brandID uuid.UUID) (int64, error)
	DeleteForEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
}

// FailureKind classifies a pair that could not be processed.
type FailureKind string

const (
	FailureInvalidInput        FailureKind = "invalid_input"
	FailureUpstreamUnavailable FailureKind = "upstream_unavailable"
)

// PairFailure records one skipped pair.
type PairFailure struct {
	BrandID uuid.UUID   `json:"brand_id"`
	EventID uuid.UUID   `json:"event_id"`
	Kind    FailureKind `json:"kind"`
	Error   string      `json:"error"`
}

// Report summarizes a batch run.
type Report struct {
	Pairs     int           `json:"pairs"`
	Written   int           `json:"written"`
	Unchanged int           `json:"unchanged"`
	Removed   int           `json:"removed"`
	Failures  []PairFailure `json:"failures"`
}

// BatchConfig configures a Batch.
type BatchConfig struct {
	MinScore float64
	Workers  int
}

// Batch recomputes stored matches for verified brands and published events.
type Batch struct {
	scorer *Scorer
	brands BrandSource
	events EventSource
	store  Store
	cfg    BatchConfig
	logger *zap.Logger
}

// NewBatch creates a batch runner.
func NewBatch(scorer *Scorer, brands BrandSource, events EventSource, store Store, cfg BatchConfig, logger *zap.Logger) *Batch {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Batch{scorer: scorer, brands: brands, events: events, store: store, cfg: cfg, logger: logger}
}

// Run scores every verified brand against every published event.
func (b *Batch) Run(ctx context.Context, asOf time.Time) (report *Report, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "matching.Run")
	defer func() { endSpan(span, report, err) }()

	brands, err := b.brands.ListByStatus(ctx, models.StatusVerified)
	if err != nil {
		return nil, fmt.Errorf("%w: list brands: %v", ErrUpstreamUnavailable, err)
	}
	events, err := b.events.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %v", ErrUpstreamUnavailable, err)
	}
	return b.process(ctx, brands, events, asOf)
}

// RunForBrand rescores one brand against every published event. A brand that is
// missing or no longer verified has its matches removed.
func (b *Batch) RunForBrand(ctx context.Context, brandID uuid.UUID, asOf time.Time) (report *Report, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "matching.RunForBrand",
		trace.WithAttributes(attribute.String("plugcu.brand_id", brandID.String())))
	defer func() { endSpan(span, report, err) }()

	brand, err := b.brands.GetByID(ctx, brandID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: get brand: %v", ErrUpstreamUnavailable, err)
	}
	if brand == nil || brand.Status != models.StatusVerified {
		n, err := b.store.DeleteForBrand(ctx, brandID)
		if err != nil {
			return nil, fmt.Errorf("%w: delete brand matches: %v", ErrUpstreamUnavailable, err)
		}
		return &Report{Removed: int(n), Failures: []PairFailure{}}, nil
	}
	events, err := b.events.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list events: %v", ErrUpstreamUnavailable, err)
	}
	return b.process(ctx, []*models.Brand{brand}, events, asOf)
}

// RunForEvent rescores every verified brand against one event. An event that is
// missing or not published has its matches removed.
func (b *Batch) RunForEvent(ctx context.Context, eventID uuid.UUID, asOf time.Time) (report *Report, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "matching.RunForEvent",
		trace.WithAttributes(attribute.String("plugcu.event_id", eventID.String())))
	defer func() { endSpan(span, report, err) }()

	event, err := b.events.GetWithOrg(ctx, eventID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: get event: %v", ErrUpstreamUnavailable, err)
	}
	if event == nil || event.Status != models.EventPublished {
		n, err := b.store.DeleteForEvent(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("%w: delete event matches: %v", ErrUpstreamUnavailable, err)
		}
		return &Report{Removed: int(n), Failures: []PairFailure{}}, nil
	}
	brands, err := b.brands.ListByStatus(ctx, models.StatusVerified)
	if err != nil {
		return nil, fmt.Errorf("%w: list brands: %v", ErrUpstreamUnavailable, err)
	}
	return b.process(ctx, brands, []*models.EventWithOrg{event}, asOf)
}

func endSpan(span trace.Span, r *Report, err error) {
	if r != nil {
		span.SetAttributes(
			attribute.Int("match.pairs", r.Pairs),
			attribute.Int("match.written", r.Written),
			attribute.Int("match.unchanged", r.Unchanged),
			attribute.Int("match.removed", r.Removed),
			attribute.Int("match.failures", len(r.Failures)),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// process splits brands into disjoint shards and scores each shard on its own goroutine.
func (b *Batch) process(ctx context.Context, brands []*models.Brand, events []*models.EventWithOrg, asOf time.Time) (*Report, error) {
	report := &Report{Failures: []PairFailure{}}
	var mu sync.Mutex

	shards := b.cfg.Workers
	if shards > len(brands) {
		shards = len(brands)
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < shards; i++ {
		shard := i
		g.Go(func() error {
			for j := shard; j < len(brands); j += shards {
				for _, e := range events {
					if err := gctx.Err(); err != nil {
						return err
					}
					o := b.scorePair(gctx, brands[j], e, asOf)
					mu.Lock()
					report.add(o)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	sort.Slice(report.Failures, func(i, j int) bool {
		fi, fj := report.Failures[i], report.Failures[j]
		if fi.BrandID != fj.BrandID {
			return fi.BrandID.String() < fj.BrandID.String()
		}
		return fi.EventID.String() < fj.EventID.String()
	})
	b.logger.Info("match batch finished",
		zap.Int("brands", len(brands)),
		zap.Int("events", len(events)),
		zap.Int("pairs", report.Pairs),
		zap.Int("written", report.Written),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("removed", report.Removed),
		zap.Int("failures", len(report.Failures)),
	)
	return report, nil
}

type outcome int

const (
	outcomeWritten outcome = iota
	outcomeUnchanged
	outcomeRemoved
	outcomeBelowMin
	outcomeFailed
)

type pairResult struct {
	outcome outcome
	failure PairFailure
}

func (r *Report) add(p pairResult) {
	r.Pairs++
	switch p.outcome {
	case outcomeWritten:
		r.Written++
	case outcomeUnchanged:
		r.Unchanged++
	case outcomeRemoved:
		r.Removed++
	case outcomeFailed:
		r.Failures = append(r.Failures, p.failure)
	}
}

func (b *Batch) scorePair(ctx context.Context, brand *models.Brand, event *models.EventWithOrg, asOf time.Time) pairResult {
	fail := func(kind FailureKind, err error) pairResult {
		b.logger.Warn("match pair skipped",
			zap.String("brand_id", brand.ID.String()),
			zap.String("event_id", event.ID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return pairResult{outcome: outcomeFailed, failure: PairFailure{
			BrandID: brand.ID, EventID: event.ID, Kind: kind, Error: err.Error(),
		}}
	}

	res, err := b.scorer.Score(brand, &event.Event, &event.Org, asOf)
	if err != nil {
		return fail(FailureInvalidInput, err)
	}

	if res.Score < b.cfg.MinScore {
		removed, err := b.store.DeleteMatch(ctx, brand.ID, event.ID)
		if err != nil {
			return fail(FailureUpstreamUnavailable, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err))
		}
		if removed {
			return pairResult{outcome: outcomeRemoved}
		}
		return pairResult{outcome: outcomeBelowMin}
	}

	m := &models.Match{
		BrandID:    brand.ID,
		EventID:    event.ID,
		Score:      res.Score,
		Reasoning:  res.Breakdown,
		ContentKey: b.scorer.ContentKey(brand, event, asOf),
	}
	written, err := b.store.UpsertMatch(ctx, m)
	if err != nil {
		return fail(FailureUpstreamUnavailable, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err))
	}
	if written {
		return pairResult{outcome: outcomeWritten}
	}
	return pairResult{outcome: outcomeUnchanged}
}
