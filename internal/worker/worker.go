package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/plugcu/backend/internal/matching"
	"github.com/plugcu/backend/pkg/queue"
)

const dequeueTimeout = 5 * time.Second

// Runner is the batch scorer.
type Runner interface {
	Run(ctx context.Context, asOf time.Time) (*matching.Report, error)
	RunForBrand(ctx context.Context, brandID uuid.UUID, asOf time.Time) (*matching.Report, error)
	RunForEvent(ctx context.Context, eventID uuid.UUID, asOf time.Time) (*matching.Report, error)
}

// JobSource is the recompute job queue.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// MatchProcessor keeps stored matches current: a full run on a schedule plus targeted runs
// requested through the job queue.
type MatchProcessor struct {
	runner   Runner
	jobs     JobSource
	interval time.Duration
	backoff  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewMatchProcessor creates a processor. interval <= 0 disables the scheduled full run.
func NewMatchProcessor(runner Runner, jobs JobSource, interval time.Duration, logger *zap.Logger) *MatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchProcessor{
		runner:   runner,
		jobs:     jobs,
		interval: interval,
		backoff:  queue.RetryBackoff,
		now:      time.Now,
		logger:   logger,
	}
}

// Process executes one recompute job. Pair failures caused by an unavailable store make the
// job fail so it is retried; invalid pairs do not.
func (p *MatchProcessor) Process(ctx context.Context, job *queue.Job) (err error) {
	ctx, span := otel.Tracer("github.com/plugcu/backend/internal/worker").Start(ctx, "worker.Process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.type", string(job.Type)),
			attribute.Int("job.attempt", job.Attempt),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	payload, err := job.Recompute()
	if err != nil {
		return err
	}
	asOf := p.now()

	var report *matching.Report
	switch job.Type {
	case queue.JobRecomputeAll:
		report, err = p.runner.Run(ctx, asOf)
	case queue.JobRecomputeBrand:
		report, err = p.runner.RunForBrand(ctx, payload.TargetID, asOf)
	case queue.JobRecomputeEvent:
		report, err = p.runner.RunForEvent(ctx, payload.TargetID, asOf)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	if err != nil {
		return err
	}
	if n := upstreamFailures(report); n > 0 {
		return fmt.Errorf("%d pairs not stored: %w", n, matching.ErrUpstreamUnavailable)
	}
	p.logger.Info("match job completed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)),
		zap.String("reason", payload.Reason), zap.Int("pairs", report.Pairs), zap.Int("written", report.Written))
	return nil
}

func upstreamFailures(r *matching.Report) int {
	n := 0
	for _, f := range r.Failures {
		if f.Kind == matching.FailureUpstreamUnavailable {
			n++
		}
	}
	return n
}

// Run starts the scheduler and the queue loop and blocks until ctx is cancelled.
func (p *MatchProcessor) Run(ctx context.Context) {
	if p.interval > 0 {
		go p.schedule(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("match worker stopping")
			return
		default:
		}

		job, err := p.jobs.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.jobs.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

// schedule runs a full recompute at start and then every interval.
func (p *MatchProcessor) schedule(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if _, err := p.runner.Run(ctx, p.now()); err != nil && ctx.Err() == nil {
			p.logger.Error("scheduled match run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *MatchProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
