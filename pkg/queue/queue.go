package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueMatches is the Redis list key for match recompute jobs.
	QueueMatches = "worker:matches"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobRecomputeAll   JobType = "recompute_all"
	JobRecomputeBrand JobType = "recompute_brand"
	JobRecomputeEvent JobType = "recompute_event"
)

// RecomputePayload names the brand or event to rescore. Empty for recompute_all.
type RecomputePayload struct {
	TargetID uuid.UUID `json:"target_id,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Recompute decodes the job payload.
func (j *Job) Recompute() (RecomputePayload, error) {
	var p RecomputePayload
	if len(j.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueRecomputeAll enqueues a full match recompute.
func (q *Queue) EnqueueRecomputeAll(ctx context.Context, reason string) error {
	return q.enqueue(ctx, JobRecomputeAll, RecomputePayload{Reason: reason})
}

// EnqueueRecomputeBrand enqueues a recompute of one brand's matches.
func (q *Queue) EnqueueRecomputeBrand(ctx context.Context, brandID uuid.UUID, reason string) error {
	return q.enqueue(ctx, JobRecomputeBrand, RecomputePayload{TargetID: brandID, Reason: reason})
}

// EnqueueRecomputeEvent enqueues a recompute of one event's matches.
func (q *Queue) EnqueueRecomputeEvent(ctx context.Context, eventID uuid.UUID, reason string) error {
	return q.enqueue(ctx, JobRecomputeEvent, RecomputePayload{TargetID: eventID, Reason: reason})
}

func (q *Queue) enqueue(ctx context.Context, typ JobType, payload RecomputePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   body,
		Attempt:   0,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueMatches, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued match job", zap.String("job_id", job.ID), zap.String("type", string(typ)),
		zap.String("reason", payload.Reason))
	return nil
}

// Dequeue blocks up to timeout for a job. It returns (nil, nil) when none arrived
// or the payload was unreadable.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueMatches).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueMatches, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Len returns the number of jobs waiting in key.
func (q *Queue) Len(ctx context.Context, key string) (int64, error) {
	return q.client.LLen(ctx, key).Result()
}
