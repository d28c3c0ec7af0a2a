// Package retry retries dependency connections at startup with exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

// Policy bounds the retry schedule. MaxElapsed 0 retries until ctx is done.
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	MaxElapsed time.Duration
}

// Do calls op until it returns nil, ctx is done or the policy gives up.
// The last error from op is returned.
func Do(ctx context.Context, p Policy, name string, logger *zap.Logger, op func() error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	bo := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		bo.InitialInterval = p.Initial
	}
	if p.Max > 0 {
		bo.MaxInterval = p.Max
	}
	bo.MaxElapsedTime = p.MaxElapsed

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		return op()
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		logger.Warn("dependency not ready, retrying",
			zap.String("dependency", name),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
}
