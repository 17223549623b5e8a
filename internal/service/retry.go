package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/domain/entities"
	"github.com/aliskhannn/lingua-streak-bot/internal/metrics"
)

// withRetry reruns op after a version conflict. op must reload and
// recompute from current state on every attempt; it never replays a delta.
// Any other error stops immediately.
func (s *StreakService) withRetry(ctx context.Context, name string, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 5 * time.Millisecond
	eb.MaxInterval = 200 * time.Millisecond
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, s.opts.MaxTxRetries), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !errors.Is(err, entities.ErrVersionConflict) {
			return backoff.Permanent(err)
		}

		metrics.TxRetried()
		s.logger.Debug("version conflict, retrying",
			zap.String("op", name),
			zap.Int("attempt", attempt),
		)
		return err
	}, b)
}
