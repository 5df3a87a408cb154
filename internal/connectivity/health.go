package connectivity

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v5"
	"go.uber.org/zap"
)

var ErrUnhealthy = errors.New("source reports unhealthy status")

// HealthChecker: то, что пробе нужно от клиента API.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (bool, error)
}

const maxProbeDelay = 30 * time.Second

// WaitHealthy опрашивает /health до первого цикла. Единственное место с повторами:
// на рабочем пути шлюз не ретраит, там повтором служит таймер.
func WaitHealthy(ctx context.Context, checker HealthChecker, attempts uint, delay time.Duration, logger *zap.Logger) error {
	logger = logger.Named("probe")
	if attempts == 0 {
		attempts = 1
	}

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
			d := delay << n
			if d <= 0 || d > maxProbeDelay {
				return maxProbeDelay
			}
			return d
		}),
	)

	var attempt uint
	return r.Do(func() error {
		attempt++
		healthy, err := checker.CheckHealth(ctx)
		if err == nil && !healthy {
			err = ErrUnhealthy
		}
		if err != nil {
			logger.Warn("health probe failed",
				zap.Uint("attempt", attempt),
				zap.Uint("of", attempts),
				zap.Error(err))
			return err
		}
		logger.Info("source is healthy", zap.Uint("attempt", attempt))
		return nil
	})
}
