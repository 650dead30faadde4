package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/skalibog/bmse/pkg/logger"
	"github.com/skalibog/bmse/pkg/models"
)

const chainMaxAttempts = 3

// Chain перебирает поставщиков данных в порядке приоритета.
// Временные сбои повторяются с нарастающей задержкой, превышение лимита
// сразу переключает на следующего поставщика. Частые отказы поставщика
// размыкают его предохранитель до восстановления.
type Chain struct {
	providers []Provider
	breakers  map[string]*gobreaker.CircuitBreaker
}

// NewChain создает цепочку поставщиков в порядке приоритета
func NewChain(providers ...Provider) *Chain {
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(providers))
	for _, p := range providers {
		breakers[p.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        p.Name(),
			MaxRequests: 2,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}
	return &Chain{providers: providers, breakers: breakers}
}

// Name возвращает имя цепочки
func (c *Chain) Name() string { return "chain" }

// FetchSnapshot запрашивает срез данных у первого доступного поставщика
func (c *Chain) FetchSnapshot(ctx context.Context, symbol string, tf Timeframes) (*models.Snapshot, error) {
	var lastErr error

	for _, p := range c.providers {
		snap, err := c.fetchFrom(ctx, p, symbol, tf)
		if err == nil {
			return snap, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		logger.Warn("Поставщик недоступен, переключение на следующий",
			zap.String("provider", p.Name()),
			zap.String("symbol", symbol),
			zap.Error(err))
	}

	return nil, fmt.Errorf("все поставщики недоступны для %s: %w (%v)", symbol, ErrDataUnavailable, lastErr)
}

// fetchFrom выполняет запрос через предохранитель с повторами временных сбоев
func (c *Chain) fetchFrom(ctx context.Context, p Provider, symbol string, tf Timeframes) (*models.Snapshot, error) {
	bo := &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < chainMaxAttempts; attempt++ {
		res, err := c.breakers[p.Name()].Execute(func() (interface{}, error) {
			return p.FetchSnapshot(ctx, symbol, tf)
		})
		if err == nil {
			return res.(*models.Snapshot), nil
		}
		lastErr = err

		// Лимит запросов и разомкнутый предохранитель не лечатся повтором
		if errors.Is(err, ErrRateLimited) ||
			errors.Is(err, gobreaker.ErrOpenState) ||
			errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, err
		}
		if !IsTransient(err) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bo.Duration()):
		}
	}
	return nil, lastErr
}
