package poller

import (
	"context"
	"log/slog"
	"time"

	"tokenflight/pkg/types"
)

// FetchFunc loads the latest snapshot of an order
type FetchFunc func(ctx context.Context) (*types.Order, error)

type watchConfig struct {
	now    func() time.Time
	wait   func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// WatchOption configures Watch
type WatchOption func(*watchConfig)

// WithClock overrides the time source
func WithClock(now func() time.Time) WatchOption {
	return func(c *watchConfig) { c.now = now }
}

// WithWait overrides how Watch sleeps between fetches
func WithWait(wait func(ctx context.Context, d time.Duration) error) WatchOption {
	return func(c *watchConfig) { c.wait = wait }
}

// WithLogger sets the logger used for failed fetches
func WithLogger(logger *slog.Logger) WatchOption {
	return func(c *watchConfig) { c.logger = logger }
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Watch polls fetch on the progressive schedule until the order reaches a
// terminal status, which it returns. The schedule is re-evaluated after
// every fetch and ages from the last fetch that brought a new status, so a
// stalled order backs off while a moving one keeps the fast tier. Failed
// fetches are logged and retried on the same schedule. onUpdate, if set,
// sees every successful snapshot.
func Watch(ctx context.Context, fetch FetchFunc, onUpdate func(*types.Order), opts ...WatchOption) (*types.Order, error) {
	cfg := watchConfig{now: time.Now, wait: Sleep, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		last      *types.Order
		updatedAt time.Time
	)
	for {
		params := Params{DataUpdatedAt: updatedAt, Now: cfg.now()}
		if last != nil {
			params.OrderStatus = last.Status
		}
		delay, ok := NextInterval(params)
		if !ok {
			return last, nil
		}
		if err := cfg.wait(ctx, delay); err != nil {
			return last, err
		}

		order, err := fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			cfg.logger.Warn("order status fetch failed", "error", err)
			continue
		}
		if last == nil || last.Status != order.Status {
			updatedAt = cfg.now()
		}
		last = order
		if onUpdate != nil {
			onUpdate(order)
		}
	}
}
