package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Limiter enforces Budgets against a shared Store. It holds no per-key state,
// so any number of Limiters in any number of processes may share one Store.
type Limiter struct {
	store   Store
	budgets Budgets
	opts    Options
}

var _ Spender = (*Limiter)(nil)

func New(store Store, budgets Budgets, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("quota: store is required")
	}
	if budgets.Len() == 0 {
		return nil, fmt.Errorf("%w: no event types configured", ErrInvalidBudget)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxRetries < 1 {
		return nil, fmt.Errorf("quota: max retries must be >= 1, got %d", o.MaxRetries)
	}

	return &Limiter{store: store, budgets: budgets, opts: o}, nil
}

// CanSpend reports whether units of key's budget were reserved. A false
// result with a nil error means the budget for the current window is spent.
func (l *Limiter) CanSpend(ctx context.Context, key Key, units int64) (bool, error) {
	d, err := l.Spend(ctx, key, units)
	if err != nil {
		return false, err
	}
	return d.Allowed(), nil
}

// Spend is CanSpend with the full Decision.
//
// Errors are never folded into a verdict: an unknown event type yields a
// *ConfigurationError before any store call, exhausted retries yield a
// *WriteConflictError, and store failures a *StoreError.
func (l *Limiter) Spend(ctx context.Context, key Key, units int64, opts ...SpendOption) (Decision, error) {
	start := time.Now()

	if units <= 0 {
		l.opts.Metrics.observeSpend(key.EventType, resultInvalid, time.Since(start))
		return Decision{}, ErrInvalidUnits
	}

	budget, err := l.budgets.Lookup(key.EventType)
	if err != nil {
		l.opts.Metrics.observeSpend(key.EventType, resultConfigError, time.Since(start))
		return Decision{}, err
	}

	so := spendOptions{maxRetries: l.opts.MaxRetries}
	for _, opt := range opts {
		opt(&so)
	}
	if so.maxRetries < 1 {
		so.maxRetries = 1
	}

	call := spendCall{
		key:        namespacedKey(l.opts.Prefix, key),
		eventType:  key.EventType,
		budget:     budget,
		units:      units,
		maxRetries: so.maxRetries,
	}
	d, err := l.spend(ctx, call)
	l.opts.Metrics.observeSpend(key.EventType, resultOf(d, err), time.Since(start))
	return d, err
}

type spendCall struct {
	key        string
	eventType  EventType
	budget     Budget
	units      int64
	maxRetries int
}

// spend runs the optimistic loop. Each attempt is a fresh versioned read
// followed by one conditional write: InsertIfAbsent when the counter is
// absent, CompareAndSwap otherwise. A lost race or a failed store call uses
// up one attempt.
func (l *Limiter) spend(ctx context.Context, c spendCall) (Decision, error) {
	if c.units > c.budget.Limit {
		return Decision{Outcome: Denied, Attempts: 0}, nil
	}

	var (
		bo       backoff.BackOff
		lastErr  error
		lastOp   string
		attempts int
	)
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		attempts = attempt
		if attempt > 1 {
			if bo == nil && l.opts.Backoff != nil {
				bo = l.opts.Backoff()
			}
			if err := wait(ctx, bo); err != nil {
				return Decision{}, &StoreError{Op: lastOpOr(lastOp), Key: c.key, Attempts: attempt - 1, Err: err}
			}
		}

		counter, found, err := l.read(ctx, c.key)
		if err != nil {
			lastOp, lastErr = "read", err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if !found {
			inserted, err := l.insert(ctx, c.key, c.units, c.budget.Window)
			if err != nil {
				lastOp, lastErr = "insert", err
				if ctx.Err() != nil {
					break
				}
				continue
			}
			if inserted {
				return Decision{
					Outcome:    Allowed,
					Used:       c.units,
					Remaining:  c.budget.Limit - c.units,
					ResetAfter: c.budget.Window,
					Attempts:   attempt,
				}, nil
			}
			// Another caller opened the window first; spend against its counter.
			lastErr = nil
			l.conflict(c, attempt, "insert")
			continue
		}

		if counter.Value+c.units > c.budget.Limit {
			return Decision{
				Outcome:    Denied,
				Used:       counter.Value,
				Remaining:  max(c.budget.Limit-counter.Value, 0),
				ResetAfter: counter.TTL,
				Attempts:   attempt,
			}, nil
		}

		var ttl time.Duration
		resetAfter := counter.TTL
		if l.opts.RefreshOnSpend {
			ttl = c.budget.Window
			resetAfter = c.budget.Window
		}

		swapped, err := l.cas(ctx, c.key, counter.Value+c.units, counter.Version, ttl)
		if err != nil {
			lastOp, lastErr = "compare_and_swap", err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if swapped {
			return Decision{
				Outcome:    Allowed,
				Used:       counter.Value + c.units,
				Remaining:  c.budget.Limit - counter.Value - c.units,
				ResetAfter: resetAfter,
				Attempts:   attempt,
			}, nil
		}
		lastErr = nil
		l.conflict(c, attempt, "compare_and_swap")
	}

	if lastErr != nil {
		l.opts.Logger.Error("quota: store call failed",
			"key", c.key, "op", lastOp, "attempts", attempts, "error", lastErr)
		return Decision{}, &StoreError{Op: lastOp, Key: c.key, Attempts: attempts, Err: lastErr}
	}

	l.opts.Logger.Warn("quota: retries exhausted",
		"key", c.key, "event_type", string(c.eventType), "attempts", attempts)
	return Decision{}, &WriteConflictError{Key: c.key, Attempts: attempts}
}

func (l *Limiter) conflict(c spendCall, attempt int, op string) {
	l.opts.Metrics.observeConflict(c.eventType)
	l.opts.Logger.Debug("quota: lost write race",
		"key", c.key, "op", op, "attempt", attempt, "max_retries", c.maxRetries)
}

func (l *Limiter) read(ctx context.Context, key string) (Counter, bool, error) {
	ctx, cancel := l.callContext(ctx)
	defer cancel()

	start := time.Now()
	c, found, err := l.store.VersionedRead(ctx, key)
	l.opts.Metrics.observeStoreCall("read", err, time.Since(start))
	return c, found, err
}

func (l *Limiter) insert(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	ctx, cancel := l.callContext(ctx)
	defer cancel()

	start := time.Now()
	ok, err := l.store.InsertIfAbsent(ctx, key, value, ttl)
	l.opts.Metrics.observeStoreCall("insert", err, time.Since(start))
	return ok, err
}

func (l *Limiter) cas(ctx context.Context, key string, value int64, version Version, ttl time.Duration) (bool, error) {
	ctx, cancel := l.callContext(ctx)
	defer cancel()

	start := time.Now()
	ok, err := l.store.CompareAndSwap(ctx, key, value, version, ttl)
	l.opts.Metrics.observeStoreCall("compare_and_swap", err, time.Since(start))
	return ok, err
}

func (l *Limiter) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.opts.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.opts.StoreTimeout)
}

func wait(ctx context.Context, bo backoff.BackOff) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bo == nil {
		return nil
	}
	d := bo.NextBackOff()
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func lastOpOr(op string) string {
	if op == "" {
		return "backoff"
	}
	return op
}
