package quota

import (
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultPrefix       = "quota"
	DefaultMaxRetries   = 10
	DefaultStoreTimeout = time.Second
)

// Options are static parameters of a Limiter.
type Options struct {
	Prefix         string        // store key namespace (no trailing ':'); "" disables it
	MaxRetries     int           // write attempts per spend before ErrWriteConflict
	StoreTimeout   time.Duration // per store call; <= 0 means only the caller's ctx applies
	RefreshOnSpend bool          // reset TTL to the full window on every CAS
	Backoff        func() backoff.BackOff
	Logger         *slog.Logger
	Metrics        *Metrics
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Prefix:       DefaultPrefix,
		MaxRetries:   DefaultMaxRetries,
		StoreTimeout: DefaultStoreTimeout,
		Backoff:      defaultBackoff,
		Logger:       slog.New(slog.DiscardHandler),
	}
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.Reset()
	return b
}

func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = prefix }
}

func WithMaxRetries(n int) Option {
	return func(o *Options) { o.MaxRetries = n }
}

func WithStoreTimeout(d time.Duration) Option {
	return func(o *Options) { o.StoreTimeout = d }
}

// WithRefreshOnSpend makes every successful compare-and-swap restart the
// window. By default a CAS keeps the remaining TTL, so a window never outlives
// its first spend.
func WithRefreshOnSpend(refresh bool) Option {
	return func(o *Options) { o.RefreshOnSpend = refresh }
}

// WithBackoff sets the delay policy between failed attempts of one spend.
// A nil factory disables waiting.
func WithBackoff(factory func() backoff.BackOff) Option {
	return func(o *Options) { o.Backoff = factory }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

type spendOptions struct {
	maxRetries int
}

// SpendOption tunes a single Spend call.
type SpendOption func(*spendOptions)

// MaxRetries overrides the limiter's retry bound for one call.
func MaxRetries(n int) SpendOption {
	return func(o *spendOptions) { o.maxRetries = n }
}
