package async

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/utils/errutil"
	"github.com/secmon-lab/caseline/pkg/utils/logging"
)

type config struct {
	timeout time.Duration
}

type Option func(*config)

// WithTimeout bounds the handler's context
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Dispatch runs handler in a new goroutine with a context detached from
// the caller's cancellation. The caller's logger is carried over. Errors
// and panics are passed to errutil.Handle.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error, opts ...Option) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	bgCtx := logging.With(context.Background(), logging.From(ctx))

	go func() {
		ctx := bgCtx
		if cfg.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(bgCtx, cfg.timeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				_ = errutil.Handle(ctx, goerr.New("panic in async handler", goerr.V("panic", r)), "async handler panicked")
			}
		}()

		if err := handler(ctx); err != nil {
			_ = errutil.Handle(ctx, err, "async handler failed")
		}
	}()
}
