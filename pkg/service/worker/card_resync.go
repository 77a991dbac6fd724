package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/usecase"
	"github.com/secmon-lab/caseline/pkg/utils/errutil"
	"github.com/secmon-lab/caseline/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// CardPublisher lists and republishes cards whose last delivery failed
type CardPublisher interface {
	ListStaleCards(ctx context.Context, tenantSlug string) ([]*model.Case, error)
	Republish(ctx context.Context, tenantSlug string, id int64) (usecase.PublishResult, error)
}

// CardResyncWorker periodically republishes stale case cards
//
// Multiple instances may run at once; the publish gate keeps card updates
// ordered and skips versions that were already published.
type CardResyncWorker struct {
	tenants     *model.TenantRegistry
	cards       CardPublisher
	interval    time.Duration
	concurrency int
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewCardResyncWorker creates a new worker. Tenants are processed in
// parallel, at most concurrency at a time.
func NewCardResyncWorker(tenants *model.TenantRegistry, cards CardPublisher, interval time.Duration, concurrency int) *CardResyncWorker {
	return &CardResyncWorker{
		tenants:     tenants,
		cards:       cards,
		interval:    interval,
		concurrency: max(concurrency, 1),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start begins the background resync loop without blocking
func (w *CardResyncWorker) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return goerr.New("resync interval must be positive", goerr.V("interval", w.interval.String()))
	}

	logging.From(ctx).Info("card resync worker starting", "interval", w.interval.String())
	go w.run(ctx)
	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *CardResyncWorker) Stop() {
	logging.Default().Info("card resync worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("card resync worker stopped")
}

func (w *CardResyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.Resync(ctx); err != nil {
				errutil.Handle(ctx, err, "card resync failed (will retry next interval)")
			}

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.From(ctx).Info("card resync worker context cancelled")
			return
		}
	}
}

// Resync runs one cycle over every tenant and returns the number of cards
// that were updated. A failure on one case does not stop the others.
func (w *CardResyncWorker) Resync(ctx context.Context) (int, error) {
	startTime := time.Now()
	var updated atomic.Int64

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(w.concurrency)

	for _, tenant := range w.tenants.List() {
		eg.Go(func() error {
			cases, err := w.cards.ListStaleCards(ctx, tenant.Slug)
			if err != nil {
				return goerr.Wrap(err, "failed to list stale cards", goerr.V("tenant", tenant.Slug))
			}

			for _, c := range cases {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				result, err := w.cards.Republish(ctx, tenant.Slug, c.ID)
				if err != nil {
					errutil.Handle(ctx, goerr.Wrap(err, "failed to republish card",
						goerr.V("tenant", tenant.Slug), goerr.V("case_id", c.ID)), "card resync skipped a case")
					continue
				}
				if result == usecase.PublishUpdated {
					updated.Add(1)
				}
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return int(updated.Load()), err
	}

	if n := updated.Load(); n > 0 {
		logging.From(ctx).Info("card resync completed",
			"updated", n,
			"duration", time.Since(startTime).String())
	}
	return int(updated.Load()), nil
}
