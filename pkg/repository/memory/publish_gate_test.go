package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/caseline/pkg/repository/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func noop(ctx context.Context) error { return nil }

func TestPublishGatePrunesIdleKeys(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	gate := memory.NewPublishGate(memory.WithIdleTTL(time.Hour), memory.WithGateClock(clock.Now))
	ctx := context.Background()

	for _, key := range []string{"acme/1", "acme/2", "acme/3"} {
		_, err := gate.Publish(ctx, key, 1, noop)
		gt.NoError(t, err).Required()
	}
	gt.Number(t, gate.EntryCount()).Equal(3)

	clock.Advance(30 * time.Minute)
	_, err := gate.Publish(ctx, "acme/1", 2, noop)
	gt.NoError(t, err).Required()
	gt.Number(t, gate.EntryCount()).Equal(3)

	// acme/2 and acme/3 have been idle for an hour, acme/1 for 30 minutes
	clock.Advance(30 * time.Minute)
	_, err = gate.Publish(ctx, "acme/4", 1, noop)
	gt.NoError(t, err).Required()
	gt.Number(t, gate.EntryCount()).Equal(2)

	// acme/1 still remembers version 2
	ran, err := gate.Publish(ctx, "acme/1", 2, noop)
	gt.NoError(t, err).Required()
	gt.Bool(t, ran).False()
}

func TestPublishGateKeepsKeyWhilePublishing(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	gate := memory.NewPublishGate(memory.WithIdleTTL(time.Minute), memory.WithGateClock(clock.Now))
	ctx := context.Background()

	started := make(chan struct{})
	finish := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := gate.Publish(ctx, "acme/1", 1, func(ctx context.Context) error {
			close(started)
			<-finish
			return nil
		})
		gt.NoError(t, err)
	}()
	<-started

	// a sweep during a long publish must not drop the held key
	clock.Advance(2 * time.Minute)
	_, err := gate.Publish(ctx, "acme/2", 1, noop)
	gt.NoError(t, err).Required()
	gt.Number(t, gate.EntryCount()).Equal(2)

	close(finish)
	<-done

	ran, err := gate.Publish(ctx, "acme/1", 1, noop)
	gt.NoError(t, err).Required()
	gt.Bool(t, ran).False()
}
