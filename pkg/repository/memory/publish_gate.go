package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
)

// DefaultGateIdleTTL is how long an unused key keeps its published version
const DefaultGateIdleTTL = time.Hour

type gateEntry struct {
	lock      chan struct{}
	published int64
	refs      int
	lastUsed  time.Time
}

// PublishGate is an in-process interfaces.PublishGate. It only orders
// publishes within a single process. Keys idle for longer than the idle TTL
// are pruned, so a case that stops changing drops out of the map.
type PublishGate struct {
	mu        sync.Mutex
	entries   map[string]*gateEntry
	idleTTL   time.Duration
	now       func() time.Time
	lastSweep time.Time
}

var _ interfaces.PublishGate = &PublishGate{}

type GateOption func(*PublishGate)

// WithIdleTTL sets how long an unused key is remembered. The TTL must exceed
// the longest time a publish can be in flight.
func WithIdleTTL(ttl time.Duration) GateOption {
	return func(g *PublishGate) {
		g.idleTTL = ttl
	}
}

func withGateClock(now func() time.Time) GateOption {
	return func(g *PublishGate) {
		g.now = now
	}
}

func NewPublishGate(opts ...GateOption) *PublishGate {
	g := &PublishGate{
		entries: make(map[string]*gateEntry),
		idleTTL: DefaultGateIdleTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.lastSweep = g.now()
	return g
}

// acquireEntry returns the entry for key and pins it against pruning until
// releaseEntry is called
func (g *PublishGate) acquireEntry(key string) *gateEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.sweep(now)

	e, ok := g.entries[key]
	if !ok {
		e = &gateEntry{lock: make(chan struct{}, 1)}
		g.entries[key] = e
	}
	e.refs++
	e.lastUsed = now
	return e
}

func (g *PublishGate) releaseEntry(e *gateEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e.refs--
	e.lastUsed = g.now()
}

// sweep drops unpinned entries idle beyond the TTL. It runs at most once per
// TTL. Caller holds g.mu.
func (g *PublishGate) sweep(now time.Time) {
	if g.idleTTL <= 0 || now.Sub(g.lastSweep) < g.idleTTL {
		return
	}
	g.lastSweep = now

	for key, e := range g.entries {
		if e.refs == 0 && now.Sub(e.lastUsed) >= g.idleTTL {
			delete(g.entries, key)
		}
	}
}

func (g *PublishGate) Publish(ctx context.Context, key string, version int64, fn func(ctx context.Context) error) (bool, error) {
	e := g.acquireEntry(key)
	defer g.releaseEntry(e)

	select {
	case e.lock <- struct{}{}:
	case <-ctx.Done():
		return false, goerr.Wrap(ctx.Err(), "failed to acquire publish lock", goerr.V("key", key))
	}
	defer func() { <-e.lock }()

	if version <= e.published {
		return false, nil
	}

	if err := fn(ctx); err != nil {
		return true, err
	}

	e.published = version
	return true, nil
}
