package identity

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/domain/model"
	"github.com/secmon-lab/caseline/pkg/service/slack"
)

// DefaultCacheTTL is the default TTL of resolved actors
const DefaultCacheTTL = 10 * time.Minute

// UserFetcher looks up chat users
type UserFetcher interface {
	GetUserInfo(ctx context.Context, userID string) (*slack.User, error)
}

type cacheEntry struct {
	actor     model.Actor
	expiresAt time.Time
}

// Resolver resolves chat user IDs into actors and caches them
type Resolver struct {
	users    UserFetcher
	cacheTTL time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

var _ interfaces.IdentityResolver = &Resolver{}

type Option func(*Resolver)

// WithCacheTTL sets the TTL for resolved actors
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		r.cacheTTL = ttl
	}
}

func withClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

func New(users UserFetcher, opts ...Option) *Resolver {
	r := &Resolver{
		users:    users,
		cacheTTL: DefaultCacheTTL,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) CurrentActor(ctx context.Context, userID string) (*model.Actor, error) {
	if userID == "" {
		return nil, goerr.New("user ID is required")
	}

	now := r.now()

	r.mu.RLock()
	entry, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok && entry.expiresAt.After(now) {
		actor := entry.actor
		return &actor, nil
	}

	user, err := r.users.GetUserInfo(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve actor", goerr.V("user_id", userID))
	}

	actor := model.Actor{ID: user.ID, Email: user.Email, Name: user.RealName}
	if actor.Name == "" {
		actor.Name = user.Name
	}

	r.mu.Lock()
	r.cache[userID] = cacheEntry{actor: actor, expiresAt: now.Add(r.cacheTTL)}
	r.mu.Unlock()

	return &actor, nil
}
