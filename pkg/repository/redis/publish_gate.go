package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/utils/logging"
)

// releaseScript deletes the lock only if it is still held by the caller's token
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// PublishGate is an interfaces.PublishGate shared by every replica connected
// to the same Redis. The lock is a SET NX key with a TTL so a crashed holder
// cannot block a case forever. The recorded version expires once a key has
// not been published for the version TTL.
type PublishGate struct {
	client       goredis.UniversalClient
	prefix       string
	lockTTL      time.Duration
	versionTTL   time.Duration
	pollInterval time.Duration
}

// DefaultVersionTTL is how long a published version is remembered after the
// last publish of its key
const DefaultVersionTTL = 24 * time.Hour

var _ interfaces.PublishGate = &PublishGate{}

type GateOption func(*PublishGate)

func WithKeyPrefix(prefix string) GateOption {
	return func(g *PublishGate) {
		g.prefix = prefix
	}
}

func WithLockTTL(ttl time.Duration) GateOption {
	return func(g *PublishGate) {
		g.lockTTL = ttl
	}
}

// WithVersionTTL sets the expiry of the recorded version. Zero keeps it
// forever. The TTL must exceed the longest time a publish can be in flight.
func WithVersionTTL(ttl time.Duration) GateOption {
	return func(g *PublishGate) {
		g.versionTTL = ttl
	}
}

func WithPollInterval(d time.Duration) GateOption {
	return func(g *PublishGate) {
		g.pollInterval = d
	}
}

func NewPublishGate(client goredis.UniversalClient, opts ...GateOption) *PublishGate {
	g := &PublishGate{
		client:       client,
		prefix:       "caseline:",
		lockTTL:      30 * time.Second,
		versionTTL:   DefaultVersionTTL,
		pollInterval: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *PublishGate) lockKey(key string) string {
	return g.prefix + "publish:lock:" + key
}

func (g *PublishGate) versionKey(key string) string {
	return g.prefix + "publish:version:" + key
}

func (g *PublishGate) acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	lockKey := g.lockKey(key)

	for {
		ok, err := g.client.SetNX(ctx, lockKey, token, g.lockTTL).Result()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to acquire publish lock", goerr.V("key", key))
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, goerr.Wrap(ctx.Err(), "publish lock wait cancelled", goerr.V("key", key))
		case <-time.After(g.pollInterval):
		}
	}

	release := func() {
		// release must run even if the publish context is done
		if err := releaseScript.Run(context.Background(), g.client, []string{lockKey}, token).Err(); err != nil {
			logging.From(ctx).Warn("failed to release publish lock", "key", key, "error", err)
		}
	}
	return release, nil
}

func (g *PublishGate) Publish(ctx context.Context, key string, version int64, fn func(ctx context.Context) error) (bool, error) {
	release, err := g.acquire(ctx, key)
	if err != nil {
		return false, err
	}
	defer release()

	published, err := g.client.Get(ctx, g.versionKey(key)).Int64()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return false, goerr.Wrap(err, "failed to read published version", goerr.V("key", key))
	}
	if version <= published {
		return false, nil
	}

	if err := fn(ctx); err != nil {
		return true, err
	}

	if err := g.client.Set(ctx, g.versionKey(key), version, g.versionTTL).Err(); err != nil {
		return true, goerr.Wrap(err, "failed to record published version", goerr.V("key", key), goerr.V("version", version))
	}
	return true, nil
}
