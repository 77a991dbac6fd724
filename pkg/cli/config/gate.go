package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/secmon-lab/caseline/pkg/domain/interfaces"
	"github.com/secmon-lab/caseline/pkg/repository/memory"
	"github.com/secmon-lab/caseline/pkg/repository/redis"
	"github.com/secmon-lab/caseline/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// PublishGate selects how card publishes are serialized. The memory
// backend only orders publishes within one process.
type PublishGate struct {
	backend   string
	addr      string
	password  string
	db        int
	keyPrefix string
	lockTTL   time.Duration
	stateTTL  time.Duration
}

func (x *PublishGate) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "publish-gate",
			Usage:       "Card publish gate backend (memory or redis)",
			Category:    "Publish Gate",
			Value:       "memory",
			Sources:     cli.EnvVars("CASELINE_PUBLISH_GATE"),
			Destination: &x.backend,
		},
		&cli.DurationFlag{
			Name:        "publish-gate-ttl",
			Usage:       "How long the last published version of an idle case is remembered",
			Category:    "Publish Gate",
			Value:       24 * time.Hour,
			Sources:     cli.EnvVars("CASELINE_PUBLISH_GATE_TTL"),
			Destination: &x.stateTTL,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address (host:port) for the redis publish gate",
			Category:    "Publish Gate",
			Sources:     cli.EnvVars("CASELINE_REDIS_ADDR"),
			Destination: &x.addr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Category:    "Publish Gate",
			Sources:     cli.EnvVars("CASELINE_REDIS_PASSWORD"),
			Destination: &x.password,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis database number",
			Category:    "Publish Gate",
			Sources:     cli.EnvVars("CASELINE_REDIS_DB"),
			Destination: &x.db,
		},
		&cli.StringFlag{
			Name:        "redis-key-prefix",
			Usage:       "Prefix of publish gate keys",
			Category:    "Publish Gate",
			Value:       "caseline:",
			Sources:     cli.EnvVars("CASELINE_REDIS_KEY_PREFIX"),
			Destination: &x.keyPrefix,
		},
		&cli.DurationFlag{
			Name:        "redis-lock-ttl",
			Usage:       "Expiry of a held publish lock",
			Category:    "Publish Gate",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("CASELINE_REDIS_LOCK_TTL"),
			Destination: &x.lockTTL,
		},
	}
}

func (x PublishGate) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", x.backend),
		slog.String("addr", x.addr),
		slog.Int("password.len", len(x.password)),
		slog.Int("db", x.db),
	)
}

// Configure builds the publish gate. The returned closer releases the
// Redis connection and is never nil.
func (x *PublishGate) Configure(ctx context.Context) (interfaces.PublishGate, func(), error) {
	closer := func() {}

	switch x.backend {
	case "memory", "":
		var opts []memory.GateOption
		if x.stateTTL > 0 {
			opts = append(opts, memory.WithIdleTTL(x.stateTTL))
		}
		return memory.NewPublishGate(opts...), closer, nil

	case "redis":
		if x.addr == "" {
			return nil, closer, goerr.New("--redis-addr is required when using redis publish gate")
		}

		client := goredis.NewClient(&goredis.Options{
			Addr:     x.addr,
			Password: x.password,
			DB:       x.db,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, closer, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", x.addr))
		}
		closer = func() {
			if err := client.Close(); err != nil {
				logging.Default().Error("failed to close redis client", "error", err.Error())
			}
		}

		var opts []redis.GateOption
		if x.keyPrefix != "" {
			opts = append(opts, redis.WithKeyPrefix(x.keyPrefix))
		}
		if x.lockTTL > 0 {
			opts = append(opts, redis.WithLockTTL(x.lockTTL))
		}
		if x.stateTTL > 0 {
			opts = append(opts, redis.WithVersionTTL(x.stateTTL))
		}

		logging.Default().Info("Using Redis publish gate", "addr", x.addr)
		return redis.NewPublishGate(client, opts...), closer, nil

	default:
		return nil, closer, goerr.New("invalid publish gate backend", goerr.V("backend", x.backend))
	}
}
