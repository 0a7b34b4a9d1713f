package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/pipexec/pkg/common/errors"
	"github.com/vnykmshr/pipexec/pkg/pipeline"
)

// HashWriter is the part of a Redis client used to store snapshots.
// redis.Client, redis.ClusterClient and redis.UniversalClient satisfy it.
type HashWriter interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisPublisher stores one hash per node under
// "<prefix>:<topology>:<address>".
type RedisPublisher struct {
	client HashWriter
	prefix string
	ttl    time.Duration
}

// NewRedisPublisher creates a publisher. A positive ttl makes snapshots of
// a stopped topology expire.
func NewRedisPublisher(client HashWriter, prefix string, ttl time.Duration) *RedisPublisher {
	if prefix == "" {
		prefix = "pipexec"
	}
	return &RedisPublisher{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the hash key for a node.
func (p *RedisPublisher) Key(topology string, stats pipeline.NodeStats) string {
	return fmt.Sprintf("%s:%s:%s", p.prefix, topology, stats.Address)
}

// Publish writes every snapshot. It stops at the first failing node.
func (p *RedisPublisher) Publish(ctx context.Context, topology string, stats []pipeline.NodeStats) error {
	now := time.Now().Unix()
	for _, st := range stats {
		key := p.Key(topology, st)
		err := p.client.HSet(ctx, key,
			"id", st.ID,
			"name", st.Name,
			"instances", st.Instances,
			"min_instances", st.MinInstances,
			"max_instances", st.MaxInstances,
			"workers", st.Workers,
			"queue_len", st.QueueLen,
			"queue_cap", st.QueueCap,
			"pending_commands", st.PendingCommands,
			"updated_at", now,
		).Err()
		if err != nil {
			return errors.NewOperationError("monitor", "publish", err).WithContext(key)
		}
		if p.ttl > 0 {
			if err := p.client.Expire(ctx, key, p.ttl).Err(); err != nil {
				return errors.NewOperationError("monitor", "expire", err).WithContext(key)
			}
		}
	}
	return nil
}
