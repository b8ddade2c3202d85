// Package redis provides the distributed per-sender turn lease. Two
// concurrent webhook deliveries for one sender would otherwise race on the
// conversation log, so each turn takes a short lease on the sender before
// routing.
package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const leasePrefix = "turnlock:"

type RedisClient struct {
	client   *redis.Client
	leaseTTL time.Duration
}

func NewRedisClient(addr string, leaseTTL time.Duration) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisClient{client: client, leaseTTL: leaseTTL}
}

// AcquireTurnLease takes the sender's lease, waiting briefly for a
// concurrent turn to finish. The returned release function is safe to call
// even if the lease expired underneath us: the token guards against
// deleting someone else's lease.
func (r *RedisClient) AcquireTurnLease(ctx context.Context, senderID string) (func(), error) {
	key := leasePrefix + senderID
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.leaseTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	release := func() {
		// delete only our own token
		const script = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		r.client.Eval(context.Background(), script, []string{key}, token)
	}
	return release, nil
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
