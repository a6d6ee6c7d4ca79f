// Package redis holds the batch run lease backed by Redis.
package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only if the caller still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a best-effort mutual exclusion between overlapping batch runs.
// It expires on its own, so a crashed run never blocks later ones for longer
// than the TTL.
type Lease struct {
	rdb goredis.Cmdable
	key string
	ttl time.Duration
}

// NewLease connects to redisURL (redis:// or rediss://) and verifies the
// connection.
func NewLease(ctx context.Context, redisURL, key string, ttl time.Duration) (*Lease, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3
	if opts.TLSConfig == nil && strings.HasPrefix(redisURL, "rediss://") {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Lease{rdb: rdb, key: key, ttl: ttl}, nil
}

// Acquire takes the lease for owner. It returns false when another run holds it.
func (l *Lease) Acquire(ctx context.Context, owner string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.key, owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	return ok, nil
}

// Release drops the lease if owner still holds it.
func (l *Lease) Release(ctx context.Context, owner string) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, owner).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}
