package limiter

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Breaker is a redis-backed cooldown for an external provider. After repeated
// failures the provider is put on an exponentially growing cooldown and
// generation units are skipped instead of hammering a failing endpoint.
type Breaker struct {
	rdb         *redis.Client
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

type Options struct {
	RedisURL    string
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func New(opts Options) (*Breaker, error) {
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 30 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Minute
	}
	ro, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(ro)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Breaker{rdb: c, baseBackoff: opts.BaseBackoff, maxBackoff: opts.MaxBackoff}, nil
}

func (b *Breaker) key(provider string) string {
	return fmt.Sprintf("cb:%s", strings.ToLower(provider))
}

// IsOpen returns true if the cooldown for provider is active.
func (b *Breaker) IsOpen(ctx context.Context, provider string) bool {
	ts, err := b.rdb.Get(ctx, b.key(provider)).Int64()
	if err != nil {
		return false
	}
	return time.Now().Unix() < ts
}

// Open sets/extends the cooldown with exponential backoff per attempt.
func (b *Breaker) Open(ctx context.Context, provider string) {
	k := b.key(provider)
	cntKey := k + ":attempts"
	attempts, _ := b.rdb.Incr(ctx, cntKey).Result()
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 16 {
		attempts = 16
	}
	d := b.baseBackoff * (1 << (attempts - 1))
	if d > b.maxBackoff {
		d = b.maxBackoff
	}
	until := time.Now().Add(d).Unix()
	_ = b.rdb.Set(ctx, k, until, d).Err()
	_ = b.rdb.Expire(ctx, cntKey, b.maxBackoff*2).Err()
}

// Close resets the cooldown after a successful call.
func (b *Breaker) Close(ctx context.Context, provider string) {
	k := b.key(provider)
	_ = b.rdb.Del(ctx, k, k+":attempts").Err()
}

func (b *Breaker) CloseClient() error { return b.rdb.Close() }
