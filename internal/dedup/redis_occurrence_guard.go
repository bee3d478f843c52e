package dedup

import (
	"context"
	"time"

	"github.com/redis/rueidis"
)

// RedisGuard claims occurrences with SET NX so concurrent scheduler
// processes agree on a single winner per (template, occurrence).
type RedisGuard struct {
	client rueidis.Client
	ttl    time.Duration
}

func NewRedisGuard(client rueidis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Claim(ctx context.Context, templateID string, occurrence time.Time) (bool, error) {
	cmd := g.client.B().Set().
		Key(occurrenceKey(templateID, occurrence)).
		Value("1").
		Nx().
		Ex(g.ttl).
		Build()

	result := g.client.Do(ctx, cmd)
	if err := result.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			// NX miss: someone else holds the key.
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (g *RedisGuard) Release(ctx context.Context, templateID string, occurrence time.Time) error {
	cmd := g.client.B().Del().Key(occurrenceKey(templateID, occurrence)).Build()
	return g.client.Do(ctx, cmd).Error()
}
