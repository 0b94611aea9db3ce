package period

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "galley:period:active"

// Cache keeps the active period in Redis so the posting gate does not hit
// PostgreSQL on every transaction. Lifecycle changes invalidate it.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache with the given TTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl}
}

type cachedPeriod struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status"`
}

// Get returns the cached active period when it covers date.
func (c *Cache) Get(ctx context.Context, date time.Time) (Period, bool) {
	if c == nil || c.client == nil {
		return Period{}, false
	}
	payload, err := c.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		return Period{}, false
	}
	var cached cachedPeriod
	if err := json.Unmarshal(payload, &cached); err != nil {
		return Period{}, false
	}
	if date.Before(cached.StartDate) || date.After(cached.EndDate) {
		return Period{}, false
	}
	return Period{
		ID:        cached.ID,
		Name:      cached.Name,
		StartDate: cached.StartDate,
		EndDate:   cached.EndDate,
		Status:    Status(cached.Status),
	}, true
}

// Set stores the active period.
func (c *Cache) Set(ctx context.Context, p Period) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(cachedPeriod{
		ID:        p.ID,
		Name:      p.Name,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		Status:    string(p.Status),
	})
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey, payload, c.ttl).Err()
}

// Invalidate drops the cached period after a lifecycle change.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, cacheKey).Err()
}
