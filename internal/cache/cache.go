// Package cache caches advisory availability results in Redis.
//
// Only the advisory check endpoint reads from here; reservation writes
// always re-validate against the database inside a transaction.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetops/internal/availability"
	"fleetops/internal/dateutil"
	"fleetops/internal/models"
)

// AvailabilityCache stores recent check results keyed by candidate shape.
type AvailabilityCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func New(client *redis.Client, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{redis: client, ttl: ttl}
}

// Key builds a deterministic cache key from the candidate.
func Key(c availability.Candidate) string {
	keys := make([]string, 0, len(c.Resources))
	for _, ref := range c.Resources {
		keys = append(keys, string(ref.Type)+"="+dateutil.NormalizeResourceKey(ref.Key))
	}
	sort.Strings(keys)

	var days []string
	if set, err := dateutil.NormalizeWindow(c.Window); err == nil {
		days = set.Sorted()
	}
	return fmt.Sprintf("availability:%s:%s:%s:%s",
		c.Kind, strings.Join(keys, ","), strings.Join(days, ","), c.ExcludeSelfID)
}

// Get returns a cached result, or false on miss or any Redis error.
func (a *AvailabilityCache) Get(ctx context.Context, key string) (*availability.Result, bool) {
	if a == nil || a.redis == nil || a.ttl <= 0 {
		return nil, false
	}
	val, err := a.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var result availability.Result
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, false
	}
	return &result, true
}

// Set stores a result. Failures are ignored; the cache is advisory.
func (a *AvailabilityCache) Set(ctx context.Context, key string, result *availability.Result) {
	if a == nil || a.redis == nil || a.ttl <= 0 {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = a.redis.Set(ctx, key, data, a.ttl).Err()
}

// InvalidateResources drops cached results mentioning any of the given
// resources. Called after a reservation write changes the schedule.
func (a *AvailabilityCache) InvalidateResources(ctx context.Context, refs []models.ResourceRef) {
	if a == nil || a.redis == nil || a.ttl <= 0 {
		return
	}
	for _, ref := range refs {
		pattern := fmt.Sprintf("availability:*%s=%s*", ref.Type, dateutil.NormalizeResourceKey(ref.Key))
		iter := a.redis.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			_ = a.redis.Del(ctx, iter.Val()).Err()
		}
	}
}
