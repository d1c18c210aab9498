// Package cache provides a read-through Redis cache of per-resource
// effective-work summaries for reporting-adjacent consumers. It sits
// alongside, not inside, the core solve path: SchedulerEngine.Run never
// reads from it, since the solve itself must stay deterministic and
// in-memory. A reporting endpoint that wants "how loaded is resource X in
// scenario Y" without re-running the whole scenario is the intended caller.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ResourceLoad is the cached summary for one resource in one scenario.
type ResourceLoad struct {
	ResourceID     string  `json:"resource_id"`
	EffectiveHours float64 `json:"effective_hours"`
	AllocatedSlots int     `json:"allocated_slots"`
}

// ResourceLoadCache reads and writes ResourceLoad summaries, namespaced by
// project and scenario so stale entries from a previous solve never leak
// into a different scenario's reporting.
type ResourceLoadCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResourceLoadCache wraps an existing Redis client. ttl of 0 means no
// expiration.
func NewResourceLoadCache(client *redis.Client, ttl time.Duration) *ResourceLoadCache {
	return &ResourceLoadCache{client: client, ttl: ttl}
}

func (c *ResourceLoadCache) key(projectID uuid.UUID, scenarioIndex int, resourceID string) string {
	return fmt.Sprintf("scheduler:%s:scenario:%d:resource:%s", projectID, scenarioIndex, resourceID)
}

// Get returns the cached load for a resource, or (nil, nil) on a cache miss.
func (c *ResourceLoadCache) Get(ctx context.Context, projectID uuid.UUID, scenarioIndex int, resourceID string) (*ResourceLoad, error) {
	raw, err := c.client.Get(ctx, c.key(projectID, scenarioIndex, resourceID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var load ResourceLoad
	if err := json.Unmarshal(raw, &load); err != nil {
		return nil, fmt.Errorf("decode cached resource load: %w", err)
	}
	return &load, nil
}

// Set stores a resource's load summary, overwriting any prior value.
func (c *ResourceLoadCache) Set(ctx context.Context, projectID uuid.UUID, scenarioIndex int, load ResourceLoad) error {
	raw, err := json.Marshal(load)
	if err != nil {
		return fmt.Errorf("encode resource load: %w", err)
	}
	return c.client.Set(ctx, c.key(projectID, scenarioIndex, load.ResourceID), raw, c.ttl).Err()
}

// Invalidate drops a resource's cached load, used after a scenario is
// rescheduled so stale reporting data isn't served.
func (c *ResourceLoadCache) Invalidate(ctx context.Context, projectID uuid.UUID, scenarioIndex int, resourceID string) error {
	return c.client.Del(ctx, c.key(projectID, scenarioIndex, resourceID)).Err()
}
