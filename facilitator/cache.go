package facilitator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	planCacheTTL  = 5 * time.Minute
	defaultScheme = "nvm:erc4337"
)

type planCacheEntry struct {
	scheme    string
	fetchedAt time.Time
}

// planCache maps planId -> scheme with a 5-minute TTL (§4.2). Concurrent
// misses for the same planId are collapsed into a single fetch via
// singleflight, per the "upsert-with-double-check" design note (§9).
type planCache struct {
	mu    sync.RWMutex
	byKey map[string]planCacheEntry
	group singleflight.Group
}

func newPlanCache() *planCache {
	return &planCache{byKey: make(map[string]planCacheEntry)}
}

func (p *planCache) get(planID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.byKey[planID]
	if !ok || time.Since(entry.fetchedAt) > planCacheTTL {
		return "", false
	}
	return entry.scheme, true
}

func (p *planCache) set(planID, scheme string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byKey[planID] = planCacheEntry{scheme: scheme, fetchedAt: time.Now()}
}

// PlanScheme implements Interface.PlanScheme: a cache hit returns
// immediately; a miss fetches the plan (collapsing concurrent fetches for
// the same planID) and defaults to defaultScheme on any fetch failure,
// per §4.2.
func (c *Client) PlanScheme(ctx context.Context, planID string) (string, error) {
	if scheme, ok := c.cache.get(planID); ok {
		return scheme, nil
	}

	v, err, _ := c.cache.group.Do(planID, func() (interface{}, error) {
		scheme, fetchErr := c.fetchPlanScheme(ctx, planID)
		if fetchErr != nil {
			c.logger.WarnContext(ctx, "plan scheme lookup failed, defaulting",
				"planId", planID, "error", fetchErr, "default", defaultScheme)
			scheme = defaultScheme
		}
		c.cache.set(planID, scheme)
		return scheme, nil
	})
	if err != nil {
		return defaultScheme, nil
	}
	return v.(string), nil
}

func (c *Client) fetchPlanScheme(ctx context.Context, planID string) (string, error) {
	var out struct {
		Scheme string `json:"scheme"`
	}
	req := map[string]interface{}{"planId": planID}
	if err := c.post(ctx, "/api/v1/plans/scheme", req, &out); err != nil {
		return "", err
	}
	if out.Scheme == "" {
		return defaultScheme, nil
	}
	return out.Scheme, nil
}
