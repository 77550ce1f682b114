package api

import (
	"sync"
	"time"

	"github.com/agrinet/agrichat/internal/domain"
)

type ExpertsCache struct {
	mu       sync.RWMutex
	experts  []domain.ExpertProfile
	cachedAt time.Time
	ttl      time.Duration
}

func NewExpertsCache(ttl time.Duration) *ExpertsCache {
	return &ExpertsCache{ttl: ttl}
}

func (c *ExpertsCache) Get() []domain.ExpertProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.experts == nil || time.Since(c.cachedAt) > c.ttl {
		return nil
	}
	return c.experts
}

func (c *ExpertsCache) Set(experts []domain.ExpertProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.experts = experts
	c.cachedAt = time.Now()
}

func (c *ExpertsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.experts = nil
}
