package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DeliveryCache remembers which event keys were already delivered so the
// bridge can drop redeliveries within the TTL.
type DeliveryCache struct {
	cache *cache.Cache
}

func NewDeliveryCache(ttl time.Duration) *DeliveryCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &DeliveryCache{
		cache: cache.New(ttl, ttl/2),
	}
}

// MarkIfNew records key and reports whether it had not been seen yet.
func (r *DeliveryCache) MarkIfNew(key string) bool {
	// Add fails when the key is already present and unexpired.
	return r.cache.Add(key, struct{}{}, cache.DefaultExpiration) == nil
}

func (r *DeliveryCache) Forget(key string) {
	r.cache.Delete(key)
}

// Len counts unexpired keys. The bridge reports it on /health.
func (r *DeliveryCache) Len() int {
	return r.cache.ItemCount()
}
