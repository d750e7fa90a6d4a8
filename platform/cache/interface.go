package cache

import "time"

// CacheService is the two-level cache surface used by the services layer.
type CacheService interface {
	GetCache(key string) (interface{}, bool)
	SetCache(key string, value interface{}, expiration time.Duration) error
	DelCache(key string) error
	GetOrLoad(key string, expiration time.Duration, load func() (interface{}, error)) (interface{}, error)
}
