package cache

import (
	"time"

	"golang.org/x/sync/singleflight"

	"go_audit_backend/pkg/logging"
	"go_audit_backend/platform/redis"
)

type Service struct {
	l1 *L1CacheService
	l2 *redis.Service
	sf singleflight.Group
}

func NewCacheService(l1 *L1CacheService, l2 *redis.Service) CacheService {
	return &Service{l1: l1, l2: l2}
}

func (cs *Service) GetCache(key string) (interface{}, bool) {
	if data, ok := cs.l1.Get(key); ok {
		return data, ok
	}
	if data, ok := cs.l2.GetCache(key); ok {
		return data, ok
	}
	return nil, false
}

func (cs *Service) SetCache(key string, value interface{}, expiration time.Duration) error {
	err := cs.l2.SetCache(key, value, expiration)
	if err != nil {
		logging.Logger.Error("l2 fail SetCache", "error", err)
		return err
	}
	cs.l1.Set(key, value, time.Duration(float64(expiration)*0.3))
	return nil
}

func (cs *Service) DelCache(key string) error {
	cs.l1.Del(key)
	if err := cs.l2.DelCache(key); err != nil {
		logging.Logger.Error("l2 fail DelCache", "error", err)
		return err
	}
	return nil
}

// GetOrLoad returns the cached value for key or computes it with load,
// deduplicating concurrent loads of the same key.
func (cs *Service) GetOrLoad(key string, expiration time.Duration, load func() (interface{}, error)) (interface{}, error) {
	if data, ok := cs.GetCache(key); ok {
		return data, nil
	}
	value, err, _ := cs.sf.Do(key, func() (interface{}, error) {
		if data, ok := cs.GetCache(key); ok {
			return data, nil
		}
		data, err := load()
		if err != nil {
			return nil, err
		}
		if err := cs.SetCache(key, data, expiration); err != nil {
			logging.Logger.Error("fail caching loaded value", "key", key, "error", err)
		}
		return data, nil
	})
	return value, err
}
