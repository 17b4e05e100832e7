package cache

import (
	stderrors "errors"
	"time"

	"sjsage522/doctorworker/logger"
	"sjsage522/doctorworker/pkg/errors"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
	log    *logger.Logger
}

// NewMemcacheService creates a new memcache service. Several servers may be
// given; keys are spread across them.
func NewMemcacheService(serverAddrs ...string) *MemcacheService {
	client := memcache.New(serverAddrs...)
	client.Timeout = 500 * time.Millisecond
	return &MemcacheService{
		client: client,
		log:    logger.ForCache(),
	}
}

// Ping checks that every server is reachable
func (m *MemcacheService) Ping() error {
	if err := m.client.Ping(); err != nil {
		return errors.NewCache("memcache", "server unreachable", err)
	}
	return nil
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if stderrors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, errors.NewCache("memcache", "get "+key, err)
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
	if err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("Failed to set cache key")
		return errors.NewCache("memcache", "set "+key, err)
	}
	return nil
}

// Delete removes a value from memcache. Deleting a missing key is not an error.
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(key)
	if err == nil || stderrors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return errors.NewCache("memcache", "delete "+key, err)
}
