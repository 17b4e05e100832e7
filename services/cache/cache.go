package cache

import (
	stderrors "errors"
	"time"
)

// ErrMiss is returned by Get when the key is not cached
var ErrMiss = stderrors.New("cache: miss")

// CacheService stores short-lived flags shared by every worker process
type CacheService interface {
	// Get retrieves a value from the cache, or ErrMiss
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

// BlockKey is the key marking host as rate limited
func BlockKey(host string) string {
	return "doctorworker:blocked:" + host
}
