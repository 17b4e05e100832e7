package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sjsage522/doctorworker/internal/crawler"
	"sjsage522/doctorworker/pkg/errors"
	"sjsage522/doctorworker/services/cache"
	"sjsage522/doctorworker/services/proxy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCache is an in-memory CacheService
type MockCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{items: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.items[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return value, nil
}

func (m *MockCache) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MockCache) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func testOptions() Options {
	return Options{
		Timeout:      2 * time.Second,
		MaxRetries:   2,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
		BlockFor:     time.Minute,
	}
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "doctorworker-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "https://www.marham.pk", r.Header.Get("Referer"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<h1>Dr. Ayesha Khan</h1>"))
	}))
	defer server.Close()

	client := New(testOptions(), nil, nil)
	resp, err := client.Do(context.Background(), crawler.Request{
		URL:     server.URL + "/doctors/lahore/dermatologist",
		Headers: map[string]string{"User-Agent": "doctorworker-test", "Referer": "https://www.marham.pk"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "<h1>Dr. Ayesha Khan</h1>", string(resp.Body))
}

func TestClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "dermatologist", body["specialty"])
		assert.Equal(t, float64(2), body["page"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"doctors": []}}`))
	}))
	defer server.Close()

	client := New(testOptions(), nil, nil)
	resp, err := client.Do(context.Background(), crawler.Request{
		Method: http.MethodPost,
		URL:    server.URL + "/api/doctors/search",
		Body:   map[string]interface{}{"specialty": "dermatologist", "page": 2},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": {"doctors": []}}`, string(resp.Body))
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := New(testOptions(), nil, nil)
	resp, err := client.Do(context.Background(), crawler.Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(testOptions(), nil, nil)
	_, err := client.Do(context.Background(), crawler.Request{URL: server.URL})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNetwork))
	assert.Equal(t, int32(3), calls.Load(), "one attempt plus two retries")
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(testOptions(), nil, nil)
	_, err := client.Do(context.Background(), crawler.Request{URL: server.URL + "/doctors/missing"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNetwork))
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RateLimitBlocksHost(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	blocks := NewMockCache()
	opts := testOptions()
	opts.MaxRetries = 0
	client := New(opts, nil, blocks)

	_, err := client.Do(context.Background(), crawler.Request{URL: server.URL})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))

	host := server.Listener.Addr().String()
	_, err = blocks.Get(cache.BlockKey(host))
	require.NoError(t, err, "the host is marked as blocked")

	// while blocked, requests fail without reaching the server
	_, err = client.Do(context.Background(), crawler.Request{URL: server.URL + "/other"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRateLimit))
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, blocks.Delete(cache.BlockKey(host)))
	_, err = client.Do(context.Background(), crawler.Request{URL: server.URL})
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_DecodesCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1252")
		w.Write([]byte("<p>Caf\xe9 Clinic</p>"))
	}))
	defer server.Close()

	client := New(testOptions(), nil, nil)
	resp, err := client.Do(context.Background(), crawler.Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "<p>Café Clinic</p>", string(resp.Body))
}

func TestClient_RoutesThroughProxy(t *testing.T) {
	var seen atomic.Value
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.URL.String())
		w.Write([]byte("via proxy"))
	}))
	defer proxyServer.Close()

	rotator, err := proxy.NewRotator([]string{proxyServer.URL})
	require.NoError(t, err)

	client := New(testOptions(), rotator, nil)
	resp, err := client.Do(context.Background(), crawler.Request{URL: "http://directory.invalid/doctors/lahore"})
	require.NoError(t, err)
	assert.Equal(t, "via proxy", string(resp.Body))
	assert.Equal(t, "http://directory.invalid/doctors/lahore", seen.Load())
	assert.Equal(t, uint64(1), rotator.Stats().Served)
}

func TestClient_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("late"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := New(testOptions(), nil, nil)
	_, err := client.Do(ctx, crawler.Request{URL: server.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "www.marham.pk", hostOf("https://www.marham.pk/doctors"))
	assert.Equal(t, "", hostOf("://broken"))
	_, err := url.Parse("://broken")
	assert.Error(t, err)
}
