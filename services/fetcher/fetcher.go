package fetcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"sjsage522/doctorworker/helpers"
	"sjsage522/doctorworker/internal/crawler"
	"sjsage522/doctorworker/logger"
	"sjsage522/doctorworker/pkg/errors"
	"sjsage522/doctorworker/services/cache"
	"sjsage522/doctorworker/services/proxy"

	"github.com/go-resty/resty/v2"
)

// retryStatuses are responses worth retrying with backoff
var retryStatuses = []int{
	http.StatusRequestTimeout,
	http.StatusTooEarly,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Options configures the fetch client
type Options struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	// BlockFor is how long a host stays blocked after a rate-limit response
	BlockFor time.Duration
}

// DefaultOptions returns the production retry and timeout settings
func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryWait:    time.Second,
		RetryMaxWait: 10 * time.Second,
		BlockFor:     5 * time.Minute,
	}
}

// Client is the crawler's network collaborator
type Client struct {
	http     *resty.Client
	cache    cache.CacheService
	blockFor time.Duration
	log      *logger.Logger
}

var _ crawler.Fetcher = (*Client)(nil)

// New creates a fetch client. rotator and blocks may be nil: without a
// rotator the environment proxy is used, without a cache no host is ever
// blocked.
func New(opts Options, rotator *proxy.Rotator, blocks cache.CacheService) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if rotator != nil {
		transport.Proxy = rotator.ProxyFunc()
	}

	client := resty.New().
		SetTransport(transport).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMaxWait).
		AddRetryCondition(shouldRetry)

	return &Client{
		http:     client,
		cache:    blocks,
		blockFor: opts.BlockFor,
		log:      logger.ForFetcher(),
	}
}

// shouldRetry retries transport errors and transient statuses
func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return !stderrors.Is(err, context.Canceled)
	}
	return resp != nil && slices.Contains(retryStatuses, resp.StatusCode())
}

// Do performs req with retries. Any failure after the last attempt, a
// non-2xx status included, is returned as a single CrawlerError.
func (c *Client) Do(ctx context.Context, req crawler.Request) (*crawler.Response, error) {
	host := hostOf(req.URL)
	if c.blocked(host) {
		return nil, errors.NewRateLimit(host, c.blockFor)
	}

	r := c.http.R().
		SetContext(ctx).
		SetHeaders(req.Headers)
	if req.Body != nil {
		r.SetBody(req.Body)
		if _, ok := req.Headers["Content-Type"]; !ok {
			r.SetHeader("Content-Type", "application/json")
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	resp, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, errors.NewNetwork(host, fmt.Sprintf("%s %s failed", method, req.URL), err)
	}

	status := resp.StatusCode()
	c.log.Debug().
		Str("method", method).
		Str("url", req.URL).
		Int("status", status).
		Int("attempts", resp.Request.Attempt).
		Dur("elapsed", time.Since(start)).
		Msg("Fetched")

	if helpers.IsRateLimited(status) {
		c.block(host)
		return nil, errors.NewRateLimit(host, c.blockFor)
	}
	if status < 200 || status > 299 {
		return nil, errors.NewNetwork(host, fmt.Sprintf("unexpected status code: %d for %s", status, req.URL), nil)
	}

	body, err := helpers.DecodeUTF8(resp.Body(), resp.Header().Get("Content-Type"))
	if err != nil {
		return nil, errors.NewParsing(host, "failed to decode response body", err)
	}

	return &crawler.Response{
		Status: status,
		Header: resp.Header(),
		Body:   body,
	}, nil
}

func (c *Client) blocked(host string) bool {
	if c.cache == nil || host == "" {
		return false
	}
	_, err := c.cache.Get(cache.BlockKey(host))
	if err == nil {
		return true
	}
	if !stderrors.Is(err, cache.ErrMiss) {
		c.log.Debug().Err(err).Str("host", host).Msg("Block check failed, continuing")
	}
	return false
}

func (c *Client) block(host string) {
	c.log.Warn().Str("host", host).Dur("block_for", c.blockFor).Msg("Rate limited, blocking host")
	if c.cache == nil || host == "" {
		return
	}
	if err := c.cache.Set(cache.BlockKey(host), []byte("1"), c.blockFor); err != nil {
		c.log.Error().Err(err).Str("host", host).Msg("Failed to store block key")
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
