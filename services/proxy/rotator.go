package proxy

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sjsage522/doctorworker/logger"
	"sjsage522/doctorworker/pkg/errors"

	"github.com/go-resty/resty/v2"
)

// Stats describes the rotator's current state
type Stats struct {
	Total      int       `json:"total_proxies"`
	Served     uint64    `json:"served"`
	LastUpdate time.Time `json:"last_update"`
}

// Rotator hands out proxies round-robin. It is safe for concurrent use.
type Rotator struct {
	mutex      sync.RWMutex
	proxies    []*url.URL
	lastUpdate time.Time
	cursor     atomic.Uint64
	client     *resty.Client
	log        *logger.Logger
}

// NewRotator creates a rotator from explicitly configured proxy URLs
func NewRotator(rawURLs []string) (*Rotator, error) {
	r := &Rotator{
		client: resty.New().SetTimeout(30 * time.Second),
		log:    logger.ForComponent("proxy"),
	}
	for _, raw := range rawURLs {
		u, err := ParseProxyURL(raw, "http")
		if err != nil {
			return nil, errors.NewConfiguration("invalid proxy URL: "+raw, err)
		}
		r.proxies = append(r.proxies, u)
	}
	if len(r.proxies) > 0 {
		r.lastUpdate = time.Now()
	}
	return r, nil
}

// Load appends the proxies published at listURL, a plain-text list. It
// returns how many new proxies were added.
func (r *Rotator) Load(ctx context.Context, listURL string) (int, error) {
	if listURL == "" {
		return 0, nil
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/plain,*/*").
		Get(listURL)
	if err != nil {
		return 0, errors.NewNetwork("proxy", "failed to fetch proxy list", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return 0, errors.NewNetwork("proxy", "proxy list returned "+resp.Status(), nil)
	}

	body := resp.String()
	if strings.Contains(body, "<!DOCTYPE") || strings.Contains(body, "<html") {
		return 0, errors.NewParsing("proxy", "proxy list looks like an HTML page", nil)
	}

	parsed, skipped := parseProxyText(body, "http")

	r.mutex.Lock()
	defer r.mutex.Unlock()

	known := make(map[string]bool, len(r.proxies))
	for _, p := range r.proxies {
		known[p.String()] = true
	}
	added := 0
	for _, p := range parsed {
		if !known[p.String()] {
			r.proxies = append(r.proxies, p)
			added++
		}
	}
	r.lastUpdate = time.Now()

	r.log.Info().
		Str("source", listURL).
		Int("added", added).
		Int("skipped_lines", skipped).
		Int("total", len(r.proxies)).
		Msg("Loaded proxy list")
	return added, nil
}

// Next returns the next proxy in rotation, or nil when none are configured
func (r *Rotator) Next() *url.URL {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if len(r.proxies) == 0 {
		return nil
	}
	n := r.cursor.Add(1) - 1
	return r.proxies[n%uint64(len(r.proxies))]
}

// ProxyFunc is an http.Transport Proxy func. Without configured proxies it
// falls back to the environment's proxy settings.
func (r *Rotator) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if p := r.Next(); p != nil {
			return p, nil
		}
		return http.ProxyFromEnvironment(req)
	}
}

// Stats reports the list size and how many proxies were handed out
func (r *Rotator) Stats() Stats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return Stats{
		Total:      len(r.proxies),
		Served:     r.cursor.Load(),
		LastUpdate: r.lastUpdate,
	}
}
