package crawler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"sjsage522/doctorworker/helpers"
)

// Site describes the directory being scraped
type Site struct {
	Base *url.URL
}

// NewSite parses the site's base URL
func NewSite(baseURL string) (*Site, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("base URL %q is not absolute", baseURL)
	}
	return &Site{Base: base}, nil
}

// ListingURL is the query-derived start page:
// /doctors/{city}/{specialty}, or /doctors/{specialty} for all cities.
func (s *Site) ListingURL(q SearchQuery) string {
	q = q.Normalize()
	path := "/doctors/" + helpers.Slugify(q.Specialty)
	if city := helpers.Slugify(q.City); city != "" {
		path = "/doctors/" + city + "/" + helpers.Slugify(q.Specialty)
	}
	return s.Resolve(path)
}

// Resolve makes href absolute against the base URL; "" if it cannot
func (s *Site) Resolve(href string) string {
	return resolveURL(s.Base, href)
}

// NextPageURL increments the page query parameter of current, treating a
// missing parameter as page 1.
func NextPageURL(current string) (string, error) {
	u, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	q := u.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	q.Set("page", strconv.Itoa(page+1))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
