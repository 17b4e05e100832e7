package crawler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"sjsage522/doctorworker/helpers"
	"sjsage522/doctorworker/logger"
	"sjsage522/doctorworker/pkg/errors"

	"github.com/antchfx/xmlquery"
)

// SitemapAdapter discovers profile URLs from the site's sitemap documents.
// Each FetchPage call streams one document; nested sitemap indexes are
// queued in the returned token.
type SitemapAdapter struct {
	fetcher   Fetcher
	site      *Site
	indexURLs []string
	log       *logger.Logger
}

// NewSitemapAdapter creates a sitemap adapter starting from indexURLs
func NewSitemapAdapter(fetcher Fetcher, site *Site, indexURLs []string) *SitemapAdapter {
	return &SitemapAdapter{
		fetcher:   fetcher,
		site:      site,
		indexURLs: indexURLs,
		log:       logger.ForAdapter("sitemap"),
	}
}

// Name returns the adapter name
func (a *SitemapAdapter) Name() string {
	return "sitemap"
}

// FetchPage streams the first queued sitemap document. On the first page an
// empty queue means "start from the configured index documents". The
// returned records carry only a URL.
func (a *SitemapAdapter) FetchPage(ctx context.Context, query SearchQuery, token PageToken) PageResult {
	queue := token.URLs
	if len(queue) == 0 && token.Page <= 1 {
		queue = a.indexURLs
	}
	if len(queue) == 0 {
		return PageResult{}
	}

	current, rest := queue[0], slices.Clone(queue[1:])
	next := func() *PageToken {
		if len(rest) == 0 {
			return nil
		}
		return &PageToken{Page: max(1, token.Page) + 1, URLs: rest, Limit: token.Limit, Skip: token.Skip}
	}

	headers := helpers.BrowserHeaders(a.site.Base.String())
	headers["Accept"] = "application/xml,text/xml;q=0.9,*/*;q=0.8"

	resp, err := a.fetcher.Do(ctx, Request{Method: http.MethodGet, URL: current, Headers: headers})
	if err != nil {
		a.log.Warn().Err(err).Str("sitemap", current).Msg("Failed to fetch sitemap")
		return PageResult{Next: next()}
	}

	records, children, err := a.scan(bytes.NewReader(resp.Body), query, token.Limit, token.Skip)
	if err != nil {
		a.log.Warn().Err(err).Str("sitemap", current).Msg("Sitemap could not be fully parsed")
	}
	for _, child := range children {
		if child != current && !slices.Contains(rest, child) {
			rest = append(rest, child)
		}
	}

	a.log.Debug().
		Str("sitemap", current).
		Int("matches", len(records)).
		Int("queued", len(rest)).
		Msg("Scanned sitemap")

	return PageResult{Records: records, Next: next(), OK: len(records) > 0}
}

// scan streams <loc> elements. Entries under <sitemap> are child documents;
// entries under <url> are candidate profiles, kept when they match query.
// Scanning stops once limit matches were found (limit 0 means no cap);
// profiles for which skip reports true do not count.
func (a *SitemapAdapter) scan(r io.Reader, query SearchQuery, limit int, skip func(string) bool) ([]PartialRecord, []string, error) {
	parser, err := xmlquery.CreateStreamParser(r, "//loc")
	if err != nil {
		return nil, nil, errors.NewParsing("sitemap", "failed to create stream parser", err)
	}

	var records []PartialRecord
	var children []string
	seen := make(map[string]struct{})
	for {
		node, err := parser.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return records, children, errors.NewParsing("sitemap", "malformed sitemap XML", err)
		}

		loc := strings.TrimSpace(node.InnerText())
		if loc == "" {
			continue
		}
		if node.Parent != nil && node.Parent.Data == "sitemap" {
			if child := a.site.Resolve(loc); child != "" {
				children = append(children, child)
			}
			continue
		}

		profile := a.site.Resolve(loc)
		if profile == "" || !MatchesProfilePath(profile, query) {
			continue
		}
		if _, dup := seen[profile]; dup {
			continue
		}
		seen[profile] = struct{}{}
		if skip != nil && skip(profile) {
			continue
		}
		records = append(records, PartialRecord{URL: profile, Origin: OriginFallback})

		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return records, children, nil
}

// MatchesProfilePath reports whether rawURL is a doctor profile for query.
// Two shapes are accepted:
//
//	/doctors/{city}/{specialty}/{slug}
//	/online-consultation/{specialty}/{city}/{slug}
//
// City and specialty segments are compared as slugs; an empty query field
// matches any segment.
func MatchesProfilePath(rawURL string, query SearchQuery) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	var segments []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) != 4 {
		return false
	}

	var city, specialty string
	switch segments[0] {
	case "doctors":
		city, specialty = segments[1], segments[2]
	case "online-consultation":
		specialty, city = segments[1], segments[2]
	default:
		return false
	}

	return helpers.SameSlug(query.Specialty, specialty) && helpers.SameSlug(query.City, city)
}
