package crawler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"sjsage522/doctorworker/helpers"
	"sjsage522/doctorworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// ParseDocument parses raw HTML into a queryable document. It only fails
// when the input cannot be read as HTML at all.
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.NewParsing("html", "failed to parse document", err)
	}
	return doc, nil
}

// fetchDocument GETs pageURL with browser-like headers and parses the body
func fetchDocument(ctx context.Context, fetcher Fetcher, pageURL, referer string) (*goquery.Document, error) {
	resp, err := fetcher.Do(ctx, Request{
		Method:  http.MethodGet,
		URL:     pageURL,
		Headers: helpers.BrowserHeaders(referer),
	})
	if err != nil {
		return nil, err
	}
	return ParseDocument(bytes.NewReader(resp.Body))
}

// processCards extracts every card in parallel and keeps document order
func processCards(cards []*goquery.Selection, processor func(*goquery.Selection) *PartialRecord) []PartialRecord {
	results := make([]*PartialRecord, len(cards))
	var wg sync.WaitGroup

	for i, card := range cards {
		wg.Add(1)
		go func(i int, s *goquery.Selection) {
			defer wg.Done()
			results[i] = processor(s)
		}(i, card)
	}
	wg.Wait()

	var records []PartialRecord
	for _, rec := range results {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records
}

// firstNonEmpty applies handlers in order and returns the first non-empty result
func firstNonEmpty(s *goquery.Selection, handlers []FieldHandler) string {
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if result := helpers.CleanText(handler(s)); result != "" {
			return result
		}
	}
	return ""
}

// firstNonEmptyList is firstNonEmpty for list-valued fields
func firstNonEmptyList(s *goquery.Selection, handlers []ListHandler) []string {
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		if result := helpers.UniqueStrings(handler(s)); len(result) > 0 {
			return result
		}
	}
	return nil
}

// anyFlag reports whether any handler sees the indicator
func anyFlag(s *goquery.Selection, handlers []FlagHandler) bool {
	for _, handler := range handlers {
		if handler != nil && handler(s) {
			return true
		}
	}
	return false
}

// resolveURL makes href absolute against base and canonicalizes it.
// It returns "" for hrefs that cannot be resolved.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if !ref.IsAbs() || ref.Host == "" {
		return ""
	}
	return canonicalURL(ref)
}

// canonicalURL drops the fragment and trailing slash and lowercases the host
// so that the same profile compares equal wherever it was found.
func canonicalURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	c.Host = strings.ToLower(c.Host)
	c.Scheme = strings.ToLower(c.Scheme)
	if len(c.Path) > 1 {
		c.Path = strings.TrimRight(c.Path, "/")
		c.RawPath = ""
	}
	return c.String()
}

// sameURL compares two absolute URLs after canonicalization
func sameURL(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return canonicalURL(ua) == canonicalURL(ub)
}

func trimOr(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}
