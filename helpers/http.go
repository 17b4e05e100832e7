package helpers

import (
	"bytes"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"slices"
	"time"

	"golang.org/x/net/html/charset"
)

// Header pools used to look like an ordinary browser
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	}

	referers = []string{
		"https://www.google.com/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
	}

	rateLimitStatuses = []int{http.StatusTooManyRequests, 430}
)

// BrowserHeaders returns a randomized set of browser-like request headers.
// When referer is empty a search engine referer is picked instead.
func BrowserHeaders(referer string) map[string]string {
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
	if referer == "" {
		referer = referers[rnd.Intn(len(referers))]
	}

	return map[string]string{
		"User-Agent":                userAgents[rnd.Intn(len(userAgents))],
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9,ur;q=0.7",
		"Cache-Control":             "no-cache",
		"Pragma":                    "no-cache",
		"Referer":                   referer,
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "cross-site",
	}
}

// IsRateLimited reports whether the status code means the site is throttling us.
func IsRateLimited(status int) bool {
	return slices.Contains(rateLimitStatuses, status)
}

// DecodeUTF8 converts body to UTF-8 using the Content-Type header and the
// body itself to detect the charset.
func DecodeUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)

	// If already UTF-8, return as is
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}
	return buf.Bytes(), nil
}
