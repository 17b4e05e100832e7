package crawler

import (
	"sjsage522/doctorworker/config"
)

// NewOptions builds run options from the configuration
func NewOptions(cfg *config.Config) Options {
	return Options{
		Query:          SearchQuery{Specialty: cfg.Specialty, City: cfg.City},
		ResultsWanted:  cfg.ResultsWanted,
		MaxPages:       cfg.MaxPages,
		CollectDetails: cfg.CollectDetails,
		StartURLs:      cfg.StartURLs,
		Concurrency:    cfg.WorkerConcurrency(),
	}
}

// CreateStrategies wires the three adapters against one fetcher. The HTML
// adapter serves both listing traversal and detail pages.
func CreateStrategies(cfg *config.Config, fetcher Fetcher) (Strategies, error) {
	site, err := NewSite(cfg.BaseURL)
	if err != nil {
		return Strategies{}, err
	}

	html := NewHTMLAdapter(fetcher, site)
	return Strategies{
		API:     NewAPIAdapter(fetcher, site, cfg.APIURL, cfg.APIPageSize),
		Sitemap: NewSitemapAdapter(fetcher, site, cfg.SitemapURLs),
		Listing: html,
		Details: html,
	}, nil
}
