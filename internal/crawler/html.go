package crawler

import (
	"context"

	"sjsage522/doctorworker/logger"

	"github.com/PuerkitoBio/goquery"
)

// cardStrategy locates candidate doctor cards on a listing page
type cardStrategy func(doc *goquery.Selection) []*goquery.Selection

// cardStrategies are tried in order; the first one that finds at least one
// card holding a profile link wins.
var cardStrategies = []cardStrategy{
	cardsMatching("#doctor-listing1 .row.shadow-card"),
	cardsMatching(".row.shadow-card"),
	cardsMatching(`div[class*="doctor-card"]`),
	cardsMatching(`article[class*="doctor"]`),
	cardsMatching("[data-doctor-id]"),
}

func cardsMatching(selector string) cardStrategy {
	return func(doc *goquery.Selection) []*goquery.Selection {
		var cards []*goquery.Selection
		doc.Find(selector).Each(func(_ int, card *goquery.Selection) {
			if card.Find(`a[href*="/doctors/"]`).Length() > 0 {
				cards = append(cards, card)
			}
		})
		return cards
	}
}

// FindCards applies cardStrategies to a listing document
func FindCards(doc *goquery.Selection) []*goquery.Selection {
	for _, strategy := range cardStrategies {
		if cards := strategy(doc); len(cards) > 0 {
			return cards
		}
	}
	return nil
}

// HTMLAdapter parses rendered listing pages and profile pages
type HTMLAdapter struct {
	fetcher Fetcher
	site    *Site
	log     *logger.Logger
}

// NewHTMLAdapter creates an HTML adapter
func NewHTMLAdapter(fetcher Fetcher, site *Site) *HTMLAdapter {
	return &HTMLAdapter{
		fetcher: fetcher,
		site:    site,
		log:     logger.ForAdapter("html"),
	}
}

// Name returns the adapter name
func (a *HTMLAdapter) Name() string {
	return "html"
}

// FetchPage fetches the listing page in token.URLs[0], or the query-derived
// listing when the token carries no URL, and extracts one listing partial
// per card. A card whose profile URL matches a structured-data entry is
// followed by that entry's partial. The next token increments ?page=.
func (a *HTMLAdapter) FetchPage(ctx context.Context, query SearchQuery, token PageToken) PageResult {
	pageURL := a.site.ListingURL(query)
	if len(token.URLs) > 0 {
		pageURL = token.URLs[0]
	}
	page := max(1, token.Page)

	doc, err := fetchDocument(ctx, a.fetcher, pageURL, a.site.Base.String())
	if err != nil {
		a.log.Warn().Err(err).Str("url", pageURL).Int("page", page).Msg("Failed to fetch listing page")
		return PageResult{}
	}

	records := a.ParseListing(doc.Selection)
	if len(records) == 0 {
		a.log.Info().Str("url", pageURL).Int("page", page).Msg("No doctor cards found")
		return PageResult{}
	}

	result := PageResult{Records: records, OK: true}
	if nextURL, err := NextPageURL(pageURL); err == nil {
		result.Next = &PageToken{Page: page + 1, URLs: []string{nextURL}}
	}

	a.log.Debug().Str("url", pageURL).Int("page", page).Int("records", len(records)).Msg("Parsed listing page")
	return result
}

// ParseListing extracts partial records from every card of a listing document
func (a *HTMLAdapter) ParseListing(doc *goquery.Selection) []PartialRecord {
	cards := FindCards(doc)
	if len(cards) == 0 {
		return nil
	}
	structured := StructuredIndex(doc, a.site.Base)

	listing := processCards(cards, func(card *goquery.Selection) *PartialRecord {
		rec := ExtractMarkup(card, ListingCard)
		rec.URL = a.site.Resolve(rec.URL)
		return &rec
	})

	records := make([]PartialRecord, 0, len(listing))
	for _, rec := range listing {
		records = append(records, rec)
		if entry, ok := structured[rec.URL]; ok && rec.URL != "" {
			records = append(records, entry)
		}
	}
	return records
}

// FetchDetail fetches a profile page and returns its structured-data partial
// (when an entry matches the page URL) and its markup partial.
func (a *HTMLAdapter) FetchDetail(ctx context.Context, pageURL string) ([]PartialRecord, bool) {
	doc, err := fetchDocument(ctx, a.fetcher, pageURL, a.site.Base.String())
	if err != nil {
		a.log.Warn().Err(err).Str("url", pageURL).Msg("Failed to fetch profile page")
		return nil, false
	}
	return a.ParseDetail(doc.Selection, pageURL), true
}

// ParseDetail extracts partial records from a profile document
func (a *HTMLAdapter) ParseDetail(doc *goquery.Selection, pageURL string) []PartialRecord {
	canonical := a.site.Resolve(pageURL)

	var partials []PartialRecord
	if rec, ok := ExtractStructured(doc, canonical, a.site.Base); ok {
		rec.URL = canonical
		partials = append(partials, rec)
	}

	detail := ExtractMarkup(doc, DetailPage)
	detail.URL = canonical
	return append(partials, detail)
}
