package crawler

import (
	"context"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// SourceName identifies the directory every record comes from
const SourceName = "marham.pk"

// DefaultSpecialty is used when the query leaves the specialty blank
const DefaultSpecialty = "dermatologist"

// SearchQuery describes what to collect. An empty City means all cities.
type SearchQuery struct {
	Specialty string
	City      string
}

// Normalize returns the query with surrounding whitespace removed and the
// specialty defaulted.
func (q SearchQuery) Normalize() SearchQuery {
	q.Specialty = trimOr(q.Specialty, DefaultSpecialty)
	q.City = trimOr(q.City, "")
	return q
}

// Origin tags which extraction pass produced a PartialRecord. Lower values
// take precedence when records are merged.
type Origin int

const (
	OriginStructured Origin = iota + 1
	OriginDetail
	OriginListing
	OriginAPI
	OriginFallback
)

// String returns the name used in logs and metrics
func (o Origin) String() string {
	switch o {
	case OriginStructured:
		return "structured"
	case OriginDetail:
		return "detail"
	case OriginListing:
		return "listing"
	case OriginAPI:
		return "api"
	case OriginFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// DocumentType tells the field extractor which heuristics apply
type DocumentType string

const (
	ListingCard DocumentType = "listing-card"
	DetailPage  DocumentType = "detail-page"
)

// PartialRecord is what one extraction pass found. Empty strings and nil
// slices mean "absent".
type PartialRecord struct {
	Name              string
	Specialty         string
	Qualifications    string
	Experience        string
	ReviewsCount      string
	Satisfaction      string
	Fee               string
	City              string
	Hospitals         []string
	AvailableDays     string
	Services          []string
	About             string
	URL               string
	PMDCVerified      bool
	VideoConsultation bool

	Origin Origin
}

// NormalizedRecord is the merged, de-duplicated record handed to sinks
type NormalizedRecord struct {
	Name              *string  `json:"name"`
	Specialty         *string  `json:"specialty"`
	Qualifications    *string  `json:"qualifications"`
	Experience        *string  `json:"experience"`
	ReviewsCount      *string  `json:"reviews_count"`
	Satisfaction      *string  `json:"satisfaction"`
	Fee               *string  `json:"fee"`
	City              *string  `json:"city"`
	Hospitals         []string `json:"hospitals"`
	AvailableDays     *string  `json:"available_days"`
	Services          []string `json:"services"`
	About             *string  `json:"about"`
	URL               *string  `json:"url"`
	PMDCVerified      bool     `json:"pmdc_verified"`
	VideoConsultation bool     `json:"video_consultation"`
	Source            string   `json:"_source"`
}

// Identity returns the key sinks deduplicate on: the URL when present,
// otherwise the name.
func (r NormalizedRecord) Identity() string {
	if r.URL != nil {
		return *r.URL
	}
	if r.Name != nil {
		return "name:" + *r.Name
	}
	return ""
}

// PageToken is an adapter's cursor. Page is 1-based; URLs carries the page
// URL for listings and the pending document queue for sitemaps; Limit caps
// how many entities the call may return (0 means no cap). Entities for which
// Skip reports true are neither returned nor counted against Limit.
type PageToken struct {
	Page  int
	URLs  []string
	Limit int
	Skip  func(url string) bool
}

// PageResult is the outcome of one FetchPage call. Next is nil when the
// adapter is exhausted. OK=false means no usable data and triggers fallback.
type PageResult struct {
	Records []PartialRecord
	Next    *PageToken
	OK      bool
}

// Adapter is one acquisition strategy
type Adapter interface {
	// Name returns the adapter name for logs and metrics
	Name() string

	// FetchPage fetches one page of results for the query
	FetchPage(ctx context.Context, query SearchQuery, token PageToken) PageResult
}

// DetailSource fetches and extracts one profile page
type DetailSource interface {
	FetchDetail(ctx context.Context, pageURL string) ([]PartialRecord, bool)
}

// Request is one call to the fetch collaborator. A non-nil Body is sent as JSON.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    interface{}
}

// Response is a successful fetch; Body is already UTF-8
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Fetcher performs network I/O including retries, timeouts and proxy routing.
// Any failure after retries is returned as a single error.
type Fetcher interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// Sink receives accepted records
type Sink interface {
	Push(ctx context.Context, record NormalizedRecord) error
}

// FieldHandler extracts one text field from a selection; "" means not found
type FieldHandler func(*goquery.Selection) string

// ListHandler extracts a list-valued field from a selection
type ListHandler func(*goquery.Selection) []string

// FlagHandler reports a boolean indicator on a selection
type FlagHandler func(*goquery.Selection) bool
