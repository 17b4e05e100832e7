package crawler

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"sjsage522/doctorworker/helpers"
	"sjsage522/doctorworker/logger"
	"sjsage522/doctorworker/pkg/errors"
)

// APISchema lists the interchangeable key names the search endpoint has been
// seen to use. Every list is tried in order; the first present key wins.
type APISchema struct {
	Envelope   []string
	List       []string
	TotalPages []string

	Name              []string
	Specialty         []string
	Qualifications    []string
	Experience        []string
	Satisfaction      []string
	ReviewsCount      []string
	Fee               []string
	City              []string
	Hospitals         []string
	Hospital          []string
	AvailableDays     []string
	Services          []string
	About             []string
	URL               []string
	PMDCVerified      []string
	VideoConsultation []string
}

// DefaultAPISchema matches the responses of the directory's search endpoint
var DefaultAPISchema = APISchema{
	Envelope:   []string{"data"},
	List:       []string{"doctors", "results", "items"},
	TotalPages: []string{"totalPages", "lastPage", "last_page"},

	Name:              []string{"name"},
	Specialty:         []string{"speciality", "specialty"},
	Qualifications:    []string{"qualifications"},
	Experience:        []string{"experience"},
	Satisfaction:      []string{"satisfaction"},
	ReviewsCount:      []string{"reviews", "reviews_count"},
	Fee:               []string{"fee"},
	City:              []string{"city"},
	Hospitals:         []string{"hospitals"},
	Hospital:          []string{"hospital"},
	AvailableDays:     []string{"availableDays", "availability"},
	Services:          []string{"services"},
	About:             []string{"description", "about"},
	URL:               []string{"profileUrl", "url"},
	PMDCVerified:      []string{"pmdcVerified", "pmdc_verified"},
	VideoConsultation: []string{"videoConsultation", "video_consultation"},
}

// APIAdapter pages through the structured search endpoint
type APIAdapter struct {
	fetcher  Fetcher
	site     *Site
	endpoint string
	pageSize int
	schema   APISchema
	log      *logger.Logger
}

// NewAPIAdapter creates an API adapter using DefaultAPISchema
func NewAPIAdapter(fetcher Fetcher, site *Site, endpoint string, pageSize int) *APIAdapter {
	return &APIAdapter{
		fetcher:  fetcher,
		site:     site,
		endpoint: endpoint,
		pageSize: pageSize,
		schema:   DefaultAPISchema,
		log:      logger.ForAdapter("api"),
	}
}

// WithSchema replaces the key alias table
func (a *APIAdapter) WithSchema(schema APISchema) *APIAdapter {
	a.schema = schema
	return a
}

// Name returns the adapter name
func (a *APIAdapter) Name() string {
	return "api"
}

// FetchPage requests one page of search results. The token's Page is the
// 1-based page number.
func (a *APIAdapter) FetchPage(ctx context.Context, query SearchQuery, token PageToken) PageResult {
	query = query.Normalize()
	page := max(1, token.Page)

	headers := helpers.BrowserHeaders(a.site.ListingURL(query))
	headers["Accept"] = "application/json, text/plain, */*"
	headers["Content-Type"] = "application/json; charset=UTF-8"
	headers["X-Requested-With"] = "XMLHttpRequest"

	resp, err := a.fetcher.Do(ctx, Request{
		Method:  http.MethodPost,
		URL:     a.endpoint,
		Headers: headers,
		Body: map[string]interface{}{
			"specialty":  query.Specialty,
			"speciality": query.Specialty,
			"city":       query.City,
			"page":       page,
			"limit":      a.pageSize,
		},
	})
	if err != nil {
		a.log.Warn().Err(err).Int("page", page).Msg("Search API request failed")
		return PageResult{}
	}

	items, totalPages, err := a.decode(resp.Body)
	if err != nil {
		a.log.Warn().Err(err).Int("page", page).Msg("Search API returned an unusable payload")
		return PageResult{}
	}

	records := make([]PartialRecord, 0, len(items))
	for _, item := range items {
		records = append(records, a.toPartial(item))
	}
	if len(records) == 0 {
		a.log.Info().Int("page", page).Msg("Search API returned no doctors")
		return PageResult{}
	}

	result := PageResult{Records: records, OK: true}
	if totalPages > page {
		result.Next = &PageToken{Page: page + 1}
	}

	a.log.Debug().
		Int("page", page).
		Int("total_pages", totalPages).
		Int("records", len(records)).
		Msg("Fetched search API page")
	return result
}

// decode reads the doctor list and total page count from whichever payload
// shape the endpoint returned.
func (a *APIAdapter) decode(body []byte) ([]map[string]interface{}, int, error) {
	var root interface{}
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, 0, errors.NewParsing("api", "response is not JSON", err)
	}

	payload := root
	if obj, ok := root.(map[string]interface{}); ok {
		if inner, key := lookup(obj, a.schema.Envelope); key != "" && inner != nil {
			payload = inner
		}
	}

	var list []interface{}
	totalPages := 1
	switch p := payload.(type) {
	case []interface{}:
		list = p
	case map[string]interface{}:
		for _, key := range a.schema.List {
			if l, ok := p[key].([]interface{}); ok {
				list = l
				break
			}
		}
		for _, key := range a.schema.TotalPages {
			if n, ok := asInt(p[key]); ok {
				totalPages = max(1, n)
				break
			}
		}
	default:
		return nil, 0, errors.NewParsing("api", "unexpected payload shape", nil)
	}

	items := make([]map[string]interface{}, 0, len(list))
	for _, entry := range list {
		if item, ok := entry.(map[string]interface{}); ok {
			items = append(items, item)
		}
	}
	return items, totalPages, nil
}

func (a *APIAdapter) toPartial(item map[string]interface{}) PartialRecord {
	s := a.schema
	text := func(keys []string) string {
		v, _ := lookup(item, keys)
		return helpers.CleanText(scalarString(v))
	}
	list := func(keys []string, split bool) []string {
		v, _ := lookup(item, keys)
		return helpers.UniqueStrings(collectNames(v, split))
	}
	flag := func(keys []string) bool {
		v, _ := lookup(item, keys)
		return truthy(v)
	}

	hospitals := list(s.Hospitals, false)
	if len(hospitals) == 0 {
		hospitals = list(s.Hospital, false)
	}

	rec := PartialRecord{
		Name:              text(s.Name),
		Specialty:         text(s.Specialty),
		Qualifications:    text(s.Qualifications),
		Experience:        text(s.Experience),
		Satisfaction:      text(s.Satisfaction),
		ReviewsCount:      text(s.ReviewsCount),
		Fee:               text(s.Fee),
		City:              text(s.City),
		Hospitals:         hospitals,
		AvailableDays:     text(s.AvailableDays),
		Services:          list(s.Services, true),
		About:             text(s.About),
		PMDCVerified:      flag(s.PMDCVerified),
		VideoConsultation: flag(s.VideoConsultation),
		Origin:            OriginAPI,
	}
	if href := text(s.URL); href != "" {
		rec.URL = a.site.Resolve(href)
	}
	return rec
}

// lookup returns the value of the first key present in obj
func lookup(obj map[string]interface{}, keys []string) (interface{}, string) {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			return v, key
		}
	}
	return nil, ""
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

func truthy(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	default:
		return false
	}
}
