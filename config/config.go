package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/doctorworker/pkg/errors"

	"github.com/titanous/json5"
)

// Unbounded is the ResultsWanted value meaning "no quota"
const Unbounded = 0

// Config represents the application configuration
type Config struct {
	// Search query
	Specialty      string
	City           string
	ResultsWanted  int // Unbounded when 0; otherwise at least 1
	MaxPages       int
	CollectDetails bool
	StartURLs      []string

	// Target site
	BaseURL     string
	APIURL      string
	APIPageSize int
	SitemapURLs []string

	// Fetching
	Concurrency    int // 0 means derive from ResultsWanted
	RequestTimeout time.Duration
	MaxRetries     int
	ProxyURLs      []string
	ProxyListURL   string
	RateLimitBlock time.Duration

	// Memcache configuration
	MemcacheAddr string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Output
	OutputFile string
	SQLitePath string

	MetricsAddr   string
	CrawlInterval time.Duration
	ErrorLogFile  string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	baseURL := strings.TrimRight(getEnv("BASE_URL", "https://www.marham.pk"), "/")

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisStreamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	redisStreamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "10000"))
	maxPages, _ := strconv.Atoi(getEnv("MAX_PAGES", "20"))
	pageSize, _ := strconv.Atoi(getEnv("API_PAGE_SIZE", "20"))
	concurrency, _ := strconv.Atoi(getEnv("CONCURRENCY", "0"))
	timeout, _ := strconv.Atoi(getEnv("REQUEST_TIMEOUT_SECONDS", "30"))
	retries, _ := strconv.Atoi(getEnv("MAX_RETRIES", "3"))
	blockSeconds, _ := strconv.Atoi(getEnv("RATE_LIMIT_BLOCK_SECONDS", "300"))
	crawlInterval, _ := strconv.Atoi(getEnv("CRAWL_INTERVAL_SECONDS", "0"))
	collectDetails, err := strconv.ParseBool(getEnv("COLLECT_DETAILS", "true"))
	if err != nil {
		collectDetails = true
	}

	return &Config{
		Specialty:            getEnv("SPECIALTY", "dermatologist"),
		City:                 strings.TrimSpace(os.Getenv("CITY")),
		ResultsWanted:        parseResultsWanted(getEnv("RESULTS_WANTED", "100")),
		MaxPages:             maxPages,
		CollectDetails:       collectDetails,
		StartURLs:            splitList(os.Getenv("START_URLS")),
		BaseURL:              baseURL,
		APIURL:               getEnv("API_URL", baseURL+"/api/doctors/search"),
		APIPageSize:          pageSize,
		SitemapURLs:          splitList(getEnv("SITEMAP_URLS", baseURL+"/sitemap.xml")),
		Concurrency:          concurrency,
		RequestTimeout:       time.Duration(timeout) * time.Second,
		MaxRetries:           retries,
		ProxyURLs:            splitList(os.Getenv("PROXY_URLS")),
		ProxyListURL:         os.Getenv("PROXY_LIST_URL"),
		RateLimitBlock:       time.Duration(blockSeconds) * time.Second,
		MemcacheAddr:         os.Getenv("MEMCACHE_ADDR"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "doctors"),
		RedisStreamCount:     redisStreamCount,
		RedisStreamMaxLength: redisStreamMaxLength,
		OutputFile:           getEnvAllowEmpty("OUTPUT_FILE", "doctors.jsonl"),
		SQLitePath:           os.Getenv("SQLITE_PATH"),
		MetricsAddr:          os.Getenv("METRICS_ADDR"),
		CrawlInterval:        time.Duration(crawlInterval) * time.Second,
		ErrorLogFile:         getEnv("ERROR_LOG_FILE", "errors.log"),
		Environment:          getEnv("DOCTOR_ENVIRONMENT", "development"),
	}
}

// Input mirrors the JSON/JSON5 input document accepted through INPUT_FILE
type Input struct {
	Specialty      *string       `json:"specialty"`
	City           *string       `json:"city"`
	ResultsWanted  interface{}   `json:"results_wanted"`
	MaxPages       *int          `json:"max_pages"`
	CollectDetails *bool         `json:"collectDetails"`
	StartURL       string        `json:"startUrl"`
	StartURLs      []interface{} `json:"startUrls"`
	URL            string        `json:"url"`
	ProxyURLs      []string      `json:"proxyUrls"`
}

// ApplyInputFile overrides the configuration with the keys present in a
// JSON or JSON5 input document.
func (c *Config) ApplyInputFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewConfiguration("failed to read input file "+path, err)
	}
	return c.ApplyInput(data)
}

// ApplyInput overrides the configuration with a JSON or JSON5 input document.
func (c *Config) ApplyInput(data []byte) error {
	var in Input
	if err := json5.Unmarshal(data, &in); err != nil {
		return errors.NewConfiguration("invalid input document", err)
	}

	if in.Specialty != nil {
		c.Specialty = *in.Specialty
	}
	if in.City != nil {
		c.City = strings.TrimSpace(*in.City)
	}
	if in.ResultsWanted != nil {
		switch v := in.ResultsWanted.(type) {
		case float64:
			c.ResultsWanted = resultsFromFloat(v)
		case string:
			c.ResultsWanted = parseResultsWanted(v)
		default:
			return errors.NewConfiguration(fmt.Sprintf("results_wanted has unsupported type %T", v), nil)
		}
	}
	if in.MaxPages != nil {
		c.MaxPages = *in.MaxPages
	}
	if in.CollectDetails != nil {
		c.CollectDetails = *in.CollectDetails
	}

	var starts []string
	for _, s := range in.StartURLs {
		switch v := s.(type) {
		case string:
			starts = append(starts, v)
		case map[string]interface{}:
			if u, ok := v["url"].(string); ok {
				starts = append(starts, u)
			}
		}
	}
	starts = append(starts, in.StartURL, in.URL)
	if cleaned := compact(starts); len(cleaned) > 0 {
		c.StartURLs = cleaned
	}
	if len(in.ProxyURLs) > 0 {
		c.ProxyURLs = compact(in.ProxyURLs)
	}
	return nil
}

// Validate checks the configuration before any strategy starts
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Specialty) == "" {
		c.Specialty = "dermatologist"
	}
	if c.BaseURL == "" || !isHTTPURL(c.BaseURL) {
		return errors.NewConfiguration("BASE_URL must be an absolute http(s) URL", nil)
	}
	if c.APIURL == "" || !isHTTPURL(c.APIURL) {
		return errors.NewConfiguration("API_URL must be an absolute http(s) URL", nil)
	}
	if c.MaxPages < 1 {
		return errors.NewConfiguration("MAX_PAGES must be at least 1", nil)
	}
	if c.ResultsWanted < 0 {
		return errors.NewConfiguration("RESULTS_WANTED must not be negative", nil)
	}
	if c.APIPageSize < 1 {
		return errors.NewConfiguration("API_PAGE_SIZE must be at least 1", nil)
	}
	if c.Concurrency < 0 {
		return errors.NewConfiguration("CONCURRENCY must not be negative", nil)
	}
	if c.RequestTimeout <= 0 {
		return errors.NewConfiguration("REQUEST_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.MaxRetries < 0 {
		return errors.NewConfiguration("MAX_RETRIES must not be negative", nil)
	}
	for _, u := range c.StartURLs {
		if !isHTTPURL(u) {
			return errors.NewConfiguration("start URL is not an absolute http(s) URL: "+u, nil)
		}
	}
	for _, p := range c.ProxyURLs {
		if _, err := url.Parse(p); err != nil || !strings.Contains(p, "://") {
			return errors.NewConfiguration("invalid proxy URL: "+p, err)
		}
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be at least 1", nil)
	}
	if c.RedisAddr == "" && c.OutputFile == "" && c.SQLitePath == "" {
		return errors.NewConfiguration("no output configured: set OUTPUT_FILE, SQLITE_PATH or REDIS_ADDR", nil)
	}
	return nil
}

// WorkerConcurrency returns the detail pool size
func (c *Config) WorkerConcurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	if c.ResultsWanted == Unbounded {
		return 10
	}
	n := int(math.Ceil(float64(c.ResultsWanted) / 25))
	return min(10, max(2, n))
}

// parseResultsWanted reads a record count. An empty value selects the
// default; anything that is not a finite number means unbounded. Finite
// values are floored and clamped to at least 1.
func parseResultsWanted(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 100
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Unbounded
	}
	return resultsFromFloat(f)
}

func resultsFromFloat(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt32 {
		return Unbounded
	}
	return int(math.Max(1, math.Floor(f)))
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return compact(strings.Split(raw, ","))
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAllowEmpty is like getEnv but an explicitly empty variable disables the default
func getEnvAllowEmpty(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	return strings.TrimSpace(value)
}
