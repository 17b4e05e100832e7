package crawler

import (
	"context"
	"fmt"
	"sync"
)

const testBase = "https://www.marham.pk"

func testSite() *Site {
	site, err := NewSite(testBase)
	if err != nil {
		panic(err)
	}
	return site
}

// MockFetcher serves canned bodies keyed by URL and records every request
type MockFetcher struct {
	mu        sync.Mutex
	responses map[string]string
	handler   func(req Request) (*Response, error)
	calls     []Request
}

func NewMockFetcher(responses map[string]string) *MockFetcher {
	return &MockFetcher{responses: responses}
}

func (m *MockFetcher) Do(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	handler := m.handler
	body, ok := m.responses[req.URL]
	m.mu.Unlock()

	if handler != nil {
		return handler(req)
	}
	if !ok {
		return nil, fmt.Errorf("unexpected status code: 404 for %s", req.URL)
	}
	return &Response{Status: 200, Body: []byte(body)}, nil
}

func (m *MockFetcher) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockSink collects pushed records
type MockSink struct {
	mu      sync.Mutex
	records []NormalizedRecord
	failFor map[string]bool
}

func NewMockSink() *MockSink {
	return &MockSink{failFor: make(map[string]bool)}
}

func (m *MockSink) Push(ctx context.Context, record NormalizedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[record.Identity()] {
		return fmt.Errorf("sink unavailable")
	}
	m.records = append(m.records, record)
	return nil
}

func (m *MockSink) Records() []NormalizedRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NormalizedRecord, len(m.records))
	copy(out, m.records)
	return out
}

func (m *MockSink) Names() []string {
	var names []string
	for _, r := range m.Records() {
		if r.Name != nil {
			names = append(names, *r.Name)
		}
	}
	return names
}

// ScriptedAdapter returns pre-built pages in order, keyed by page number
type ScriptedAdapter struct {
	mu    sync.Mutex
	name  string
	pages map[int]PageResult
	calls []PageToken
	// onFetch runs before each page is returned
	onFetch func(token PageToken)
}

func NewScriptedAdapter(name string, pages map[int]PageResult) *ScriptedAdapter {
	return &ScriptedAdapter{name: name, pages: pages}
}

func (s *ScriptedAdapter) Name() string { return s.name }

func (s *ScriptedAdapter) FetchPage(ctx context.Context, query SearchQuery, token PageToken) PageResult {
	s.mu.Lock()
	s.calls = append(s.calls, token)
	onFetch := s.onFetch
	s.mu.Unlock()

	if onFetch != nil {
		onFetch(token)
	}
	return s.pages[max(1, token.Page)]
}

func (s *ScriptedAdapter) Calls() []PageToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PageToken, len(s.calls))
	copy(out, s.calls)
	return out
}

// ScriptedDetails returns canned detail partials by URL; missing URLs fail
type ScriptedDetails struct {
	mu      sync.Mutex
	details map[string][]PartialRecord
	calls   []string
}

func NewScriptedDetails(details map[string][]PartialRecord) *ScriptedDetails {
	return &ScriptedDetails{details: details}
}

func (s *ScriptedDetails) FetchDetail(ctx context.Context, pageURL string) ([]PartialRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, pageURL)
	partials, ok := s.details[pageURL]
	return partials, ok
}

func (s *ScriptedDetails) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// MockLogger records LogError calls
type MockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *MockLogger) LogError(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, name+": "+err.Error())
}

func (m *MockLogger) LogInfo(format string, args ...interface{}) {}

func (m *MockLogger) Errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.errors...)
}
