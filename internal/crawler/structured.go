package crawler

import (
	"encoding/json"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"sjsage522/doctorworker/helpers"
	"sjsage522/doctorworker/logger"
	"sjsage522/doctorworker/pkg/errors"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"
)

// structuredTypes are the schema.org types that describe a doctor
var structuredTypes = []string{"Physician", "MedicalBusiness", "Person"}

// StructuredEntry is one schema.org JSON-LD object
type StructuredEntry map[string]interface{}

// StructuredEntries collects every doctor-typed JSON-LD object embedded in s.
// A block that is not valid JSON is retried as JSON5; if that also fails the
// block is skipped and the remaining blocks are still read.
func StructuredEntries(s *goquery.Selection) []StructuredEntry {
	var entries []StructuredEntry
	s.Find(`script[type="application/ld+json"]`).Each(func(i int, script *goquery.Selection) {
		payload := strings.TrimSpace(script.Text())
		if payload == "" {
			return
		}

		parsed, err := decodeStructured(payload)
		if err != nil {
			logger.ForAdapter("structured-data").Debug().
				Err(errors.NewParsing("structured-data", "skipping malformed JSON-LD block", err)).
				Int("block", i).
				Msg("Malformed structured data")
			return
		}

		for _, entry := range flattenStructured(parsed) {
			if entry.hasDoctorType() {
				entries = append(entries, entry)
			}
		}
	})
	return entries
}

func decodeStructured(payload string) (interface{}, error) {
	var parsed interface{}
	if err := json.Unmarshal([]byte(payload), &parsed); err == nil {
		return parsed, nil
	}
	if err := json5.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

// flattenStructured unwraps top-level arrays and @graph containers
func flattenStructured(v interface{}) []StructuredEntry {
	switch node := v.(type) {
	case []interface{}:
		var out []StructuredEntry
		for _, item := range node {
			out = append(out, flattenStructured(item)...)
		}
		return out
	case map[string]interface{}:
		if graph, ok := node["@graph"]; ok {
			return flattenStructured(graph)
		}
		return []StructuredEntry{StructuredEntry(node)}
	default:
		return nil
	}
}

func (e StructuredEntry) hasDoctorType() bool {
	raw, ok := e["@type"]
	if !ok {
		raw = e["type"]
	}
	switch t := raw.(type) {
	case string:
		return slices.Contains(structuredTypes, t)
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok && slices.Contains(structuredTypes, s) {
				return true
			}
		}
	}
	return false
}

// URL returns the entry's own identifying URL resolved against base
func (e StructuredEntry) URL(base *url.URL) string {
	for _, key := range []string{"url", "@id"} {
		if s := scalarString(e[key]); s != "" {
			if resolved := resolveURL(base, s); resolved != "" {
				return resolved
			}
		}
	}
	return ""
}

// Partial converts the entry into a structured-origin PartialRecord
func (e StructuredEntry) Partial(base *url.URL) PartialRecord {
	services := e["AvailableService"]
	if services == nil {
		services = e["availableService"]
	}

	return PartialRecord{
		Name:      helpers.CleanText(scalarString(e["name"])),
		Specialty: helpers.CleanText(firstName(e["medicalSpecialty"])),
		About:     helpers.CleanText(scalarString(e["description"])),
		Hospitals: helpers.UniqueStrings(collectNames(e["hospitalAffiliation"], false)),
		Services:  helpers.UniqueStrings(collectNames(services, true)),
		Fee:       helpers.CleanText(scalarString(e["priceRange"])),
		City:      helpers.CleanText(addressLocality(e["address"])),
		URL:       e.URL(base),
		Origin:    OriginStructured,
	}
}

// ExtractStructured returns the structured-data record of a document. With a
// targetURL only the entry whose own URL matches is used; otherwise the
// first doctor-typed entry is.
func ExtractStructured(s *goquery.Selection, targetURL string, base *url.URL) (PartialRecord, bool) {
	for _, entry := range StructuredEntries(s) {
		if targetURL != "" && !sameURL(entry.URL(base), targetURL) {
			continue
		}
		rec := entry.Partial(base)
		if targetURL != "" && rec.URL == "" {
			rec.URL = targetURL
		}
		return rec, true
	}
	return PartialRecord{}, false
}

// StructuredIndex maps each entry URL to its record, for matching listing cards
func StructuredIndex(s *goquery.Selection, base *url.URL) map[string]PartialRecord {
	index := make(map[string]PartialRecord)
	for _, entry := range StructuredEntries(s) {
		rec := entry.Partial(base)
		if rec.URL == "" {
			continue
		}
		if _, exists := index[rec.URL]; !exists {
			index[rec.URL] = rec
		}
	}
	return index
}

// collectNames flattens the accepted shapes of a name-list field:
//   - a string; with split it may be a "[a, b]" or "a, b" delimited list
//   - an array of any accepted shape
//   - an object carrying a "name" of any accepted shape
//
// Anything else contributes nothing.
func collectNames(v interface{}, split bool) []string {
	switch node := v.(type) {
	case nil:
		return nil
	case string:
		text := strings.TrimSpace(node)
		if !split {
			return []string{text}
		}
		if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
			text = text[1 : len(text)-1]
		}
		var out []string
		for _, part := range strings.Split(text, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	case []interface{}:
		var out []string
		for _, item := range node {
			out = append(out, collectNames(item, split)...)
		}
		return out
	case map[string]interface{}:
		if name, ok := node["name"]; ok {
			return collectNames(name, split)
		}
		return nil
	default:
		return nil
	}
}

// firstName reads a string, an object's name, or the first of a list
func firstName(v interface{}) string {
	names := collectNames(v, false)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func addressLocality(v interface{}) string {
	switch node := v.(type) {
	case map[string]interface{}:
		return scalarString(node["addressLocality"])
	case []interface{}:
		for _, item := range node {
			if city := addressLocality(item); city != "" {
				return city
			}
		}
	}
	return ""
}

// scalarString renders strings and numbers; other shapes yield ""
func scalarString(v interface{}) string {
	switch node := v.(type) {
	case string:
		return strings.TrimSpace(node)
	case float64:
		return strconv.FormatFloat(node, 'f', -1, 64)
	default:
		return ""
	}
}
