package crawler

import (
	"sort"
	"strings"

	"sjsage522/doctorworker/helpers"

	"dario.cat/mergo"
)

// Merge combines partial records describing one entity. Records are applied
// in origin precedence order (structured, detail, listing, api, fallback)
// and each scalar field keeps the first non-empty value. Hospitals and
// services are unioned in first-seen order; flags are OR-combined.
// The second result is false when the merged record has no name.
func Merge(partials ...PartialRecord) (NormalizedRecord, bool) {
	ordered := make([]PartialRecord, len(partials))
	copy(ordered, partials)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Origin < ordered[j].Origin
	})

	var merged PartialRecord
	for _, p := range ordered {
		p = p.cleaned()
		// mergo only fills empty destination fields, so precedence is the
		// application order; a true flag fills a false one.
		if err := mergo.Merge(&merged, p, mergo.WithAppendSlice); err != nil {
			continue
		}
	}
	merged.Hospitals = helpers.UniqueStrings(merged.Hospitals)
	merged.Services = helpers.UniqueStrings(merged.Services)

	if merged.Name == "" {
		return NormalizedRecord{}, false
	}
	return merged.normalized(), true
}

// GroupByIdentity groups records that share a URL, keeping first-seen
// order. Records without a URL each form their own group.
func GroupByIdentity(records []PartialRecord) [][]PartialRecord {
	var groups [][]PartialRecord
	byURL := make(map[string]int)
	for _, rec := range records {
		if rec.URL == "" {
			groups = append(groups, []PartialRecord{rec})
			continue
		}
		if idx, ok := byURL[rec.URL]; ok {
			groups[idx] = append(groups[idx], rec)
			continue
		}
		byURL[rec.URL] = len(groups)
		groups = append(groups, []PartialRecord{rec})
	}
	return groups
}

// cleaned trims every text field so whitespace-only values count as absent
func (p PartialRecord) cleaned() PartialRecord {
	p.Name = helpers.CleanText(p.Name)
	p.Specialty = helpers.CleanText(p.Specialty)
	p.Qualifications = helpers.CleanText(p.Qualifications)
	p.Experience = helpers.CleanText(p.Experience)
	p.ReviewsCount = helpers.CleanText(p.ReviewsCount)
	p.Satisfaction = helpers.CleanText(p.Satisfaction)
	p.Fee = helpers.CleanText(p.Fee)
	p.City = helpers.CleanText(p.City)
	p.AvailableDays = helpers.CleanText(p.AvailableDays)
	p.About = helpers.CleanText(p.About)
	p.URL = strings.TrimSpace(p.URL)
	p.Hospitals = helpers.UniqueStrings(p.Hospitals)
	p.Services = helpers.UniqueStrings(p.Services)
	return p
}

func (p PartialRecord) normalized() NormalizedRecord {
	return NormalizedRecord{
		Name:              optional(p.Name),
		Specialty:         optional(p.Specialty),
		Qualifications:    optional(p.Qualifications),
		Experience:        optional(p.Experience),
		ReviewsCount:      optional(p.ReviewsCount),
		Satisfaction:      optional(p.Satisfaction),
		Fee:               optional(p.Fee),
		City:              optional(p.City),
		Hospitals:         p.Hospitals,
		AvailableDays:     optional(p.AvailableDays),
		Services:          p.Services,
		About:             optional(p.About),
		URL:               optional(p.URL),
		PMDCVerified:      p.PMDCVerified,
		VideoConsultation: p.VideoConsultation,
		Source:            SourceName,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
