package crawler

import (
	"fmt"
	"strings"

	"sjsage522/doctorworker/helpers"

	"github.com/PuerkitoBio/goquery"
)

// Heuristics is an ordered list of strategies per field. For each field the
// first strategy that yields a non-empty value wins.
type Heuristics struct {
	Name              []FieldHandler
	Specialty         []FieldHandler
	Qualifications    []FieldHandler
	Experience        []FieldHandler
	ReviewsCount      []FieldHandler
	Satisfaction      []FieldHandler
	Fee               []FieldHandler
	City              []FieldHandler
	AvailableDays     []FieldHandler
	About             []FieldHandler
	URL               []FieldHandler
	Hospitals         []ListHandler
	Services          []ListHandler
	PMDCVerified      []FlagHandler
	VideoConsultation []FlagHandler
}

// Extract runs every field's strategies against s. Missing fields stay empty.
func (h Heuristics) Extract(s *goquery.Selection) PartialRecord {
	return PartialRecord{
		Name:              firstNonEmpty(s, h.Name),
		Specialty:         firstNonEmpty(s, h.Specialty),
		Qualifications:    firstNonEmpty(s, h.Qualifications),
		Experience:        firstNonEmpty(s, h.Experience),
		ReviewsCount:      firstNonEmpty(s, h.ReviewsCount),
		Satisfaction:      firstNonEmpty(s, h.Satisfaction),
		Fee:               firstNonEmpty(s, h.Fee),
		City:              firstNonEmpty(s, h.City),
		AvailableDays:     firstNonEmpty(s, h.AvailableDays),
		About:             firstNonEmpty(s, h.About),
		URL:               firstNonEmpty(s, h.URL),
		Hospitals:         firstNonEmptyList(s, h.Hospitals),
		Services:          firstNonEmptyList(s, h.Services),
		PMDCVerified:      anyFlag(s, h.PMDCVerified),
		VideoConsultation: anyFlag(s, h.VideoConsultation),
	}
}

// Markup strategies for a single card on a listing page
var listingHeuristics = Heuristics{
	Name:           []FieldHandler{textOf("h3"), textOf(`[class*="doctor-name"]`), textOf("h2")},
	Specialty:      []FieldHandler{textOf("p.mb-0.mt-10.text-sm"), textOf(`[class*="specialty"]`)},
	Qualifications: []FieldHandler{cardQualifications},
	Experience:     []FieldHandler{statValue("experience", nil)},
	ReviewsCount:   []FieldHandler{statValue("reviews", helpers.OnlyDigits)},
	Satisfaction:   []FieldHandler{statValue("satisfaction", nil)},
	Fee:            []FieldHandler{feeFromAmount, textOf("p.price")},
	City:           []FieldHandler{attrOf(".product-card[data-hospitalcity]", "data-hospitalcity")},
	AvailableDays:  []FieldHandler{attrOf(".product-card[data-displaydayname]", "data-displaydayname")},
	URL:            []FieldHandler{profileLink, attrOf(`a[href*="/doctors/"]`, "href")},
	Hospitals:      []ListHandler{attrsOf(".product-card[data-hospitalname]", "data-hospitalname")},
	Services:       []ListHandler{textsOf(".chips-highlight", 1)},
	PMDCVerified: []FlagHandler{
		elementTextContains("span.text-green", "pmdc verified"),
		textContains("pmdc verified"),
	},
	VideoConsultation: []FlagHandler{hasElement(".dr_profile_opened_from_listing_btn_vcall")},
}

// Markup strategies for a full profile page
var detailHeuristics = Heuristics{
	Name:      []FieldHandler{textOf("h1"), textOf(`[class*="doctor-name"]`)},
	Specialty: []FieldHandler{textOf(`[class*="specialty"]`), textOf(`[class*="speciality"]`)},
	Qualifications: []FieldHandler{
		textOf(`[class*="qualification"]`),
		textOf(".qualifications"),
		textOf(`[class*="degree"]`),
	},
	Experience:    []FieldHandler{digitsOf(`[class*="experience"]`, "%s years")},
	ReviewsCount:  []FieldHandler{digitsOf(`[class*="review"]`, "%s")},
	Satisfaction:  []FieldHandler{digitsOf(`[class*="satisfaction"]`, "%s%%")},
	Fee:           []FieldHandler{textOf(`[class*="fee"]`), textOf(`[class*="price"]`)},
	AvailableDays: []FieldHandler{textOf(`[class*="available"]`), textOf(`[class*="timing"]`), textOf(`[class*="schedule"]`)},
	About:         []FieldHandler{textOf(`[class*="about"]`), textOf(`[class*="bio"]`), textOf(`[class*="description"]`)},
	Hospitals:     []ListHandler{textsOf(`[class*="hospital"], [class*="clinic"], [class*="location"]`, 6)},
	Services:      []ListHandler{textsOf(`[class*="service"], [class*="treatment"]`, 3)},
	PMDCVerified: []FlagHandler{
		hasElement(`[class*="verified"]`),
		textContains("pmdc verified"),
	},
	VideoConsultation: []FlagHandler{
		hasElement(`[class*="video-consult"], [class*="btn_vcall"]`),
		textContains("video consultation", "video call"),
	},
}

// ExtractMarkup applies the markup heuristics for docType to s. It never
// fails; fields it cannot find are left empty.
func ExtractMarkup(s *goquery.Selection, docType DocumentType) PartialRecord {
	if docType == ListingCard {
		rec := listingHeuristics.Extract(s)
		rec.Origin = OriginListing
		return rec
	}
	rec := detailHeuristics.Extract(s)
	rec.URL = ""
	rec.Origin = OriginDetail
	return rec
}

// textOf returns the text of the first element matching selector that has any
func textOf(selector string) FieldHandler {
	return func(s *goquery.Selection) string {
		text := ""
		s.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			text = helpers.CleanText(el.Text())
			return text == ""
		})
		return text
	}
}

// attrOf returns the first non-empty attr value among elements matching selector
func attrOf(selector, attr string) FieldHandler {
	return func(s *goquery.Selection) string {
		value := ""
		s.Find(selector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			value = strings.TrimSpace(el.AttrOr(attr, ""))
			return value == ""
		})
		return value
	}
}

// digitsOf takes the first digit run in the combined text of all matches
func digitsOf(selector, format string) FieldHandler {
	return func(s *goquery.Selection) string {
		digits := helpers.FirstDigits(s.Find(selector).Text())
		if digits == "" {
			return ""
		}
		return fmt.Sprintf(format, digits)
	}
}

// statValue reads a "label / value" paragraph pair from a listing card
func statValue(label string, transform func(string) string) FieldHandler {
	return func(s *goquery.Selection) string {
		value := ""
		s.Find("p.mb-0.text-sm").EachWithBreak(func(_ int, el *goquery.Selection) bool {
			key := strings.TrimSuffix(strings.ToLower(helpers.CleanText(el.Text())), ":")
			if key != label {
				return true
			}
			value = helpers.CleanText(el.NextFiltered("p").Text())
			if transform != nil {
				value = transform(value)
			}
			return value == ""
		})
		return value
	}
}

// cardQualifications is the first small paragraph that is not a stat label
func cardQualifications(s *goquery.Selection) string {
	return helpers.CleanText(s.Find("p.text-sm").Not(".mb-0").First().Text())
}

// feeFromAmount formats the appointment block's data-amount as rupees
func feeFromAmount(s *goquery.Selection) string {
	amount := strings.TrimSpace(s.Find(".product-card[data-amount]").First().AttrOr("data-amount", ""))
	if amount == "" {
		return ""
	}
	return "Rs. " + amount
}

// profileLink is the card's explicit "view profile" link
func profileLink(s *goquery.Selection) string {
	href := ""
	s.Find(".dr_profile_open_frm_listing_btn_vprofile, .dr_profile_opened_from_listing").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if h := el.AttrOr("href", ""); strings.Contains(h, "/doctors/") {
			href = h
			return false
		}
		return true
	})
	return href
}

// textsOf collects the text of every match longer than minLen-1 characters
func textsOf(selector string, minLen int) ListHandler {
	return func(s *goquery.Selection) []string {
		var out []string
		s.Find(selector).Each(func(_ int, el *goquery.Selection) {
			if text := helpers.CleanText(el.Text()); len(text) >= minLen {
				out = append(out, text)
			}
		})
		return out
	}
}

// attrsOf collects attr from every match
func attrsOf(selector, attr string) ListHandler {
	return func(s *goquery.Selection) []string {
		var out []string
		s.Find(selector).Each(func(_ int, el *goquery.Selection) {
			if v, ok := el.Attr(attr); ok {
				out = append(out, v)
			}
		})
		return out
	}
}

func hasElement(selector string) FlagHandler {
	return func(s *goquery.Selection) bool {
		return s.Find(selector).Length() > 0
	}
}

func elementTextContains(selector string, needles ...string) FlagHandler {
	return func(s *goquery.Selection) bool {
		return helpers.ContainsFold(s.Find(selector).Text(), needles...)
	}
}

// textContains scans the whole selection text, case-insensitively
func textContains(needles ...string) FlagHandler {
	return func(s *goquery.Selection) bool {
		return helpers.ContainsFold(s.Text(), needles...)
	}
}
