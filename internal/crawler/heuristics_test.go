package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindCards(t *testing.T) {
	doc := mustDocument(t, listingHTML)

	cards := FindCards(doc.Selection)
	require.Len(t, cards, 2, "the card without a profile link is not a doctor card")
	assert.Contains(t, cards[0].Find("h3").Text(), "Ayesha")
	assert.Contains(t, cards[1].Find("h3").Text(), "Bilal")
}

func TestFindCards_FallsBackToLaterStrategies(t *testing.T) {
	doc := mustDocument(t, `<html><body>
		<article class="doctor-profile"><h2>Dr. Zara</h2><a href="/doctors/karachi/ent-specialist/dr-zara">Profile</a></article>
	</body></html>`)

	cards := FindCards(doc.Selection)
	require.Len(t, cards, 1)

	rec := ExtractMarkup(cards[0], ListingCard)
	assert.Equal(t, "Dr. Zara", rec.Name)
	assert.Equal(t, "/doctors/karachi/ent-specialist/dr-zara", rec.URL)
}

func TestFindCards_NoCards(t *testing.T) {
	doc := mustDocument(t, `<html><body><p>No doctors found</p></body></html>`)
	assert.Empty(t, FindCards(doc.Selection))
}

func TestExtractMarkup_ListingCard(t *testing.T) {
	doc := mustDocument(t, listingHTML)
	cards := FindCards(doc.Selection)
	require.Len(t, cards, 2)

	rec := ExtractMarkup(cards[0], ListingCard)
	assert.Equal(t, OriginListing, rec.Origin)
	assert.Equal(t, "Dr. Ayesha Khan", rec.Name)
	assert.Equal(t, "Dermatologist", rec.Specialty)
	assert.Equal(t, "MBBS, FCPS (Dermatology)", rec.Qualifications)
	assert.Equal(t, "12 Yrs", rec.Experience)
	assert.Equal(t, "1250", rec.ReviewsCount)
	assert.Equal(t, "98%", rec.Satisfaction)
	assert.Equal(t, "Rs. 2500", rec.Fee)
	assert.Equal(t, "Lahore", rec.City)
	assert.Equal(t, "Mon, Wed, Fri", rec.AvailableDays)
	assert.Equal(t, "/doctors/lahore/dermatologist/dr-ayesha-khan", rec.URL)
	assert.Equal(t, []string{"Hameed Latif Hospital", "Online Video Consultation"}, rec.Hospitals)
	assert.Equal(t, []string{"Acne Treatment", "Botox"}, rec.Services)
	assert.True(t, rec.PMDCVerified)
	assert.True(t, rec.VideoConsultation)
}

func TestExtractMarkup_SparseListingCard(t *testing.T) {
	doc := mustDocument(t, listingHTML)
	cards := FindCards(doc.Selection)
	require.Len(t, cards, 2)

	rec := ExtractMarkup(cards[1], ListingCard)
	assert.Equal(t, "Dr. Bilal Ahmed", rec.Name)
	assert.Equal(t, "Rs. 1,500", rec.Fee, "falls back to the visible price")
	assert.Equal(t, "/doctors/lahore/dermatologist/dr-bilal-ahmed/", rec.URL)
	assert.Empty(t, rec.Qualifications)
	assert.Empty(t, rec.Experience)
	assert.Empty(t, rec.City)
	assert.Nil(t, rec.Hospitals)
	assert.False(t, rec.PMDCVerified)
	assert.False(t, rec.VideoConsultation)
}

func TestExtractMarkup_DetailPage(t *testing.T) {
	doc := mustDocument(t, detailHTML)

	rec := ExtractMarkup(doc.Selection, DetailPage)
	assert.Equal(t, OriginDetail, rec.Origin)
	assert.Equal(t, "Dr. Ayesha Khan", rec.Name)
	assert.Equal(t, "Dermatologist", rec.Specialty)
	assert.Equal(t, "MBBS, FCPS", rec.Qualifications)
	assert.Equal(t, "12 years", rec.Experience)
	assert.Equal(t, "1250", rec.ReviewsCount)
	assert.Equal(t, "98%", rec.Satisfaction)
	assert.Equal(t, "Rs. 2,500", rec.Fee)
	assert.Equal(t, "Mon - Sat", rec.AvailableDays)
	assert.Equal(t, "Dr. Ayesha has 12 years of experience.", rec.About)
	assert.Equal(t, []string{"Hameed Latif Hospital", "Skin Clinic"}, rec.Hospitals)
	assert.Equal(t, []string{"Acne Treatment", "Laser"}, rec.Services, "entries shorter than three characters are ignored")
	assert.True(t, rec.PMDCVerified)
	assert.True(t, rec.VideoConsultation)
	assert.Empty(t, rec.URL, "detail markup never guesses its own URL")
}

func TestExtractMarkup_EmptyDocument(t *testing.T) {
	doc := mustDocument(t, `<html><body></body></html>`)

	assert.Equal(t, PartialRecord{Origin: OriginDetail}, ExtractMarkup(doc.Selection, DetailPage))
	assert.Equal(t, PartialRecord{Origin: OriginListing}, ExtractMarkup(doc.Selection, ListingCard))
}

func TestParseDocument_AcceptsBrokenMarkup(t *testing.T) {
	doc := mustDocument(t, `<div><h1>Dr. Unclosed</div><p>still parsed`)
	assert.Equal(t, "Dr. Unclosed", ExtractMarkup(doc.Selection, DetailPage).Name)
}
