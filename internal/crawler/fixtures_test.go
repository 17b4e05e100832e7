package crawler

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const (
	ayeshaURL = testBase + "/doctors/lahore/dermatologist/dr-ayesha-khan"
	bilalURL  = testBase + "/doctors/lahore/dermatologist/dr-bilal-ahmed"
)

// A listing page with two usable cards and one card without a profile link
const listingHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Best Dermatologists in Lahore</title>
    <script type="application/ld+json">
    [{
        "@context": "https://schema.org",
        "@type": "Physician",
        "name": "Dr. Ayesha Khan",
        "url": "https://www.marham.pk/doctors/lahore/dermatologist/dr-ayesha-khan",
        "medicalSpecialty": {"name": "Dermatology"},
        "description": "Consultant dermatologist.",
        "hospitalAffiliation": [{"name": "Hameed Latif Hospital"}, {"name": "Doctors Hospital"}],
        "AvailableService": "[Acne Treatment, Laser Hair Removal]",
        "priceRange": "Rs. 2500",
        "address": {"addressLocality": "Lahore"}
    }]
    </script>
</head>
<body>
<div id="doctor-listing1">
    <div class="row shadow-card">
        <h3>Dr. Ayesha Khan</h3>
        <p class="mb-0 mt-10 text-sm">Dermatologist</p>
        <p class="text-sm">MBBS, FCPS (Dermatology)</p>
        <p class="mb-0 text-sm">Reviews</p><p>1,250 </p>
        <p class="mb-0 text-sm">Experience</p><p>12 Yrs</p>
        <p class="mb-0 text-sm">Satisfaction</p><p>98%</p>
        <span class="text-green">PMDC Verified</span>
        <div class="product-card" data-amount="2500" data-hospitalname="Hameed Latif Hospital" data-hospitalcity="Lahore" data-displaydayname="Mon, Wed, Fri"></div>
        <div class="product-card" data-hospitalname="Online Video Consultation"></div>
        <span class="chips-highlight">Acne Treatment</span>
        <span class="chips-highlight">Botox</span>
        <a class="dr_profile_opened_from_listing" href="/doctors/lahore/dermatologist/dr-ayesha-khan">View Profile</a>
        <a class="dr_profile_opened_from_listing_btn_vcall" href="/doctors/lahore/dermatologist/dr-ayesha-khan#video">Book Call</a>
    </div>
    <div class="row shadow-card">
        <h3>Dr. Bilal Ahmed</h3>
        <p class="mb-0 mt-10 text-sm">Dermatologist</p>
        <p class="price">Rs. 1,500</p>
        <a href="/doctors/lahore/dermatologist/dr-bilal-ahmed/">Profile</a>
    </div>
    <div class="row shadow-card">
        <h3>Promoted clinic</h3>
        <a href="/hospitals/lahore/skin-clinic">Visit</a>
    </div>
</div>
</body>
</html>
`

// A profile page with a malformed structured-data block, a matching block
// and an unrelated block
const detailHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Dr. Ayesha Khan - Dermatologist</title>
    <script type="application/ld+json">{ this is not json }</script>
    <script type="application/ld+json">
    {
        "@context": "https://schema.org",
        "@type": ["Physician", "Person"],
        "@id": "/doctors/lahore/dermatologist/dr-ayesha-khan",
        "name": "Dr. Ayesha Khan",
        "medicalSpecialty": "Dermatologist",
        "hospitalAffiliation": [{"name": "Hameed Latif Hospital"}],
        "AvailableService": [{"name": "Acne Treatment"}, "Chemical Peel, Botox"],
        "address": {"addressLocality": "Lahore"}
    }
    </script>
    <script type="application/ld+json">{"@type": "Physician", "name": "Someone Else", "url": "https://www.marham.pk/doctors/lahore/dermatologist/dr-other"}</script>
</head>
<body>
    <h1>Dr. Ayesha Khan</h1>
    <div class="doctor-specialty">Dermatologist</div>
    <div class="doctor-qualifications">MBBS, FCPS</div>
    <div class="experience-box">Experience: 12 years</div>
    <div class="reviews-count">1250 reviews</div>
    <span class="satisfaction-score">98</span>
    <div class="consultation-fee">Rs. 2,500</div>
    <div class="hospital-name">Hameed Latif Hospital</div>
    <div class="clinic-name">Skin Clinic</div>
    <div class="available-days">Mon - Sat</div>
    <ul>
        <li class="service-item">Acne Treatment</li>
        <li class="service-item">Laser</li>
        <li class="service-item">IV</li>
    </ul>
    <div class="about-doctor">Dr. Ayesha has 12 years of experience.</div>
    <p>PMDC Verified</p>
    <button>Book Video Consultation</button>
</body>
</html>
`

func mustDocument(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := ParseDocument(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}
