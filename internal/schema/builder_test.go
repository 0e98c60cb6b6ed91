package schema

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localbiz-extractor/internal/models"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// ==========================
// Record Builder Tests
// ==========================

func TestBuild_FullRecord(t *testing.T) {
	raw := models.RawFields{
		Name:         "  Joe's Diner  ",
		Rating:       floatPtr(4.5),
		ReviewCount:  intPtr(1234),
		Address:      "123 Main St, Springfield, IL 62701, USA",
		Phone:        "(555) 123-4567",
		Website:      "https://joesdiner.example.com",
		Description:  "Classic American diner",
		BusinessType: "American restaurant",
		PriceRange:   "Price range: $$",
		Images:       []string{"https://img.example.com/1.jpg"},
		CurrentURL:   "https://www.google.com/maps/place/Joes/@39.7817,-89.6501,17z/data=!3d39.7817213!4d-89.6501481",
		OriginalURL:  "https://maps.app.goo.gl/abc",
	}
	hoursSpecs := []models.OpeningHoursSpec{
		{Type: "OpeningHoursSpecification", DayOfWeek: "Monday", Opens: "09:00", Closes: "17:00"},
	}

	rec, err := Build(raw, hoursSpecs)
	require.NoError(t, err)

	assert.Equal(t, "https://schema.org", rec.Context)
	assert.Equal(t, "LocalBusiness", rec.Type)
	assert.Equal(t, "Joe's Diner", rec.Name)
	assert.Equal(t, "Classic American diner", rec.Description)
	assert.Equal(t, "5551234567", rec.Telephone)
	assert.Equal(t, "https://joesdiner.example.com", rec.URL)
	assert.Equal(t, []string{"https://joesdiner.example.com"}, rec.SameAs)
	assert.Equal(t, "$$", rec.PriceRange)
	assert.Equal(t, hoursSpecs, rec.OpeningHours)

	require.NotNil(t, rec.Address)
	assert.Equal(t, "123 Main St", rec.Address.StreetAddress)
	assert.Equal(t, "Springfield", rec.Address.AddressLocality)
	assert.Equal(t, "IL", rec.Address.AddressRegion)
	assert.Equal(t, "62701", rec.Address.PostalCode)
	assert.Equal(t, "US", rec.Address.AddressCountry)

	require.NotNil(t, rec.Geo)
	assert.InDelta(t, 39.7817213, rec.Geo.Latitude, 1e-9)
	assert.InDelta(t, -89.6501481, rec.Geo.Longitude, 1e-9)

	require.NotNil(t, rec.Rating)
	assert.Equal(t, 4.5, *rec.Rating.RatingValue)
	assert.Equal(t, 1234, *rec.Rating.ReviewCount)
	assert.Equal(t, 5.0, rec.Rating.BestRating)

	require.Len(t, rec.MakesOffer, 1)
	assert.Equal(t, "American restaurant", rec.MakesOffer[0].Name)
}

func TestBuild_MissingNameFails(t *testing.T) {
	_, err := Build(models.RawFields{Address: "somewhere"}, nil)
	assert.Error(t, err)
}

func TestBuild_SparseRecordOmitsAbsentFields(t *testing.T) {
	rec, err := Build(models.RawFields{
		Name:        "Corner Shop",
		OriginalURL: "https://maps.app.goo.gl/xyz",
	}, nil)
	require.NoError(t, err)

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	doc := string(data)
	assert.NotContains(t, doc, "aggregateRating")
	assert.NotContains(t, doc, "geo")
	assert.NotContains(t, doc, "telephone")
	assert.NotContains(t, doc, "priceRange")
	assert.NotContains(t, doc, "openingHoursSpecification")
	assert.Contains(t, doc, `"url":"https://maps.app.goo.gl/xyz"`)
}

func TestRenderScript(t *testing.T) {
	rec, err := Build(models.RawFields{Name: "Corner Shop", OriginalURL: "https://maps.app.goo.gl/x"}, nil)
	require.NoError(t, err)

	script, err := RenderScript(rec)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "<script type=\"application/ld+json\">\n"))
	assert.True(t, strings.HasSuffix(script, "\n</script>"))

	body := strings.TrimSuffix(strings.TrimPrefix(script,
		"<script type=\"application/ld+json\">\n"), "\n</script>")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	assert.Equal(t, "https://schema.org", decoded["@context"])
	assert.Equal(t, "LocalBusiness", decoded["@type"])
	assert.Equal(t, "Corner Shop", decoded["name"])
}

// ==========================
// Field Parser Tests
// ==========================

func TestParseRating(t *testing.T) {
	tests := []struct {
		text string
		want *float64
	}{
		{"4.5 stars", floatPtr(4.5)},
		{"4.5", floatPtr(4.5)},
		{"5", floatPtr(5)},
		{"9.9 stars", nil},
		{"no rating", nil},
	}

	for _, tt := range tests {
		got := ParseRating(tt.text)
		if tt.want == nil {
			assert.Nil(t, got, "text %q", tt.text)
		} else {
			require.NotNil(t, got, "text %q", tt.text)
			assert.Equal(t, *tt.want, *got)
		}
	}
}

func TestParseReviewCount(t *testing.T) {
	got := ParseReviewCount("(1,234 reviews)")
	require.NotNil(t, got)
	assert.Equal(t, 1234, *got)

	assert.Nil(t, ParseReviewCount("no reviews yet"))
}

func TestParsePriceRange(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Price range: $$$", "$$$"},
		{"$$$$", "$$$$"},
		{"$", "$"},
		{"中等", "$$"},
		{"moderate", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParsePriceRange(tt.text), "text %q", tt.text)
	}
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "5551234567", NormalizePhone("(555) 123-4567"))
	assert.Equal(t, "+61398765432", NormalizePhone("+61 3 9876 5432"))
	assert.Equal(t, "", NormalizePhone("call us"))
}

func TestCoordsFromURL(t *testing.T) {
	lat, lng, ok := CoordsFromURL("https://www.google.com/maps/place/X/@-37.8770935,145.1652529,17z")
	require.True(t, ok)
	assert.InDelta(t, -37.8770935, lat, 1e-9)
	assert.InDelta(t, 145.1652529, lng, 1e-9)

	// Place-marker coordinates win over the viewport center.
	lat, lng, ok = CoordsFromURL("https://maps.google.com/maps/@1.0,2.0,15z/data=!3d-37.8770935!4d145.1652529")
	require.True(t, ok)
	assert.InDelta(t, -37.8770935, lat, 1e-9)
	assert.InDelta(t, 145.1652529, lng, 1e-9)

	_, _, ok = CoordsFromURL("https://maps.app.goo.gl/short")
	assert.False(t, ok)
}

// ==========================
// Address Parser Tests
// ==========================

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want models.PostalAddress
	}{
		{
			name: "US address",
			raw:  "123 Main St, New York, NY 10001, USA",
			want: models.PostalAddress{
				Type:            "PostalAddress",
				StreetAddress:   "123 Main St",
				AddressLocality: "New York",
				AddressRegion:   "NY",
				PostalCode:      "10001",
				AddressCountry:  "US",
			},
		},
		{
			name: "AU address",
			raw:  "23 Smith St, Warragul VIC 3820, Australia",
			want: models.PostalAddress{
				Type:            "PostalAddress",
				StreetAddress:   "23 Smith St",
				AddressLocality: "Warragul",
				AddressRegion:   "VIC",
				PostalCode:      "3820",
				AddressCountry:  "AU",
			},
		},
		{
			name: "postal code fallback",
			raw:  "5 Rue de Rivoli, Paris 75001, France",
			want: models.PostalAddress{
				Type:            "PostalAddress",
				StreetAddress:   "5 Rue de Rivoli",
				AddressLocality: "Paris",
				PostalCode:      "75001",
				AddressCountry:  "FR",
			},
		},
		{
			name: "city only",
			raw:  "Main Square, Springfield",
			want: models.PostalAddress{
				Type:            "PostalAddress",
				StreetAddress:   "Main Square",
				AddressLocality: "Springfield",
			},
		},
		{
			name: "empty",
			raw:  "   ",
			want: models.PostalAddress{Type: "PostalAddress"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAddress(tt.raw)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Joe's Diner", CleanText("  Joe's Diner\x00 ★"))
	assert.Equal(t, "Cafe (Main St.)", CleanText("· Cafe (Main St.)"))
	assert.Equal(t, "", CleanText("   "))
}
