// Package schema turns raw extracted listing fields into a Schema.org
// LocalBusiness document and its embeddable JSON-LD script.
package schema

import (
	"bytes"
	"encoding/json"
	"strings"

	"localbiz-extractor/internal/common/errors"
	"localbiz-extractor/internal/models"
)

// Build assembles a LocalBusiness record from raw fields and the normalized
// weekly schedule. Name is the only required field; everything else is
// included only when present so the document never carries fabricated values.
func Build(raw models.RawFields, hours []models.OpeningHoursSpec) (models.BusinessRecord, error) {
	name := CleanText(raw.Name)
	if name == "" {
		return models.BusinessRecord{}, errors.New(errors.ErrCodeExtractionFailed,
			"listing has no business name")
	}

	rec := models.BusinessRecord{
		Context: "https://schema.org",
		Type:    "LocalBusiness",
		Name:    name,
	}

	if desc := CleanText(raw.Description); desc != "" {
		rec.Description = desc
	}

	if addr := strings.TrimSpace(raw.Address); addr != "" {
		rec.Address = ParseAddress(addr)
	}

	// The final page URL carries the place coordinates; the requested URL is
	// the fallback for short links that were never followed.
	if lat, lng, ok := CoordsFromURL(raw.CurrentURL); ok {
		rec.Geo = &models.GeoCoordinates{Type: "GeoCoordinates", Latitude: lat, Longitude: lng}
	} else if lat, lng, ok := CoordsFromURL(raw.OriginalURL); ok {
		rec.Geo = &models.GeoCoordinates{Type: "GeoCoordinates", Latitude: lat, Longitude: lng}
	}

	if phone := NormalizePhone(raw.Phone); phone != "" {
		rec.Telephone = phone
	}

	if raw.Website != "" {
		rec.URL = raw.Website
		rec.SameAs = []string{raw.Website}
	} else {
		rec.URL = raw.OriginalURL
	}

	rec.OpeningHours = hours

	if raw.Rating != nil || raw.ReviewCount != nil {
		rec.Rating = &models.AggregateRating{
			Type:        "AggregateRating",
			RatingValue: raw.Rating,
			ReviewCount: raw.ReviewCount,
			BestRating:  5,
		}
	}

	if raw.PriceRange != "" {
		rec.PriceRange = ParsePriceRange(raw.PriceRange)
	}

	if bt := CleanText(raw.BusinessType); bt != "" {
		rec.MakesOffer = []models.Offer{{Type: "Offer", Name: bt}}
	}

	if len(raw.Images) > 0 {
		rec.Image = raw.Images
	}

	return rec, nil
}

// RenderScript serializes a record as an indented JSON-LD document wrapped in
// a script tag ready for embedding in an HTML page.
func RenderScript(rec models.BusinessRecord) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return "", errors.Wrap(errors.ErrCodeExtractionFailed, "encoding JSON-LD", err)
	}

	body := strings.TrimRight(buf.String(), "\n")
	return "<script type=\"application/ld+json\">\n" + body + "\n</script>", nil
}
