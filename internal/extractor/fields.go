// Package extractor renders business listing pages and pulls structured
// fields out of the rendered DOM.
package extractor

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"localbiz-extractor/internal/models"
	"localbiz-extractor/internal/schema"
)

// Listing pages change their generated class names frequently, so every field
// is probed through an ordered selector list and the first non-empty match
// wins. A field with no match stays empty; only a missing name is fatal and
// that decision belongs to the record builder.
var (
	nameSelectors = []string{
		`h1[data-attrid="title"]`,
		`[role="main"] h1`,
		`h1`,
	}
	ratingSelectors = []string{
		`.F7nice span[aria-hidden="true"]`,
		`span[aria-label*="stars"]`,
		`[role="main"] span[aria-label*="星"]`,
	}
	reviewSelectors = []string{
		`[aria-label*="reviews"]`,
		`[aria-label*="条评价"]`,
	}
	addressSelectors = []string{
		`button[data-item-id="address"]`,
		`button[aria-label*="Address"]`,
		`button[aria-label*="地址"]`,
	}
	phoneSelectors = []string{
		`a[href^="tel:"]`,
		`button[data-item-id^="phone"]`,
	}
	websiteSelectors = []string{
		`a[data-item-id="authority"]`,
		`a[aria-label*="Website"]`,
	}
	typeSelectors = []string{
		`button[jsaction*="category"]`,
		`.DkEaL`,
	}
	priceSelectors = []string{
		`span[aria-label*="Price"]`,
		`span[aria-label*="价格"]`,
	}
	hoursTableSelectors = []string{
		`.t39EBf table`,
		`table.eK4R0e`,
		`[data-attrid="kc:/hours"] table`,
	}
)

// notFoundMarkers appear on the page shown for a dead or mistyped listing
// link.
var notFoundMarkers = []string{
	"can't find",
	"couldn't find",
	"找不到",
}

// Parser extracts business fields from rendered listing HTML.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

// Parse decodes the page to UTF-8 and pulls out every recognizable business
// field. currentURL is the final page location after redirects, originalURL
// the address the caller asked for.
func (p *Parser) Parse(r io.Reader, contentType, currentURL, originalURL string) (models.RawFields, error) {
	buf := new(bytes.Buffer)
	_, _ = io.Copy(buf, r)
	data := buf.Bytes()

	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if !utf8.Valid(data) {
			return models.RawFields{}, err
		}
		utf8data = data
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8data))
	if err != nil {
		return models.RawFields{}, err
	}

	raw := models.RawFields{
		CurrentURL:  currentURL,
		OriginalURL: originalURL,
	}

	raw.Name = firstText(doc, nameSelectors)

	if text := firstText(doc, ratingSelectors); text != "" {
		raw.Rating = schema.ParseRating(text)
	} else if label := firstAttr(doc, ratingSelectors, "aria-label"); label != "" {
		raw.Rating = schema.ParseRating(label)
	}

	if text := firstMatch(doc, reviewSelectors, "aria-label"); text != "" {
		raw.ReviewCount = schema.ParseReviewCount(text)
	}

	if sel := firstSelection(doc, addressSelectors); sel != nil {
		raw.Address = addressFromSelection(sel)
	}

	raw.Phone = phoneFrom(doc)
	raw.Website = websiteFrom(doc)
	raw.BusinessType = firstText(doc, typeSelectors)
	raw.PriceRange = firstMatch(doc, priceSelectors, "aria-label")

	raw.Description = strings.TrimSpace(
		doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	if raw.Description == "" {
		raw.Description = strings.TrimSpace(
			doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	}

	raw.Hours = hoursFrom(doc)
	raw.Images = imagesFrom(doc)

	return raw, nil
}

// IsNotFound reports whether the rendered page is the listing-not-found page
// rather than a business profile.
func IsNotFound(r io.Reader) bool {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return false
	}
	if doc.Find("h1").Length() > 0 && strings.TrimSpace(doc.Find("h1").First().Text()) != "" {
		return false
	}

	body := strings.ToLower(doc.Find("body").Text())
	for _, marker := range notFoundMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		var found string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if text := strings.TrimSpace(s.Text()); text != "" {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func firstAttr(doc *goquery.Document, selectors []string, attr string) string {
	for _, selector := range selectors {
		if v := strings.TrimSpace(doc.Find(selector).First().AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return ""
}

// firstMatch prefers the element text, falling back to the attribute that
// the selector matched on.
func firstMatch(doc *goquery.Document, selectors []string, attr string) string {
	if text := firstText(doc, selectors); text != "" {
		return text
	}
	return firstAttr(doc, selectors, attr)
}

func firstSelection(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, selector := range selectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

// addressFromSelection prefers the aria-label ("Address: 123 Main St, ...")
// because the visible text often carries an icon glyph prefix.
func addressFromSelection(sel *goquery.Selection) string {
	if label := sel.AttrOr("aria-label", ""); label != "" {
		for _, prefix := range []string{"Address:", "地址:", "地址："} {
			if strings.HasPrefix(label, prefix) {
				return strings.TrimSpace(strings.TrimPrefix(label, prefix))
			}
		}
		return strings.TrimSpace(label)
	}
	return strings.TrimSpace(sel.Text())
}

func phoneFrom(doc *goquery.Document) string {
	if href := doc.Find(`a[href^="tel:"]`).First().AttrOr("href", ""); href != "" {
		return strings.TrimPrefix(href, "tel:")
	}
	for _, selector := range phoneSelectors[1:] {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		// data-item-id is "phone:tel:+15551234567" on listing pages.
		if id := sel.AttrOr("data-item-id", ""); strings.Contains(id, "tel:") {
			return id[strings.Index(id, "tel:")+len("tel:"):]
		}
		if text := strings.TrimSpace(sel.Text()); text != "" {
			return text
		}
	}
	return ""
}

func websiteFrom(doc *goquery.Document) string {
	for _, selector := range websiteSelectors {
		if href := doc.Find(selector).First().AttrOr("href", ""); href != "" {
			return href
		}
	}
	return ""
}

// hoursFrom walks the weekly hours table. Each row is one day; the second
// cell holds the time range text or a closed marker.
func hoursFrom(doc *goquery.Document) []models.HoursEntry {
	var entries []models.HoursEntry

	table := firstSelection(doc, hoursTableSelectors)
	if table == nil {
		return nil
	}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		day := strings.TrimSpace(cells.Eq(0).Find("div").First().Text())
		if day == "" {
			day = strings.TrimSpace(cells.Eq(0).Text())
		}
		timeText := strings.TrimSpace(cells.Eq(1).Text())
		if day == "" || timeText == "" {
			return
		}

		entries = append(entries, models.HoursEntry{
			DayLabel:      day,
			TimeRangeText: timeText,
		})
	})

	return entries
}

func imagesFrom(doc *goquery.Document) []string {
	var images []string
	seen := make(map[string]struct{})

	add := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" || !strings.HasPrefix(src, "http") {
			return
		}
		if _, dup := seen[src]; dup {
			return
		}
		seen[src] = struct{}{}
		images = append(images, src)
	}

	add(doc.Find(`meta[property="og:image"]`).AttrOr("content", ""))
	doc.Find(`button[jsaction*="heroHeaderImage"] img`).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("src", ""))
	})

	if len(images) > 5 {
		images = images[:5]
	}
	return images
}
