package models

// Schema.org LocalBusiness document types. A BusinessRecord is immutable once
// built and is shared by value with every waiter of one fingerprint.

// PostalAddress follows the Schema.org PostalAddress vocabulary. Absent
// sub-fields are omitted from the JSON-LD output, never fabricated.
type PostalAddress struct {
	Type            string `json:"@type"`
	StreetAddress   string `json:"streetAddress,omitempty"`
	AddressLocality string `json:"addressLocality,omitempty"`
	AddressRegion   string `json:"addressRegion,omitempty"`
	PostalCode      string `json:"postalCode,omitempty"`
	AddressCountry  string `json:"addressCountry,omitempty"`
}

// GeoCoordinates carries the listing's position when it could be recovered
// from the page URL.
type GeoCoordinates struct {
	Type      string  `json:"@type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AggregateRating follows Schema.org AggregateRating. RatingValue and
// ReviewCount are pointers so a missing rating stays absent rather than zero.
type AggregateRating struct {
	Type        string   `json:"@type"`
	RatingValue *float64 `json:"ratingValue,omitempty"`
	ReviewCount *int     `json:"reviewCount,omitempty"`
	BestRating  float64  `json:"bestRating"`
}

// OpeningHoursSpec is one canonical weekly schedule record. Opens and Closes
// are 24-hour HH:MM strings.
type OpeningHoursSpec struct {
	Type      string `json:"@type"`
	DayOfWeek string `json:"dayOfWeek"`
	Opens     string `json:"opens"`
	Closes    string `json:"closes"`
}

// Offer names a service or cuisine the business advertises.
type Offer struct {
	Type string `json:"@type"`
	Name string `json:"name,omitempty"`
}

// BusinessRecord is the normalized LocalBusiness entity, serializable directly
// as a Schema.org JSON-LD document.
type BusinessRecord struct {
	Context      string             `json:"@context"`
	Type         string             `json:"@type"`
	Name         string             `json:"name"`
	Description  string             `json:"description,omitempty"`
	Address      *PostalAddress     `json:"address,omitempty"`
	Geo          *GeoCoordinates    `json:"geo,omitempty"`
	Telephone    string             `json:"telephone,omitempty"`
	URL          string             `json:"url,omitempty"`
	OpeningHours []OpeningHoursSpec `json:"openingHoursSpecification,omitempty"`
	Rating       *AggregateRating   `json:"aggregateRating,omitempty"`
	PriceRange   string             `json:"priceRange,omitempty"`
	MakesOffer   []Offer            `json:"makesOffer,omitempty"`
	Image        []string           `json:"image,omitempty"`
	SameAs       []string           `json:"sameAs,omitempty"`
}

// HoursEntry is one raw row scraped from the listing's hours table, before
// normalization.
type HoursEntry struct {
	DayLabel      string `json:"day_label"`
	TimeRangeText string `json:"time_range_text"`
	Closed        bool   `json:"closed"`
}

// RawFields is the best-effort field map produced by one successful render.
// Every field may be absent; consumers must check presence explicitly.
type RawFields struct {
	Name         string
	Rating       *float64
	ReviewCount  *int
	Address      string
	Phone        string
	Website      string
	Description  string
	BusinessType string
	PriceRange   string
	Hours        []HoursEntry
	Images       []string
	CurrentURL   string
	OriginalURL  string
}
