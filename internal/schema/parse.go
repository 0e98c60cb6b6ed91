package schema

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	ratingRe  = regexp.MustCompile(`(\d+\.?\d*)`)
	reviewRe  = regexp.MustCompile(`([\d,]+)`)
	phoneRe   = regexp.MustCompile(`[^\d+]`)
	atCoordRe = regexp.MustCompile(`@(-?\d+\.\d+),(-?\d+\.\d+)`)
	pbCoordRe = regexp.MustCompile(`!3d(-?\d+\.\d+)!4d(-?\d+\.\d+)`)
)

// priceTiers is ordered longest symbol first so "$$$" is not matched as "$".
var priceTiers = []struct {
	pattern string
	tier    string
}{
	{"$$$$", "$$$$"},
	{"$$$", "$$$"},
	{"$$", "$$"},
	{"$", "$"},
	{"很贵", "$$$$"},
	{"昂贵", "$$$"},
	{"中等", "$$"},
	{"便宜", "$"},
}

// ParseRating pulls a 0-5 star value out of text like "4.5 stars". Values
// outside the scale are rejected.
func ParseRating(text string) *float64 {
	m := ratingRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 || v > 5 {
		return nil
	}
	return &v
}

// ParseReviewCount pulls a review total out of text like "(1,234 reviews)".
func ParseReviewCount(text string) *int {
	m := reviewRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// ParsePriceRange maps price text to a dollar-sign tier. Empty result means
// the text carried no recognizable price signal.
func ParsePriceRange(text string) string {
	for _, p := range priceTiers {
		if strings.Contains(text, p.pattern) {
			return p.tier
		}
	}
	return ""
}

// NormalizePhone strips formatting from a phone number, keeping only digits
// and a leading plus sign.
func NormalizePhone(text string) string {
	cleaned := phoneRe.ReplaceAllString(text, "")
	if i := strings.LastIndex(cleaned, "+"); i > 0 {
		cleaned = strings.ReplaceAll(cleaned, "+", "")
	}
	return cleaned
}

// CoordsFromURL recovers latitude and longitude from a maps URL, trying the
// "@lat,lng" viewport form first and the "!3d..!4d.." place-marker form
// second. The marker form points at the listing itself, so it wins when both
// are present.
func CoordsFromURL(url string) (lat, lng float64, ok bool) {
	if m := pbCoordRe.FindStringSubmatch(url); m != nil {
		return parsePair(m[1], m[2])
	}
	if m := atCoordRe.FindStringSubmatch(url); m != nil {
		return parsePair(m[1], m[2])
	}
	return 0, 0, false
}

func parsePair(latText, lngText string) (float64, float64, bool) {
	lat, err1 := strconv.ParseFloat(latText, 64)
	lng, err2 := strconv.ParseFloat(lngText, 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}
