package domain

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// NormalizeError reports an advisory that cannot become an observation
// because a mandatory field is missing or unusable. It is fatal for that
// single entry only; callers skip the entry and continue.
type NormalizeError struct {
	Field string
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("advisory missing required field %q", e.Field)
}

var (
	// digitsRe extracts the numeric run from unit-bearing text like "75 mph".
	digitsRe = regexp.MustCompile(`-?\d+`)

	// htmlTagRe strips markup from report descriptions, which NHC publishes
	// as HTML embedded in the RSS description element.
	htmlTagRe = regexp.MustCompile(`<[^>]+>`)

	// seasonRe matches the trailing four-digit year of an ATCF identifier,
	// e.g. "EP022025" → "2025".
	seasonRe = regexp.MustCompile(`(\d{4})$`)

	// localAdvisoryRe matches the NHC local advisory timestamp form,
	// e.g. "1100 AM EDT Sat Jun 10" or "500 PM AST Tue Sep 02 2025".
	localAdvisoryRe = regexp.MustCompile(
		`^(\d{1,2}):?(\d{2})\s+(AM|PM)\s+([A-Z]{2,4})\s+[A-Za-z]{3}\s+([A-Za-z]{3})\s+(\d{1,2})(?:\s+(\d{4}))?$`)
)

// zoneOffsets maps the timezone abbreviations NHC publishes in to fixed UTC
// offsets. Advisory zones do not shift mid-advisory, so fixed offsets are
// sufficient for normalization.
var zoneOffsets = map[string]int{
	"UTC": 0, "GMT": 0, "Z": 0,
	"AST": -4 * 3600,
	"EDT": -4 * 3600, "EST": -5 * 3600,
	"CDT": -5 * 3600, "CST": -6 * 3600,
	"MDT": -6 * 3600, "MST": -7 * 3600,
	"PDT": -7 * 3600, "PST": -8 * 3600,
	"HST": -10 * 3600,
}

// NormalizeAdvisory maps a raw feed entry to a canonical Observation for the
// owning region. Storm identifier and report timestamp are mandatory; every
// other field degrades to nil or UNKNOWN rather than failing.
func NormalizeAdvisory(raw RawAdvisory, region Region) (Observation, error) {
	stormID := strings.TrimSpace(raw[FieldATCF])
	if stormID == "" {
		return Observation{}, &NormalizeError{Field: FieldATCF}
	}

	reportTime, ok := ParseReportTime(raw[FieldDatetime])
	if !ok {
		// Fall back to the item publication date before giving up.
		reportTime, ok = ParseReportTime(raw[FieldPubDate])
	}
	if !ok {
		return Observation{}, &NormalizeError{Field: FieldDatetime}
	}

	lat, lon := ParseCoordinates(raw[FieldCenter])
	wallet := strings.TrimSpace(raw[FieldWallet])

	obs := Observation{
		StormID:    stormID,
		RegionID:   region.ID,
		Season:     DeriveSeason(stormID, reportTime),
		Name:       strings.TrimSpace(raw[FieldName]),
		StormType:  ClassifyStormType(raw[FieldType], raw[FieldHeadline], raw[FieldTitle]),
		Latitude:   lat,
		Longitude:  lon,
		Movement:   strings.TrimSpace(raw[FieldMovement]),
		WindSpeed:  parseUnitValue(raw[FieldWind]),
		Pressure:   parseUnitValue(raw[FieldPressure]),
		Headline:   strings.TrimSpace(raw[FieldHeadline]),
		Report:     stripHTML(raw[FieldDescription]),
		ReportLink: strings.TrimSpace(raw[FieldLink]),
		ReportTime: reportTime,
		Wallet:     wallet,
		WalletURL:  walletFeedURL(region.FeedURL, wallet),
	}
	return obs, nil
}

// ClassifyStormType extracts a storm classification token from free text,
// checking each candidate string in order. POST-TROPICAL is tested before the
// others because post-tropical headlines often still name the former
// hurricane ("Post-Tropical Cyclone Barbara, formerly Hurricane Barbara").
func ClassifyStormType(texts ...string) StormType {
	ordered := []StormType{
		TypePostTropical,
		TypeTropicalStorm,
		TypeTropicalDepression,
		TypeHurricane,
	}
	for _, text := range texts {
		upper := strings.ToUpper(text)
		if upper == "" {
			continue
		}
		for _, st := range ordered {
			if strings.Contains(upper, string(st)) {
				return st
			}
		}
	}
	return TypeUnknown
}

// ParseCoordinates parses an NHC center string into decimal degrees.
// Accepts "14.2, -120.9", "14.2N, 120.9W", and degree-symbol variants.
// Returns nil, nil when the string cannot be parsed.
func ParseCoordinates(center string) (*float64, *float64) {
	parts := strings.SplitN(center, ",", 2)
	if len(parts) != 2 {
		return nil, nil
	}

	lat, okLat := parseDegrees(parts[0], "S")
	lon, okLon := parseDegrees(parts[1], "W")
	if !okLat || !okLon {
		return nil, nil
	}
	return &lat, &lon
}

// parseDegrees parses one coordinate component, stripping degree symbols and
// applying the hemisphere suffix. negSuffix is the hemisphere that negates
// the value ("S" for latitude, "W" for longitude).
func parseDegrees(s, negSuffix string) (float64, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "\u00b0", "")

	sign := 1.0
	switch {
	case strings.HasSuffix(s, negSuffix):
		sign = -1.0
		s = strings.TrimSpace(strings.TrimSuffix(s, negSuffix))
	case strings.HasSuffix(s, "N"), strings.HasSuffix(s, "E"):
		s = strings.TrimSpace(s[:len(s)-1])
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return sign * v, true
}

// parseUnitValue extracts an integer from unit-bearing feed text like
// "75 mph" or "995 mb". Text without any digits, including the "UNK"
// sentinel, yields nil.
func parseUnitValue(s string) *int {
	match := digitsRe.FindString(s)
	if match == "" {
		return nil
	}
	v, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &v
}

// reportTimeLayouts are the absolute formats tried before the NHC local
// advisory form. Zone-less layouts are interpreted as GMT, the zone NHC
// publishes in.
var reportTimeLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseReportTime parses an advisory timestamp into a UTC instant. The
// second return reports whether any supported format matched.
func ParseReportTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range reportTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	return parseLocalAdvisoryTime(s)
}

// parseLocalAdvisoryTime handles "1100 AM EDT Sat Jun 10", the local-zone
// form used inside Cyclone datetime elements. The year defaults to the
// current year when absent, matching how the feeds omit it in-season.
func parseLocalAdvisoryTime(s string) (time.Time, bool) {
	m := localAdvisoryRe.FindStringSubmatch(strings.ToUpper(s))
	if m == nil {
		return time.Time{}, false
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if m[3] == "PM" && hour != 12 {
		hour += 12
	}
	if m[3] == "AM" && hour == 12 {
		hour = 0
	}

	offset, ok := zoneOffsets[m[4]]
	if !ok {
		return time.Time{}, false
	}

	month, ok := monthByAbbrev(m[5])
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[6])

	year := clock.Now().UTC().Year()
	if m[7] != "" {
		year, _ = strconv.Atoi(m[7])
	}

	loc := time.FixedZone(m[4], offset)
	return time.Date(year, month, day, hour, minute, 0, 0, loc).UTC(), true
}

var monthAbbrevs = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

func monthByAbbrev(s string) (time.Month, bool) {
	m, ok := monthAbbrevs[strings.ToUpper(s)]
	return m, ok
}

// DeriveSeason returns the storm's season year, preferring the trailing four
// digits of the ATCF identifier and falling back to the report year.
func DeriveSeason(stormID string, reportTime time.Time) int {
	if m := seasonRe.FindString(stormID); m != "" {
		if year, err := strconv.Atoi(m); err == nil && year >= 1900 && year <= 2200 {
			return year
		}
	}
	return reportTime.UTC().Year()
}

// walletFeedURL derives the wallet-specific feed URL on the same host as the
// region feed, e.g. wallet "EP2" on nhc.noaa.gov → .../nhc_ep2.xml.
func walletFeedURL(regionFeedURL, wallet string) string {
	if wallet == "" {
		return ""
	}
	u, err := url.Parse(regionFeedURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s://%s/nhc_%s.xml", u.Scheme, u.Host, strings.ToLower(wallet))
}

// stripHTML reduces an HTML report description to plain text.
func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
