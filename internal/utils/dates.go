package utils

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DateOngoing      = "Present"
	DateNeverExpires = "No Expiration"

	canonicalDateLayout = "2006-01-02"
)

type DateKind int

const (
	DateEmpty DateKind = iota
	DateSentinel
	DateNative
	DateRaw
)

// DateValue is the result of NormalizeDate. Its String form is canonical:
// normalizing it again yields the same value.
type DateValue struct {
	Kind DateKind
	Time time.Time
	Text string
}

func (d DateValue) String() string {
	switch d.Kind {
	case DateNative:
		return d.Time.Format(canonicalDateLayout)
	case DateSentinel, DateRaw:
		return d.Text
	default:
		return ""
	}
}

func (d DateValue) IsOngoing() bool { return d.Kind == DateSentinel && d.Text == DateOngoing }

var (
	ongoingRe = regexp.MustCompile(`(?i)^(present|current(ly)?|ongoing|now|today|to date|till date)$`)
	neverRe   = regexp.MustCompile(`(?i)^(never|never expires?|no expiration|no expiry|does not expire|doesn't expire|lifetime)$`)

	monthYearNumRe = regexp.MustCompile(`^(\d{1,2})\s*[/.-]\s*(\d{4})$`)
	yearMonthRe    = regexp.MustCompile(`^(\d{4})\s*[/-]\s*(\d{1,2})$`)
	yearRe         = regexp.MustCompile(`^(\d{4})$`)
	monthNameRe    = regexp.MustCompile(`^([A-Za-z]{3,9})\.?,?\s+(\d{4})$`)
)

var directLayouts = []string{
	canonicalDateLayout,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"01/02/2006",
}

var monthPrefixes = []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// NormalizeDate converts free-text date strings into a canonical form.
// Unrecognized text is preserved verbatim, never dropped.
func NormalizeDate(raw string) DateValue {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DateValue{Kind: DateEmpty}
	}
	folded := strings.Join(strings.Fields(s), " ")
	if ongoingRe.MatchString(folded) {
		return DateValue{Kind: DateSentinel, Text: DateOngoing}
	}
	if neverRe.MatchString(folded) {
		return DateValue{Kind: DateSentinel, Text: DateNeverExpires}
	}
	for _, layout := range directLayouts {
		if t, err := time.Parse(layout, folded); err == nil {
			return native(t.Year(), int(t.Month()), t.Day())
		}
	}
	if m := monthYearNumRe.FindStringSubmatch(folded); m != nil {
		if v, ok := yearMonth(m[2], m[1]); ok {
			return v
		}
	}
	if m := yearMonthRe.FindStringSubmatch(folded); m != nil {
		if v, ok := yearMonth(m[1], m[2]); ok {
			return v
		}
	}
	if m := yearRe.FindStringSubmatch(folded); m != nil {
		y, _ := strconv.Atoi(m[1])
		return native(y, 1, 1)
	}
	if m := monthNameRe.FindStringSubmatch(folded); m != nil {
		if month := monthFromName(m[1]); month > 0 {
			y, _ := strconv.Atoi(m[2])
			return native(y, month, 1)
		}
	}
	return DateValue{Kind: DateRaw, Text: s}
}

// CanonicalDate is a shorthand for NormalizeDate(raw).String().
func CanonicalDate(raw string) string {
	return NormalizeDate(raw).String()
}

func yearMonth(year, month string) (DateValue, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return DateValue{}, false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return DateValue{}, false
	}
	return native(y, m, 1), true
}

func monthFromName(name string) int {
	n := strings.ToLower(name)
	if n == "sept" {
		return 9
	}
	for i, p := range monthPrefixes {
		if strings.HasPrefix(n, p) && isMonthSpelling(n, i) {
			return i + 1
		}
	}
	return 0
}

var monthNames = []string{"january", "february", "march", "april", "may", "june", "july", "august", "september", "october", "november", "december"}

// accepts the 3-letter abbreviation or any prefix of the full month name
func isMonthSpelling(n string, idx int) bool {
	return strings.HasPrefix(monthNames[idx], n)
}

func native(y, m, d int) DateValue {
	return DateValue{Kind: DateNative, Time: time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)}
}
