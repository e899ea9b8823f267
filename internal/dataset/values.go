package dataset

import (
	"strings"
	"time"
)

var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
	"None": true,
	"#N/A": true,
}

// IsMissing reports whether a raw cell counts as absent.
func IsMissing(s string) bool {
	return missingTokens[strings.TrimSpace(s)]
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"1/2/2006",
	"1/2/2006 15:04",
	"01-02-06",
	"1/2/06",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseTime parses the timestamp layouts commonly found in spreadsheets and CSV exports.
// Values without a zone are taken as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 6 {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatTime renders a timestamp as ISO-8601.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05")
}
