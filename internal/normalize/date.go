package normalize

import (
	netmail "net/mail"
	"regexp"
	"strings"
	"time"
)

// maxOffset is the largest zone offset considered valid. Dates carrying
// anything larger are taken as UTC.
const maxOffset = 13 * time.Hour

var unixfromDateRE = regexp.MustCompile(`^\s*(?:From\s+)?\S+@\S+ (.*)$`)

var dateLayouts = []string{
	"Mon Jan _2 15:04:05 2006",
	"Mon Jan _2 15:04:05 MST 2006",
	"Mon Jan _2 15:04:05 -0700 2006",
	"Mon, _2 Jan 2006 15:04:05 -0700",
	"Mon, _2 Jan 2006 15:04:05 MST",
	"_2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// parseDate parses a header date, trying the RFC 5322 grammar first and a
// few formats seen in old archives after that. Dates without a zone are
// taken as UTC.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(unfold(s))
	if s == "" {
		return time.Time{}, false
	}
	if t, err := netmail.ParseDate(s); err == nil {
		return t, true
	}
	// Drop a trailing zone comment such as "(CET)".
	if i := strings.LastIndex(s, " ("); i > 0 && strings.HasSuffix(s, ")") {
		if t, err := netmail.ParseDate(s[:i]); err == nil {
			return t, true
		}
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// splitDate returns the UTC instant of t and its zone offset in minutes.
func splitDate(t time.Time) (time.Time, int) {
	_, offset := t.Zone()
	if d := time.Duration(offset) * time.Second; d > maxOffset || d < -maxOffset {
		offset = 0
	}
	return t.UTC(), offset / 60
}

// envelopeDate extracts the delivery date from an mbox "From " line.
func envelopeDate(unixfrom string) *time.Time {
	m := unixfromDateRE.FindStringSubmatch(unixfrom)
	if m == nil {
		return nil
	}
	t, ok := parseDate(m[1])
	if !ok {
		return nil
	}
	t = t.UTC()
	return &t
}
