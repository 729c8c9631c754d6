package engage

import (
	"strings"
	"time"
)

// QuietWindow is a time-of-day exclusion window. The zero value is never
// quiet.
//
// Endpoints are minutes of day. start == end means disabled; start > end
// wraps past midnight.
type QuietWindow struct {
	enabled bool
	start   int
	end     int
}

// ParseQuietWindow parses "HH:MM-HH:MM". A malformed or empty string yields
// a disabled window (fail-open) rather than an error.
func ParseQuietWindow(raw string) (QuietWindow, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return QuietWindow{}, true
	}
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return QuietWindow{}, false
	}
	start, err1 := parseMinuteOfDay(parts[0])
	end, err2 := parseMinuteOfDay(parts[1])
	if err1 != nil || err2 != nil {
		return QuietWindow{}, false
	}
	if start == end {
		return QuietWindow{}, true
	}
	return QuietWindow{enabled: true, start: start, end: end}, true
}

// Contains reports whether the local time of day of t falls inside the
// window. The start bound is inclusive, the end bound exclusive.
func (w QuietWindow) Contains(t time.Time) bool {
	if !w.enabled {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	if w.start < w.end {
		return w.start <= m && m < w.end
	}
	return m >= w.start || m < w.end
}

func parseMinuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
