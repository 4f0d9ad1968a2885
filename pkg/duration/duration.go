// Package duration provides human-readable duration parsing and
// formatting. It extends Go's time.ParseDuration with day and week
// units and spelled-out forms like "30 seconds" or "5 minutes".
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// unitValues maps unit names to their durations. Day and week use
// civil approximations; this package is for configuration values, not
// calendar math.
var unitValues = map[string]time.Duration{
	"ns": time.Nanosecond, "nanosecond": time.Nanosecond,
	"us": time.Microsecond, "microsecond": time.Microsecond,
	"ms": time.Millisecond, "millisecond": time.Millisecond,
	"s": time.Second, "sec": time.Second, "second": time.Second,
	"m": time.Minute, "min": time.Minute, "minute": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hour": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "wk": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour,
}

var segmentRe = regexp.MustCompile(`(?i)([0-9]*\.?[0-9]+)\s*([a-zµ]+)`)

// Parse converts a human-readable duration string to a time.Duration.
// Standard Go forms ("90s", "1h30m") parse as-is; spelled-out forms
// ("30 seconds", "2 days") and mixed forms ("1w2d") are also accepted.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	// Fast path: standard Go syntax.
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	matches := segmentRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	// Reject strings with content the segment matcher did not consume.
	matched := 0
	for _, m := range matches {
		matched += len(strings.ReplaceAll(m[0], " ", ""))
	}
	if matched != len(strings.ReplaceAll(s, " ", "")) {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	var total time.Duration
	for _, m := range matches {
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		unit := strings.ToLower(strings.TrimSuffix(m[2], "s"))
		if unit == "" {
			unit = "s"
		}
		base, ok := unitValues[unit]
		if !ok {
			// "s" suffix already stripped; try the raw unit too.
			base, ok = unitValues[strings.ToLower(m[2])]
			if !ok {
				return 0, fmt.Errorf("invalid duration unit %q in %q", m[2], s)
			}
		}
		total += time.Duration(value * float64(base))
	}
	return total, nil
}

// Format renders a duration compactly using the largest fitting units.
// Example: Format(26*time.Hour) => "1d2h".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	if d < time.Second {
		return d.String()
	}

	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}

	units := []struct {
		name string
		dur  time.Duration
	}{
		{"w", 7 * 24 * time.Hour},
		{"d", 24 * time.Hour},
		{"h", time.Hour},
		{"m", time.Minute},
		{"s", time.Second},
	}
	for _, u := range units {
		if d >= u.dur {
			n := d / u.dur
			d -= n * u.dur
			fmt.Fprintf(&b, "%d%s", n, u.name)
		}
	}
	return b.String()
}
