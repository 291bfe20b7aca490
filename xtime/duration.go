// Package xtime parses and formats durations with calendar-like units.
package xtime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Approximate calendar units. A month is 30 days and a year is 365 days.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

type unit struct {
	name string
	dur  time.Duration
}

// Units ordered by size, largest first. Go's own units are accepted as well,
// so any value produced by time.Duration.String can be parsed.
var parseUnits = []unit{
	{"Y", Year}, {"y", Year},
	{"M", Month},
	{"w", Week}, {"W", Week},
	{"d", Day}, {"D", Day},
	{"h", time.Hour},
	{"ms", time.Millisecond},
	{"m", time.Minute},
	{"s", time.Second},
	{"µs", time.Microsecond}, {"us", time.Microsecond},
	{"ns", time.Nanosecond},
}

var formatUnits = []unit{
	{"Y", Year}, {"M", Month}, {"w", Week}, {"d", Day}, {"h", time.Hour},
	{"m", time.Minute}, {"s", time.Second}, {"ms", time.Millisecond},
	{"µs", time.Microsecond}, {"ns", time.Nanosecond},
}

// ParseDuration parses a duration string, e.g. "10d", "-1.5w", "3Y4M5d" or
// "1h30m". In addition to the units accepted by time.ParseDuration, it
// supports "d"/"D" (days), "w"/"W" (weeks), "M" (30-day months) and "y"/"Y"
// (365-day years).
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if s == "0" {
		return 0, nil
	}
	if s == "" {
		return 0, fmt.Errorf("invalid duration '%s'", orig)
	}

	var total time.Duration
	for s != "" {
		i := 0
		for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
			i++
		}
		if i == 0 {
			return 0, fmt.Errorf("invalid duration '%s'", orig)
		}
		num, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration '%s'", orig)
		}
		s = s[i:]

		unit, ok := matchUnit(s)
		if !ok {
			return 0, fmt.Errorf("missing or unknown unit in duration '%s'", orig)
		}
		s = s[len(unit.name):]
		total += time.Duration(num * float64(unit.dur))
	}

	if neg {
		total = -total
	}

	return total, nil
}

func matchUnit(s string) (unit, bool) {
	for _, u := range parseUnits {
		if strings.HasPrefix(s, u.name) {
			return u, true
		}
	}
	return unit{}, false
}

// FormatDuration formats a duration into a string with friendly units, e.g.
// "10d", "-1w2d" or "3Y4M5d". It uses the same units as ParseDuration. The
// round parameter specifies the smallest unit to include.
func FormatDuration(d time.Duration, round time.Duration) string {
	if round > 0 {
		d = d.Round(round)
	}
	if d == 0 {
		return "0s"
	}

	neg := d < 0
	if neg {
		d = -d
	}

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	for _, u := range formatUnits {
		if u.dur < round {
			break
		}
		if n := d / u.dur; n > 0 {
			fmt.Fprintf(&sb, "%d%s", n, u.name)
			d -= n * u.dur
		}
	}

	return sb.String()
}

// FormatSince returns a short description of the time elapsed between t and
// now, keeping the two largest units, e.g. "3d4h ago" or "just now".
func FormatSince(now, t time.Time) string {
	d := now.Sub(t)
	if d < time.Second && d > -time.Second {
		return "just now"
	}

	suffix := " ago"
	if d < 0 {
		d = -d
		suffix = " from now"
	}

	round := time.Second
	for _, u := range []time.Duration{Year, Month, Week, Day, time.Hour, time.Minute} {
		if d >= u {
			round = u
			break
		}
	}
	// Keep one unit below the largest one.
	switch round {
	case Year:
		round = Month
	case Month:
		round = Day
	case Week:
		round = Day
	case Day:
		round = time.Hour
	case time.Hour:
		round = time.Minute
	case time.Minute:
		round = time.Second
	}

	return FormatDuration(d.Truncate(round), round) + suffix
}
