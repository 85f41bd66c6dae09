package timeago

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Unit is a time unit recognized in a relative-time expression
type Unit int

const (
	None Unit = iota
	Second
	Minute
	Hour
	Day
	Week
	Month
	Year
)

// recentOffset is applied to "just now" and "a few seconds ago"
const recentOffset = 5 * time.Second

// minUnix is the earliest Unix second a time.Time can represent
const minUnix = math.MinInt64 + 62135596800

// unitRule binds a unit to its stem and magnitude pattern
type unitRule struct {
	unit    Unit
	stem    string
	pattern *regexp.Regexp
	seconds int64
}

// rules are checked in order; the first stem found wins
var rules = []unitRule{
	{Second, "second", regexp.MustCompile(`(\d+)\s*second`), 1},
	{Minute, "minute", regexp.MustCompile(`(\d+)\s*minute`), 60},
	{Hour, "hour", regexp.MustCompile(`(\d+)\s*hour`), 3600},
	{Day, "day", regexp.MustCompile(`(\d+)\s*day`), 86400},
	{Week, "week", regexp.MustCompile(`(\d+)\s*week`), 604800},
	// 30 and 365 day approximations, not calendar arithmetic
	{Month, "month", regexp.MustCompile(`(\d+)\s*month`), 2592000},
	{Year, "year", regexp.MustCompile(`(\d+)\s*year`), 31536000},
}

var minutesAgoPattern = regexp.MustCompile(`(\d+)\s*minutes?\s*ago`)

// String returns the stem of the unit, or "none"
func (u Unit) String() string {
	for _, r := range rules {
		if r.unit == u {
			return r.stem
		}
	}
	return "none"
}

// Duration returns the length of one unit. None has zero length.
func (u Unit) Duration() time.Duration {
	for _, r := range rules {
		if r.unit == u {
			return time.Duration(r.seconds) * time.Second
		}
	}
	return 0
}

// ParsedOffset is the unit and magnitude read from an expression
type ParsedOffset struct {
	Unit      Unit
	Magnitude int64
}

// Seconds returns the offset length in whole seconds.
// ok is false when the length does not fit in an int64.
func (p ParsedOffset) Seconds() (secs int64, ok bool) {
	unit := int64(p.Unit.Duration() / time.Second)
	if unit == 0 || p.Magnitude <= 0 {
		return 0, true
	}
	if p.Magnitude > math.MaxInt64/unit {
		return 0, false
	}
	return p.Magnitude * unit, true
}

// Parse reads the first recognized unit and its leading integer from expr.
// The magnitude defaults to 1 when no digits precede the unit ("an hour ago").
func Parse(expr string) ParsedOffset {
	s := strings.ToLower(strings.TrimSpace(expr))

	for _, r := range rules {
		if !strings.Contains(s, r.stem) {
			continue
		}
		magnitude := int64(1)
		if m := r.pattern.FindStringSubmatch(s); m != nil {
			if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				magnitude = n
			} else {
				magnitude = math.MaxInt64
			}
		}
		return ParsedOffset{Unit: r.unit, Magnitude: magnitude}
	}

	return ParsedOffset{Unit: None, Magnitude: 1}
}

// Normalize resolves a relative-time expression such as "5 minutes ago" against ref.
// Unrecognized input resolves to ref itself.
func Normalize(expr string, ref time.Time) time.Time {
	s := strings.ToLower(strings.TrimSpace(expr))
	if strings.Contains(s, "just now") || strings.Contains(s, "few seconds") {
		return ref.Add(-recentOffset)
	}

	offset := Parse(s)
	if offset.Unit == None {
		return ref
	}

	// Offsets past the range of time.Duration are subtracted in seconds.
	// Only results before the earliest representable instant are clamped.
	secs, ok := offset.Seconds()
	if !ok || ref.Unix() < minUnix+secs {
		return time.Unix(minUnix, 0).In(ref.Location())
	}
	return time.Unix(ref.Unix()-secs, int64(ref.Nanosecond())).In(ref.Location())
}

// ParseMinutes reads "<n> minute(s) ago" and reports whether expr has that exact form.
// Word magnitudes ("a minute ago") and abbreviations ("5 mins ago") are not accepted.
func ParseMinutes(expr string) (int, bool) {
	m := minutesAgoPattern.FindStringSubmatch(strings.ToLower(expr))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
