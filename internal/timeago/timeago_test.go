package timeago

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var ref = time.Date(2024, 3, 10, 14, 30, 45, 0, time.UTC)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{"just now", "just now", ref.Add(-5 * time.Second)},
		{"few seconds", "a few seconds ago", ref.Add(-5 * time.Second)},
		{"seconds", "30 seconds ago", ref.Add(-30 * time.Second)},
		{"a second", "a second ago", ref.Add(-time.Second)},
		{"minutes", "5 minutes ago", ref.Add(-300 * time.Second)},
		{"a minute", "a minute ago", ref.Add(-time.Minute)},
		{"an hour", "an hour ago", ref.Add(-3600 * time.Second)},
		{"hours", "3 hours ago", ref.Add(-3 * time.Hour)},
		{"days", "2 days ago", ref.Add(-172800 * time.Second)},
		{"weeks", "2 weeks ago", ref.Add(-2 * 604800 * time.Second)},
		{"month is 30 days", "1 month ago", ref.Add(-30 * 24 * time.Hour)},
		{"year is 365 days", "a year ago", ref.Add(-365 * 24 * time.Hour)},
		{"no space", "7minutes ago", ref.Add(-7 * time.Minute)},
		{"gibberish", "gibberish", ref},
		{"empty", "", ref},
		{"upper case", "5 MINUTES AGO", ref.Add(-5 * time.Minute)},
		{"padded", "   10 minutes ago  ", ref.Add(-10 * time.Minute)},
		{"zero", "0 minutes ago", ref},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.expr, ref))
		})
	}
}

func TestNormalizeUnitPriority(t *testing.T) {
	// "hour" is checked before "day", so the day part is ignored
	assert.Equal(t, ref.Add(-2*time.Hour), Normalize("1 day 2 hours ago", ref))
	// a minute stem wins over any later unit in the string
	assert.Equal(t, ref.Add(-2*time.Minute), Normalize("2 minutes and 3 days ago", ref))
	// the digits must sit right before the stem; otherwise magnitude is 1
	assert.Equal(t, ref.Add(-time.Hour), Normalize("about 3 or so hours ago", ref))
}

func TestNormalizeIsPure(t *testing.T) {
	first := Normalize("4 hours ago", ref)
	second := Normalize("4 hours ago", ref)
	assert.Equal(t, first, second)
	assert.Equal(t, Normalize("5 MINUTES AGO", ref), Normalize("5 minutes ago", ref))
}

func TestNormalizeLongOffsets(t *testing.T) {
	tests := []struct {
		expr string
		want time.Time
	}{
		{"300 years ago", time.Date(1724, 5, 22, 14, 30, 45, 0, time.UTC)},
		{"1000 years ago", time.Date(1024, 11, 8, 14, 30, 45, 0, time.UTC)},
		{"200000 days ago", time.Date(1476, 8, 10, 14, 30, 45, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got := Normalize(tt.expr, ref)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestNormalizeKeepsSubsecondsAndZone(t *testing.T) {
	zone := time.FixedZone("IST", 5*3600+1800)
	at := time.Date(2024, 3, 10, 20, 0, 45, 123456789, zone)

	got := Normalize("400 years ago", at)
	assert.Equal(t, 123456789, got.Nanosecond())
	assert.Equal(t, zone, got.Location())
	assert.True(t, at.AddDate(-400, 0, 0).Add(97*24*time.Hour).Equal(got), "got %s", got)
}

func TestNormalizeClampsOverflowingOffsets(t *testing.T) {
	earliest := time.Unix(minUnix, 0).UTC()

	assert.True(t, earliest.Equal(Normalize("99999999999999999999999 years ago", ref)))
	assert.True(t, earliest.Equal(Normalize("9223372036854775807 seconds ago", ref)))
	assert.True(t, earliest.Equal(Normalize(fmt.Sprintf("%d years ago", int64(math.MaxInt64)/31536000), ref)))
}

func TestNormalizeIgnoresAbbreviations(t *testing.T) {
	assert.Equal(t, ref, Normalize("5 mins ago", ref))
	assert.Equal(t, ref, Normalize("3 hrs ago", ref))
	assert.Equal(t, ref, Normalize("10 secs ago", ref))
}

func TestNormalizeConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, ref.Add(-2*time.Hour), Normalize("2 hours ago", ref))
		}()
	}
	wg.Wait()
}

func TestParse(t *testing.T) {
	assert.Equal(t, ParsedOffset{Unit: Minute, Magnitude: 5}, Parse("5 minutes ago"))
	assert.Equal(t, ParsedOffset{Unit: Hour, Magnitude: 1}, Parse("an hour ago"))
	assert.Equal(t, ParsedOffset{Unit: Week, Magnitude: 3}, Parse("3 Weeks Ago"))
	assert.Equal(t, ParsedOffset{Unit: None, Magnitude: 1}, Parse("whenever"))
}

func TestParsedOffsetSeconds(t *testing.T) {
	secs, ok := ParsedOffset{Unit: Year, Magnitude: 1000}.Seconds()
	assert.True(t, ok)
	assert.Equal(t, int64(31536000000), secs)

	secs, ok = ParsedOffset{Unit: None, Magnitude: 1}.Seconds()
	assert.True(t, ok)
	assert.Zero(t, secs)

	_, ok = ParsedOffset{Unit: Week, Magnitude: math.MaxInt64}.Seconds()
	assert.False(t, ok)
}

func TestUnit(t *testing.T) {
	assert.Equal(t, "minute", Minute.String())
	assert.Equal(t, "none", None.String())
	assert.Equal(t, 2592000*time.Second, Month.Duration())
	assert.Equal(t, 31536000*time.Second, Year.Duration())
	assert.Equal(t, time.Duration(0), None.Duration())
}

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		expr   string
		want   int
		wantOK bool
	}{
		{"5 minutes ago", 5, true},
		{"1 minute ago", 1, true},
		{"12 Minutes Ago", 12, true},
		{"bought 40minutes ago", 40, true},
		{"5 mins ago", 0, false},
		{"an hour ago", 0, false},
		{"a minute ago", 0, false},
		{"5 minutes", 0, false},
		{"", 0, false},
		{"99999999999999999999999 minutes ago", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, ok := ParseMinutes(tt.expr)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
