package timeentries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockDuration(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	testCases := []struct {
		name        string
		start, end  time.Time
		wantHours   float64
		wantWrapped bool
	}{
		{"morning", at(8, 0), at(10, 30), 2.5, false},
		{"overnight", at(23, 0), at(25, 0), 2.0, true},
		{"same day typo wraps", at(14, 0), at(13, 0), 23.0, true},
		{"zero", at(9, 0), at(9, 0), 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, wrapped := ClockDuration(tc.start, tc.end)
			assert.InDelta(t, tc.wantHours, d.Hours(), 1e-9)
			assert.Equal(t, tc.wantWrapped, wrapped)
		})
	}
}

func TestClockDuration_UsesEachTimesLocation(t *testing.T) {
	loc := time.FixedZone("ART", -3*3600)
	start := time.Date(2024, 3, 4, 18, 0, 0, 0, loc)
	end := start.Add(2 * time.Hour).In(loc)

	d, wrapped := ClockDuration(start, end)
	assert.Equal(t, 2*time.Hour, d)
	assert.False(t, wrapped)
}

func TestTimeEntry_DeriveUsesAbsoluteInterval(t *testing.T) {
	loc := time.FixedZone("ART", -3*3600)
	start := time.Date(2024, 3, 4, 8, 0, 0, 0, loc)

	testCases := []struct {
		name         string
		end          time.Time
		wantHours    float64
		wantCrossing bool
	}{
		{"same day", start.Add(150 * time.Minute), 2.5, false},
		{"overnight", time.Date(2024, 3, 5, 1, 0, 0, 0, loc), 17, true},
		{"next day later clock", time.Date(2024, 3, 5, 9, 0, 0, 0, loc), 25, true},
		{"three days", time.Date(2024, 3, 6, 19, 0, 0, 0, loc), 59, true},
		{"end expressed in UTC", time.Date(2024, 3, 4, 22, 0, 0, 0, time.UTC), 11, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := TimeEntry{StartTime: start, EndTime: tc.end}
			e.derive()
			assert.InDelta(t, tc.wantHours, e.DurationHours, 1e-9)
			assert.Equal(t, tc.wantCrossing, e.CrossesMidnight)
		})
	}
}
