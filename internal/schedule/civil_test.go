package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

func TestNormalizeUsesFixedOffset(t *testing.T) {
	// 2026-10-17 15:30 UTC is Saturday 23:30 in civil time.
	m := Normalize(time.Date(2026, 10, 17, 15, 30, 0, 0, time.UTC))
	assert.Equal(t, domain.Saturday, m.Day)
	assert.Equal(t, 23*60+30, m.Minute)

	// Crossing civil midnight moves the weekday even though UTC has not.
	m = Normalize(time.Date(2026, 10, 17, 16, 5, 0, 0, time.UTC))
	assert.Equal(t, domain.Sunday, m.Day)
	assert.Equal(t, 5, m.Minute)
}

func TestNormalizeIgnoresSourceZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	instant := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, Normalize(instant), Normalize(instant.In(ny)))
}

func TestNormalizeMidnight(t *testing.T) {
	m := Normalize(time.Date(2026, 10, 17, 0, 0, 0, 0, Civil))
	require.Equal(t, 0, m.Minute)
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, Civil), m.Midnight)
	assert.True(t, m.At(1, 60).Equal(time.Date(2026, 10, 18, 1, 0, 0, 0, Civil)))
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in    string
		want  int
		valid bool
	}{
		{"00:00", 0, true},
		{"07:00", 420, true},
		{"23:59", 1439, true},
		{" 19:30 ", 1170, true},
		{"7:05", 425, true},
		{"", 0, false},
		{"noon", 0, false},
		{"24:00", MinutesPerDay, true},
		{"24:30", 0, false},
		{"25:00", 0, false},
		{"12:60", 0, false},
		{"12", 0, false},
		{"-1:00", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseClock(tt.in))
			assert.Equal(t, tt.valid, ValidClock(tt.in))
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "07:05", FormatClock(425))
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "24:00", FormatClock(MinutesPerDay))
}
