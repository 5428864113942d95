package payments

import (
	"testing"
	"time"
)

func TestAddMonthClamped(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"plain", date(2025, time.March, 15), date(2025, time.April, 15)},
		{"clamp to shorter month", date(2025, time.January, 31), date(2025, time.February, 28)},
		{"leap february", date(2024, time.January, 31), date(2024, time.February, 29)},
		{"year rollover", date(2025, time.December, 10), date(2026, time.January, 10)},
		{"31st to 30-day month", date(2025, time.March, 31), date(2025, time.April, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := addMonthClamped(tt.in); !got.Equal(tt.want) {
				t.Errorf("addMonthClamped(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNextDayOfMonth(t *testing.T) {
	tests := []struct {
		name  string
		after time.Time
		day   int
		want  time.Time
	}{
		{"later this month", date(2025, time.June, 10), 16, date(2025, time.June, 16)},
		{"same day rolls a month", date(2025, time.June, 16), 16, date(2025, time.July, 16)},
		{"already past", date(2025, time.June, 20), 16, date(2025, time.July, 16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextDayOfMonth(tt.after, tt.day); !got.Equal(tt.want) {
				t.Errorf("nextDayOfMonth(%v, %d) = %v, want %v", tt.after, tt.day, got, tt.want)
			}
		})
	}
}

func TestDayOfMonthOnOrAfter(t *testing.T) {
	if got := dayOfMonthOnOrAfter(date(2025, time.June, 16), 16); !got.Equal(date(2025, time.June, 16)) {
		t.Errorf("dayOfMonthOnOrAfter on the day = %v, want 2025-06-16", got)
	}
	if got := dayOfMonthOnOrAfter(date(2025, time.June, 17), 16); !got.Equal(date(2025, time.July, 16)) {
		t.Errorf("dayOfMonthOnOrAfter past the day = %v, want 2025-07-16", got)
	}
}
