package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookingOverlaps(t *testing.T) {
	base := time.Date(2030, time.March, 4, 10, 0, 0, 0, time.UTC)
	b := &Booking{ScheduledAt: base, DurationMinutes: 60}

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"identical", base, base.Add(time.Hour), true},
		{"inside", base.Add(15 * time.Minute), base.Add(30 * time.Minute), true},
		{"straddles start", base.Add(-30 * time.Minute), base.Add(30 * time.Minute), true},
		{"touches start", base.Add(-time.Hour), base, false},
		{"touches end", base.Add(time.Hour), base.Add(2 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Overlaps(tt.start, tt.end))
		})
	}
}

func TestBookingStatusHolds(t *testing.T) {
	assert.True(t, BookingStatusPending.Holds())
	assert.True(t, BookingStatusConfirmed.Holds())
	assert.False(t, BookingStatusCompleted.Holds())
	assert.False(t, BookingStatusCancelled.Holds())
}

func TestBookingCloneIsDeep(t *testing.T) {
	link := "https://meet.example.com/a"
	b := &Booking{MeetingLink: &link}

	c := b.Clone()
	*c.MeetingLink = "changed"

	assert.Equal(t, "https://meet.example.com/a", *b.MeetingLink)
}

func TestDateRangeContains(t *testing.T) {
	from := time.Date(2030, time.March, 4, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	r := &DateRange{From: from, To: to}

	assert.True(t, r.Contains(from))
	assert.False(t, r.Contains(to))
	assert.False(t, r.Contains(from.Add(-time.Second)))

	var open *DateRange
	assert.True(t, open.Contains(from))
	assert.True(t, (&DateRange{From: from}).Contains(to.Add(time.Hour)))
}

func TestLessonPrice(t *testing.T) {
	p := &Profile{HourlyRateCents: 2500}
	assert.Equal(t, int64(1250), p.LessonPriceCents(30))
	assert.Equal(t, int64(2500), p.LessonPriceCents(60))
	assert.Equal(t, int64(1875), p.LessonPriceCents(45))

	odd := &Profile{HourlyRateCents: 1999}
	assert.Equal(t, int64(333), odd.LessonPriceCents(10))
}
