// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package timeslot provides padded-interval overlap checks and availability slot generation.
package timeslot

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// DateLayout is the calendar date format accepted by DayBounds.
const DateLayout = "2006-01-02"

// Default business hours used for availability.
const (
	DefaultStartHour   = 9
	DefaultEndHour     = 18
	DefaultSlotMinutes = 60
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Pad extends the interval by buffer on both ends.
func (i Interval) Pad(buffer time.Duration) Interval {
	return Interval{Start: i.Start.Add(-buffer), End: i.End.Add(buffer)}
}

// Intersects reports whether the two half-open intervals share any instant.
func (i Interval) Intersects(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Overlaps pads both intervals by bufferMinutes on each end and reports whether
// the padded intervals intersect. It is symmetric in its two intervals.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time, bufferMinutes int) bool {
	buffer := time.Duration(bufferMinutes) * time.Minute
	a := Interval{Start: aStart, End: aEnd}.Pad(buffer)
	b := Interval{Start: bStart, End: bEnd}.Pad(buffer)
	return a.Intersects(b)
}

// BusinessHours is the daily window availability is computed over, in the day's location.
type BusinessHours struct {
	StartHour   int
	EndHour     int
	SlotMinutes int
}

// DefaultBusinessHours returns 09:00 to 18:00 in one-hour slots.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		StartHour:   DefaultStartHour,
		EndHour:     DefaultEndHour,
		SlotMinutes: DefaultSlotMinutes,
	}
}

// Validate checks the window is non-empty and fits inside a day.
func (b BusinessHours) Validate() error {
	if b.StartHour < 0 || b.EndHour > 24 || b.StartHour >= b.EndHour {
		return fmt.Errorf("invalid business hours %d-%d", b.StartHour, b.EndHour)
	}
	if b.SlotMinutes <= 0 || b.SlotMinutes > (b.EndHour-b.StartHour)*60 {
		return fmt.Errorf("invalid slot length %d minutes", b.SlotMinutes)
	}
	return nil
}

// Booking is an existing commitment that blocks its padded interval.
type Booking struct {
	Start         time.Time
	End           time.Time
	BufferMinutes int
}

// Slot is one candidate time range of a day.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// DayBounds parses a YYYY-MM-DD date in the IANA zone tz and returns the local
// midnight that starts it and the one that ends it.
func DayBounds(date, tz string) (time.Time, time.Time, *time.Location, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, time.Time{}, nil, fmt.Errorf("unknown timezone %q: %w", tz, err)
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return day, day.AddDate(0, 0, 1), loc, nil
}

// GenerateDailySlots walks fixed-width slots across the business window of the day
// that starts at dayStart, in dayStart's location. A slot is unavailable when it
// intersects any booking's buffer-padded interval.
func GenerateDailySlots(dayStart time.Time, window BusinessHours, bookings []Booking) ([]Slot, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if dayStart.IsZero() {
		return nil, errors.New("day start is required")
	}

	loc := dayStart.Location()
	y, m, d := dayStart.Date()
	windowStart := time.Date(y, m, d, window.StartHour, 0, 0, 0, loc)
	windowEnd := time.Date(y, m, d, window.EndHour, 0, 0, 0, loc)
	slotLen := time.Duration(window.SlotMinutes) * time.Minute

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.MINUTELY,
		Interval: window.SlotMinutes,
		Dtstart:  windowStart,
		Until:    windowEnd.Add(-slotLen),
	})
	if err != nil {
		return nil, fmt.Errorf("building slot rule: %w", err)
	}

	padded := make([]Interval, 0, len(bookings))
	for _, b := range bookings {
		padded = append(padded, Interval{Start: b.Start, End: b.End}.
			Pad(time.Duration(b.BufferMinutes)*time.Minute))
	}

	starts := rule.All()
	slots := make([]Slot, 0, len(starts))
	for _, start := range starts {
		slot := Interval{Start: start, End: start.Add(slotLen)}
		available := true
		for _, p := range padded {
			if slot.Intersects(p) {
				available = false
				break
			}
		}
		slots = append(slots, Slot{Start: slot.Start, End: slot.End, Available: available})
	}

	return slots, nil
}
