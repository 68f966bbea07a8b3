package availability

import (
	"time"
)

// DateLayout is the key format of every stored record.
const DateLayout = "2006-01-02"

const defaultSlotTimezone = "UTC"

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Resolver turns a date into its effective availability: the stored record
// when one exists, otherwise the computed default.
type Resolver struct {
	loc        *time.Location
	clock      Clock
	bookingURL string
}

func NewResolver(loc *time.Location, clock Clock, bookingURL string) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Resolver{loc: loc, clock: clock, bookingURL: bookingURL}
}

// Location is the zone that decides which calendar day is today.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// civil keeps the calendar day of t's wall clock, as midnight UTC. Date
// arithmetic runs on these values so DST gaps at local midnight cannot
// shift a day.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateOf returns the local calendar day containing instant t.
func (r *Resolver) DateOf(t time.Time) time.Time {
	return civil(t.In(r.loc))
}

// Today returns the current local calendar day.
func (r *Resolver) Today() time.Time {
	return r.DateOf(r.clock.Now())
}

// ParseDate reads a YYYY-MM-DD key as a calendar day.
func (r *Resolver) ParseDate(raw string) (time.Time, error) {
	return time.Parse(DateLayout, raw)
}

// Resolve matches date against stored keys verbatim and falls back to the
// computed default. Only a malformed date fails.
func (r *Resolver) Resolve(records []DayAvailability, date string) (DayAvailability, error) {
	day, err := r.ParseDate(date)
	if err != nil {
		return DayAvailability{}, err
	}
	for _, record := range records {
		if record.Date == date {
			return record, nil
		}
	}
	return r.Default(day), nil
}

// Default computes the availability of a date that has no stored record.
func (r *Resolver) Default(date time.Time) DayAvailability {
	day := civil(date)
	key := day.Format(DateLayout)

	if day.Before(r.Today()) {
		return DayAvailability{Date: key, Status: StatusUnavailable, Slots: []TimeSlot{}}
	}

	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return DayAvailability{
			Date:   key,
			Status: StatusLimited,
			Slots: []TimeSlot{
				{Start: "14:00", End: "16:00", Timezone: defaultSlotTimezone},
			},
			BookingURL: r.bookingURL,
		}
	default:
		return DayAvailability{
			Date:   key,
			Status: StatusAvailable,
			Slots: []TimeSlot{
				{Start: "09:00", End: "12:00", Timezone: defaultSlotTimezone},
				{Start: "14:00", End: "17:00", Timezone: defaultSlotTimezone},
			},
			BookingURL: r.bookingURL,
		}
	}
}

func indexByDate(records []DayAvailability) map[string]DayAvailability {
	index := make(map[string]DayAvailability, len(records))
	for _, record := range records {
		if _, seen := index[record.Date]; !seen {
			index[record.Date] = record
		}
	}
	return index
}
