package availability

import (
	"encoding/json"
	"strings"
)

// Status is the bookable state of one calendar day.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusLimited     Status = "limited"
	StatusBusy        Status = "busy"
	StatusUnavailable Status = "unavailable"
)

// Statuses lists every valid Status in display order.
var Statuses = []Status{StatusAvailable, StatusLimited, StatusBusy, StatusUnavailable}

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusLimited, StatusBusy, StatusUnavailable:
		return true
	}
	return false
}

// Bookable reports whether slots on a day with this status may be offered.
func (s Status) Bookable() bool {
	return s == StatusAvailable || s == StatusLimited
}

// TimeSlot is a bookable window within a day. Start and End are HH:MM; the
// timezone is passed through untouched.
type TimeSlot struct {
	Start    string `json:"start" validate:"required,clock"`
	End      string `json:"end" validate:"required,clock"`
	Timezone string `json:"timezone" validate:"required,notblank"`
}

// DayAvailability is the stored or computed state of one date (YYYY-MM-DD).
type DayAvailability struct {
	Date       string     `json:"date"`
	Status     Status     `json:"status"`
	Slots      []TimeSlot `json:"slots"`
	BookingURL string     `json:"bookingUrl,omitempty"`
}

func (d DayAvailability) MarshalJSON() ([]byte, error) {
	type alias DayAvailability
	a := alias(d)
	if a.Slots == nil {
		a.Slots = []TimeSlot{}
	}
	return json.Marshal(a)
}

// DayUpdate is one item of a bulk upsert. Nil optional fields keep the
// stored value when the date already exists.
type DayUpdate struct {
	Date       string      `json:"date"`
	Status     Status      `json:"status"`
	Slots      *[]TimeSlot `json:"slots,omitempty"`
	BookingURL *string     `json:"bookingUrl,omitempty"`
}

// DayPattern is the per-weekday shape of a WeeklyTemplate.
type DayPattern struct {
	Status Status     `json:"status"`
	Slots  []TimeSlot `json:"slots"`
}

func (p DayPattern) MarshalJSON() ([]byte, error) {
	type alias DayPattern
	a := alias(p)
	if a.Slots == nil {
		a.Slots = []TimeSlot{}
	}
	return json.Marshal(a)
}

// WeeklyTemplate is a named weekday pattern. Templates are never consulted
// when resolving a date.
type WeeklyTemplate struct {
	Name string                `json:"name"`
	Days map[string]DayPattern `json:"days"`
}

// Weekdays holds the accepted template keys, Monday first.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func isWeekday(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, day := range Weekdays {
		if day == key {
			return true
		}
	}
	return false
}

// StatsSummary tallies resolved statuses over one month. Month is 0-11.
type StatsSummary struct {
	Month        int `json:"month"`
	Year         int `json:"year"`
	Available    int `json:"available"`
	Limited      int `json:"limited"`
	Busy         int `json:"busy"`
	Unavailable  int `json:"unavailable"`
	TotalDays    int `json:"totalDays"`
	BookableDays int `json:"bookableDays"`
	ExplicitDays int `json:"explicitDays"`
}

// BulkResult is returned by BulkPutAvailability.
type BulkResult struct {
	UpdatedCount int `json:"updatedCount"`
}

// Query selects what GetAvailability returns: a single resolved date, the
// stored records inside an inclusive range, or the whole collection.
type Query struct {
	Date      string
	StartDate string
	EndDate   string
}

func cloneSlots(slots []TimeSlot) []TimeSlot {
	out := make([]TimeSlot, len(slots))
	copy(out, slots)
	return out
}
