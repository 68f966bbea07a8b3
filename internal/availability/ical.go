package availability

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog/log"
)

const icsProductID = "-//folio//availability//EN"

// FeedOptions shapes the iCalendar export.
type FeedOptions struct {
	CalendarName string
	WindowDays   int
}

// ExportICS renders one VEVENT per slot of every bookable day from today
// through the configured window.
func (s *Service) ExportICS(ctx context.Context, opts FeedOptions) (string, error) {
	if opts.WindowDays <= 0 {
		opts.WindowDays = 30
	}
	if opts.WindowDays > MaxRangeDays {
		opts.WindowDays = MaxRangeDays
	}

	from := s.resolver.Today()
	to := from.AddDate(0, 0, opts.WindowDays-1)
	days, err := s.resolveDays(ctx, from, to)
	if err != nil {
		return "", err
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)
	if opts.CalendarName != "" {
		cal.SetXWRCalName(opts.CalendarName)
	}

	stamp := s.resolver.clock.Now().UTC()
	events := 0
	for _, day := range days {
		if !day.Status.Bookable() {
			continue
		}
		for i, slot := range day.Slots {
			start, end, err := s.slotBounds(day.Date, slot)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("date", day.Date).Msg("Skipping slot in calendar feed")
				continue
			}

			event := cal.AddEvent(fmt.Sprintf("%s-%d@folio", day.Date, i))
			event.SetDtStampTime(stamp)
			event.SetStartAt(start)
			event.SetEndAt(end)
			event.SetSummary(summaryFor(day.Status))
			if day.BookingURL != "" {
				event.SetURL(day.BookingURL)
			}
			events++
		}
	}

	log.Ctx(ctx).Debug().Int("events", events).Int("days", len(days)).Msg("Calendar feed rendered")
	return cal.Serialize(), nil
}

// slotBounds places an HH:MM slot on its date in the slot's own timezone.
// An unknown timezone falls back to UTC.
func (s *Service) slotBounds(date string, slot TimeSlot) (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(slot.Timezone)
	if err != nil {
		loc = time.UTC
	}
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := atClock(day, slot.Start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := atClock(day, slot.End, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("slot %s-%s does not end after it starts", slot.Start, slot.End)
	}
	return start, end, nil
}

func atClock(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	h, m, ok := strings.Cut(clock, ":")
	if !ok {
		return time.Time{}, fmt.Errorf("invalid clock %q", clock)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock %q: %w", clock, err)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
}

func summaryFor(status Status) string {
	if status == StatusLimited {
		return "Limited availability"
	}
	return "Available"
}
