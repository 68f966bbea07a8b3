package availability

import (
	"context"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxRangeDays bounds ResolveRange so a single request cannot enumerate an
// unbounded window.
const MaxRangeDays = 366

// days enumerates every calendar day in [from, to] inclusive.
func (r *Resolver) days(from, to time.Time) ([]time.Time, error) {
	from, to = civil(from), civil(to)
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: from,
		Until:   to,
	})
	if err != nil {
		return nil, err
	}

	return rule.All(), nil
}

// monthDays enumerates every date of month (0-11) in year.
func (r *Resolver) monthDays(year, month int) ([]time.Time, error) {
	first := time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return r.days(first, last)
}

// ResolveRange resolves every date in [start, end], filling gaps with the
// computed default.
func (s *Service) ResolveRange(ctx context.Context, start, end string) ([]DayAvailability, error) {
	from, to, err := s.parseRange(start, end)
	if err != nil {
		return nil, err
	}
	if to.After(from.AddDate(0, 0, MaxRangeDays-1)) {
		return nil, newValidationError("endDate", "range must not exceed 366 days")
	}
	return s.resolveDays(ctx, from, to)
}

func (s *Service) resolveDays(ctx context.Context, from, to time.Time) ([]DayAvailability, error) {
	days, err := s.resolver.days(from, to)
	if err != nil {
		return nil, newValidationError("endDate", "invalid date range")
	}

	index := indexByDate(s.readDays(ctx))
	out := make([]DayAvailability, 0, len(days))
	for _, day := range days {
		if record, ok := index[day.Format(DateLayout)]; ok {
			out = append(out, record)
			continue
		}
		out = append(out, s.resolver.Default(day))
	}
	return out, nil
}
