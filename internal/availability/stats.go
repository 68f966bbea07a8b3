package availability

import (
	"context"
)

// Stats tallies the resolved status of every day in one month. Nil month or
// year fall back to the current local month and year.
func (s *Service) Stats(ctx context.Context, month, year *int) (StatsSummary, error) {
	if err := s.validator.StatsWindow(month, year); err != nil {
		return StatsSummary{}, err
	}

	today := s.resolver.Today()
	m, y := int(today.Month())-1, today.Year()
	if month != nil {
		m = *month
	}
	if year != nil {
		y = *year
	}

	days, err := s.resolver.monthDays(y, m)
	if err != nil {
		return StatsSummary{}, err
	}

	index := indexByDate(s.readDays(ctx))
	summary := StatsSummary{Month: m, Year: y, TotalDays: len(days)}
	for _, day := range days {
		resolved, explicit := index[day.Format(DateLayout)]
		if explicit {
			summary.ExplicitDays++
		} else {
			resolved = s.resolver.Default(day)
		}

		switch resolved.Status {
		case StatusAvailable:
			summary.Available++
		case StatusLimited:
			summary.Limited++
		case StatusBusy:
			summary.Busy++
		default:
			summary.Unavailable++
		}
		if resolved.Status.Bookable() {
			summary.BookableDays++
		}
	}
	return summary, nil
}
