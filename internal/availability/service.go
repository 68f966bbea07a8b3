package availability

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/codr1/folio/internal/store"
)

// Collection names in the persistence collaborator.
const (
	DaysCollection      = "availability"
	TemplatesCollection = "templates"
)

const defaultMaxWriteAttempts = 3

// Observer receives one call per finished mutation.
type Observer interface {
	ObserveMutation(operation string, err error)
}

type Options struct {
	Location   *time.Location
	Clock      Clock
	BookingURL string
	Observer   Observer
	// MaxWriteAttempts bounds compare-and-swap retries after a version conflict.
	MaxWriteAttempts int
}

// Service is the availability engine. It keeps no record state between
// calls: every operation reads the collection from the store, and every
// mutation rewrites it whole through a compare-and-swap.
type Service struct {
	store     store.Store
	resolver  *Resolver
	validator *Validator
	observer  Observer
	attempts  int

	daysMu      sync.Mutex
	templatesMu sync.Mutex
}

func NewService(st store.Store, opts Options) *Service {
	attempts := opts.MaxWriteAttempts
	if attempts <= 0 {
		attempts = defaultMaxWriteAttempts
	}
	return &Service{
		store:     st,
		resolver:  NewResolver(opts.Location, opts.Clock, opts.BookingURL),
		validator: NewValidator(),
		observer:  opts.Observer,
		attempts:  attempts,
	}
}

func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// GetAvailability answers the three query shapes: one resolved date, stored
// records inside an inclusive range, or the full stored collection.
func (s *Service) GetAvailability(ctx context.Context, q Query) ([]DayAvailability, error) {
	switch {
	case q.Date != "":
		day, err := s.Resolve(ctx, q.Date)
		if err != nil {
			return nil, err
		}
		return []DayAvailability{day}, nil
	case q.StartDate != "" || q.EndDate != "":
		return s.ListRange(ctx, q.StartDate, q.EndDate)
	default:
		return s.List(ctx), nil
	}
}

// Resolve returns the effective availability of a single date.
func (s *Service) Resolve(ctx context.Context, date string) (DayAvailability, error) {
	if err := s.validator.Date("date", date); err != nil {
		return DayAvailability{}, err
	}
	day, err := s.resolver.Resolve(s.readDays(ctx), date)
	if err != nil {
		return DayAvailability{}, newValidationError("date", "must be a valid date in YYYY-MM-DD format")
	}
	return day, nil
}

// List returns every stored record in stored order.
func (s *Service) List(ctx context.Context) []DayAvailability {
	return s.readDays(ctx)
}

// ListRange returns stored records whose date lies in [start, end].
func (s *Service) ListRange(ctx context.Context, start, end string) ([]DayAvailability, error) {
	from, to, err := s.parseRange(start, end)
	if err != nil {
		return nil, err
	}

	records := s.readDays(ctx)
	out := make([]DayAvailability, 0, len(records))
	for _, record := range records {
		day, err := s.resolver.ParseDate(record.Date)
		if err != nil {
			continue
		}
		if day.Before(from) || day.After(to) {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *Service) parseRange(start, end string) (time.Time, time.Time, error) {
	if err := s.validator.Date("startDate", start); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if err := s.validator.Date("endDate", end); err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, err := s.resolver.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, newValidationError("startDate", "must be a valid date in YYYY-MM-DD format")
	}
	to, err := s.resolver.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, newValidationError("endDate", "must be a valid date in YYYY-MM-DD format")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, newValidationError("endDate", "must not be before startDate")
	}
	return from, to, nil
}

// PutAvailability replaces the record with the same date or appends it.
func (s *Service) PutAvailability(ctx context.Context, day DayAvailability) (stored DayAvailability, err error) {
	defer s.observe("put_day", &err)

	if err := s.validator.Day(day); err != nil {
		return DayAvailability{}, err
	}
	if day.Slots == nil {
		day.Slots = []TimeSlot{}
	} else {
		day.Slots = cloneSlots(day.Slots)
	}

	err = mutate(ctx, s, DaysCollection, &s.daysMu, func(records []DayAvailability) ([]DayAvailability, bool, error) {
		for i := range records {
			if records[i].Date == day.Date {
				records[i] = day
				return records, true, nil
			}
		}
		return append(records, day), true, nil
	})
	if err != nil {
		return DayAvailability{}, err
	}

	log.Ctx(ctx).Info().Str("date", day.Date).Str("status", string(day.Status)).Msg("Availability saved")
	return day, nil
}

// BulkPutAvailability validates every update, then merges them in input
// order and writes the collection once. A single invalid item applies nothing.
func (s *Service) BulkPutAvailability(ctx context.Context, updates []DayUpdate) (result BulkResult, err error) {
	defer s.observe("bulk_put_days", &err)

	if err := s.validator.Bulk(updates); err != nil {
		return BulkResult{}, err
	}

	err = mutate(ctx, s, DaysCollection, &s.daysMu, func(records []DayAvailability) ([]DayAvailability, bool, error) {
		positions := make(map[string]int, len(records))
		for i, record := range records {
			positions[record.Date] = i
		}
		for _, update := range updates {
			if i, ok := positions[update.Date]; ok {
				records[i] = mergeUpdate(records[i], update)
				continue
			}
			positions[update.Date] = len(records)
			records = append(records, mergeUpdate(DayAvailability{Date: update.Date, Slots: []TimeSlot{}}, update))
		}
		return records, true, nil
	})
	if err != nil {
		return BulkResult{}, err
	}

	log.Ctx(ctx).Info().Int("updated_count", len(updates)).Msg("Availability bulk update applied")
	return BulkResult{UpdatedCount: len(updates)}, nil
}

// mergeUpdate is a shallow merge: fields absent from the update survive.
func mergeUpdate(existing DayAvailability, update DayUpdate) DayAvailability {
	merged := existing
	merged.Status = update.Status
	if update.Slots != nil {
		merged.Slots = cloneSlots(*update.Slots)
	}
	if update.BookingURL != nil {
		merged.BookingURL = *update.BookingURL
	}
	if merged.Slots == nil {
		merged.Slots = []TimeSlot{}
	}
	return merged
}

// DeleteAvailability removes the record for date. A missing date succeeds.
func (s *Service) DeleteAvailability(ctx context.Context, date string) (err error) {
	defer s.observe("delete_day", &err)

	if err := s.validator.Date("date", date); err != nil {
		return err
	}

	removed := false
	err = mutate(ctx, s, DaysCollection, &s.daysMu, func(records []DayAvailability) ([]DayAvailability, bool, error) {
		removed = false
		out := records[:0]
		for _, record := range records {
			if record.Date == date {
				removed = true
				continue
			}
			out = append(out, record)
		}
		return out, removed, nil
	})
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().Str("date", date).Bool("removed", removed).Msg("Availability deleted")
	return nil
}

// PruneBefore removes explicit records dated strictly before cutoff.
func (s *Service) PruneBefore(ctx context.Context, cutoff time.Time) (removed int, err error) {
	defer s.observe("prune_days", &err)

	limit := s.resolver.DateOf(cutoff)
	err = mutate(ctx, s, DaysCollection, &s.daysMu, func(records []DayAvailability) ([]DayAvailability, bool, error) {
		removed = 0
		out := records[:0]
		for _, record := range records {
			day, err := s.resolver.ParseDate(record.Date)
			if err == nil && day.Before(limit) {
				removed++
				continue
			}
			out = append(out, record)
		}
		return out, removed > 0, nil
	})
	return removed, err
}

// GetTemplates returns every stored template in stored order.
func (s *Service) GetTemplates(ctx context.Context) []WeeklyTemplate {
	templates, _, err := load[WeeklyTemplate](ctx, s.store, TemplatesCollection)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Templates unreadable, serving empty list")
		return []WeeklyTemplate{}
	}
	return templates
}

// PutTemplate replaces the template with the same name or appends it.
func (s *Service) PutTemplate(ctx context.Context, tmpl WeeklyTemplate) (stored WeeklyTemplate, err error) {
	defer s.observe("put_template", &err)

	if err := s.validator.Template(tmpl); err != nil {
		return WeeklyTemplate{}, err
	}
	tmpl = normalizeTemplate(tmpl)

	err = mutate(ctx, s, TemplatesCollection, &s.templatesMu, func(templates []WeeklyTemplate) ([]WeeklyTemplate, bool, error) {
		for i := range templates {
			if templates[i].Name == tmpl.Name {
				templates[i] = tmpl
				return templates, true, nil
			}
		}
		return append(templates, tmpl), true, nil
	})
	if err != nil {
		return WeeklyTemplate{}, err
	}

	log.Ctx(ctx).Info().Str("template", tmpl.Name).Msg("Weekly template saved")
	return tmpl, nil
}

// DeleteTemplate removes a template by name. Unlike day deletion, an unknown
// name is reported as ErrTemplateNotFound.
func (s *Service) DeleteTemplate(ctx context.Context, name string) (err error) {
	defer s.observe("delete_template", &err)

	if strings.TrimSpace(name) == "" {
		return newValidationError("name", "is required")
	}

	err = mutate(ctx, s, TemplatesCollection, &s.templatesMu, func(templates []WeeklyTemplate) ([]WeeklyTemplate, bool, error) {
		for i := range templates {
			if templates[i].Name == name {
				return append(templates[:i], templates[i+1:]...), true, nil
			}
		}
		return nil, false, ErrTemplateNotFound
	})
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().Str("template", name).Msg("Weekly template deleted")
	return nil
}

func normalizeTemplate(tmpl WeeklyTemplate) WeeklyTemplate {
	days := make(map[string]DayPattern, len(tmpl.Days))
	for key, pattern := range tmpl.Days {
		if pattern.Slots == nil {
			pattern.Slots = []TimeSlot{}
		} else {
			pattern.Slots = cloneSlots(pattern.Slots)
		}
		days[strings.ToLower(strings.TrimSpace(key))] = pattern
	}
	return WeeklyTemplate{Name: tmpl.Name, Days: days}
}

// readDays degrades an unreadable collection to empty so computed defaults
// stay queryable.
func (s *Service) readDays(ctx context.Context) []DayAvailability {
	records, _, err := load[DayAvailability](ctx, s.store, DaysCollection)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Availability unreadable, resolving from defaults")
		return []DayAvailability{}
	}
	return records
}

func (s *Service) observe(operation string, err *error) {
	if s.observer != nil {
		s.observer.ObserveMutation(operation, *err)
	}
}

func load[T any](ctx context.Context, st store.Store, collection string) ([]T, string, error) {
	snap, err := st.Load(ctx, collection)
	if err != nil {
		return nil, "", persistenceError(err, "load "+collection)
	}
	items := []T{}
	if len(snap.Data) == 0 {
		return items, snap.Version, nil
	}
	if err := json.Unmarshal(snap.Data, &items); err != nil {
		return nil, "", persistenceError(err, "decode "+collection)
	}
	if items == nil {
		items = []T{}
	}
	return items, snap.Version, nil
}

// mutate runs one read-modify-write of a whole collection. The mutex
// serializes writers in this process; the store's compare-and-swap catches
// writers in other processes, in which case apply runs again on fresh data.
func mutate[T any](ctx context.Context, s *Service, collection string, mu *sync.Mutex, apply func([]T) ([]T, bool, error)) error {
	mu.Lock()
	defer mu.Unlock()

	logger := log.Ctx(ctx)
	for attempt := 1; ; attempt++ {
		items, version, err := load[T](ctx, s.store, collection)
		if err != nil {
			return err
		}

		next, changed, err := apply(items)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if next == nil {
			next = []T{}
		}

		data, err := json.Marshal(next)
		if err != nil {
			return persistenceError(err, "encode "+collection)
		}

		_, err = s.store.CompareAndSwap(ctx, collection, version, data)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return persistenceError(err, "write "+collection)
		}
		if attempt >= s.attempts {
			return errors.Mark(errors.Wrapf(err, "write %s after %d attempts", collection, attempt), ConflictError)
		}
		logger.Warn().Str("collection", collection).Int("attempt", attempt).Msg("Collection changed during write, retrying")
	}
}
