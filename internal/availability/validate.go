package availability

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

const (
	maxTemplateNameLength = 50
	minStatsYear          = 2020
	maxStatsYear          = 2030
)

var (
	datePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)
)

// Validator checks every inbound mutation before it reaches the store.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
		return validDate(fl.Field().String())
	})
	mustRegister(v, "clock", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "status", func(fl validator.FieldLevel) bool {
		return Status(fl.Field().String()).Valid()
	})
	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return field.Name
	}
	return name
}

// validDate requires the YYYY-MM-DD shape and a real calendar date.
func validDate(raw string) bool {
	if !datePattern.MatchString(raw) {
		return false
	}
	_, err := time.Parse(DateLayout, raw)
	return err == nil
}

// Date validates a bare date key, e.g. for deletion.
func (v *Validator) Date(field, raw string) error {
	return v.field(field, raw, "required,isodate")
}

// Day validates a full single-day upsert.
func (v *Validator) Day(day DayAvailability) error {
	return v.day("", day.Date, day.Status, day.Slots)
}

// Bulk validates every item of a batch and stops at the first failure.
func (v *Validator) Bulk(updates []DayUpdate) error {
	if len(updates) == 0 {
		return newValidationError("updates", "must contain at least one item")
	}
	for i, update := range updates {
		var slots []TimeSlot
		if update.Slots != nil {
			slots = *update.Slots
		}
		if err := v.day(fmt.Sprintf("updates[%d].", i), update.Date, update.Status, slots); err != nil {
			return err
		}
	}
	return nil
}

// Template validates a weekly template.
func (v *Validator) Template(tmpl WeeklyTemplate) error {
	if err := v.field("name", tmpl.Name, fmt.Sprintf("notblank,max=%d", maxTemplateNameLength)); err != nil {
		return err
	}
	keys := make([]string, 0, len(tmpl.Days))
	for key := range tmpl.Days {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if !isWeekday(key) {
			return newValidationError("days."+key, "is not a weekday")
		}
		weekday := strings.ToLower(strings.TrimSpace(key))
		if seen[weekday] {
			return newValidationError("days."+key, "duplicates weekday "+weekday)
		}
		seen[weekday] = true

		pattern := tmpl.Days[key]
		prefix := "days." + weekday + "."
		if err := v.field(prefix+"status", string(pattern.Status), "required,status"); err != nil {
			return err
		}
		if err := v.slots(prefix, pattern.Slots); err != nil {
			return err
		}
	}
	return nil
}

// StatsWindow checks optional month (0-11) and year (2020-2030) inputs.
func (v *Validator) StatsWindow(month, year *int) error {
	if month != nil && (*month < 0 || *month > 11) {
		return newValidationError("month", "must be between 0 and 11")
	}
	if year != nil && (*year < minStatsYear || *year > maxStatsYear) {
		return newValidationError("year", fmt.Sprintf("must be between %d and %d", minStatsYear, maxStatsYear))
	}
	return nil
}

func (v *Validator) day(prefix, date string, status Status, slots []TimeSlot) error {
	if err := v.field(prefix+"date", date, "required,isodate"); err != nil {
		return err
	}
	if err := v.field(prefix+"status", string(status), "required,status"); err != nil {
		return err
	}
	return v.slots(prefix, slots)
}

func (v *Validator) slots(prefix string, slots []TimeSlot) error {
	for i, slot := range slots {
		if err := v.v.Struct(slot); err != nil {
			return adaptError(fmt.Sprintf("%sslots[%d].", prefix, i), "", err)
		}
	}
	return nil
}

func (v *Validator) field(name string, value string, tag string) error {
	if err := v.v.Var(value, tag); err != nil {
		return adaptError("", name, err)
	}
	return nil
}

// adaptError maps the first validator failure to a ValidationError naming
// the offending field.
func adaptError(prefix, name string, err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return errors.Wrap(err, "validate")
	}
	fe := fieldErrors[0]
	if name == "" {
		name = fe.Field()
	}
	return newValidationError(prefix+name, reasonFor(fe))
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "isodate":
		return "must be a valid date in YYYY-MM-DD format"
	case "clock":
		return "must be a time in HH:MM format"
	case "status":
		values := make([]string, len(Statuses))
		for i, s := range Statuses {
			values[i] = string(s)
		}
		return "must be one of " + strings.Join(values, ", ")
	case "max":
		return fmt.Sprintf("must have at most %s characters", fe.Param())
	}
	return "is invalid"
}
