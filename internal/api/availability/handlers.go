// internal/api/availability/handlers.go
package availability

import (
	"errors"
	"net/http"
	"sync"

	cerrors "github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/codr1/folio/internal/api/apiutil"
	"github.com/codr1/folio/internal/api/authz"
	engine "github.com/codr1/folio/internal/availability"
)

var (
	service     *engine.Service
	feedOptions engine.FeedOptions
	serviceOnce sync.Once
)

type bulkRequest struct {
	Updates []engine.DayUpdate `json:"updates"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(svc *engine.Service, feed engine.FeedOptions) {
	if svc == nil {
		return
	}
	serviceOnce.Do(func() {
		service = svc
		feedOptions = feed
	})
}

func loadService(w http.ResponseWriter, r *http.Request) *engine.Service {
	if service == nil {
		log.Ctx(r.Context()).Error().Msg("Availability service not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "internal server error", "")
	}
	return service
}

// GET /api/v1/availability[?date=|?startDate=&endDate=]
func HandleGetAvailability(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	q := r.URL.Query()
	query := engine.Query{
		Date:      q.Get("date"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	}

	days, err := svc.GetAvailability(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if query.Date != "" {
		writeJSON(w, r, http.StatusOK, days[0])
		return
	}
	writeJSON(w, r, http.StatusOK, days)
}

// POST /api/v1/availability
func HandlePutAvailability(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	var day engine.DayAvailability
	if err := apiutil.DecodeJSON(r, &day); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	stored, err := svc.PutAvailability(r.Context(), day)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	logAdminAction(r, "availability.put")
	writeJSON(w, r, http.StatusOK, stored)
}

// PUT /api/v1/availability/bulk
func HandleBulkPutAvailability(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	var req bulkRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	result, err := svc.BulkPutAvailability(r.Context(), req.Updates)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	logAdminAction(r, "availability.bulk_put")
	writeJSON(w, r, http.StatusOK, result)
}

// DELETE /api/v1/availability?date= and DELETE /api/v1/availability/{date}
func HandleDeleteAvailability(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	if err := svc.DeleteAvailability(r.Context(), apiutil.PathOrQuery(r, "date")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	logAdminAction(r, "availability.delete")
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/availability/templates
func HandleGetTemplates(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}
	writeJSON(w, r, http.StatusOK, svc.GetTemplates(r.Context()))
}

// POST /api/v1/availability/templates
func HandlePutTemplate(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	var tmpl engine.WeeklyTemplate
	if err := apiutil.DecodeJSON(r, &tmpl); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	stored, err := svc.PutTemplate(r.Context(), tmpl)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	logAdminAction(r, "template.put")
	writeJSON(w, r, http.StatusOK, stored)
}

// DELETE /api/v1/availability/templates/{name}
func HandleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	if err := svc.DeleteTemplate(r.Context(), apiutil.PathOrQuery(r, "name")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	logAdminAction(r, "template.delete")
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/availability/stats[?month=&year=]
func HandleGetStats(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	month, err := apiutil.OptionalIntQuery(r, "month")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	year, err := apiutil.OptionalIntQuery(r, "year")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	summary, err := svc.Stats(r.Context(), month, year)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// GET /api/v1/availability/calendar?startDate=&endDate=
func HandleGetCalendar(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	q := r.URL.Query()
	days, err := svc.ResolveRange(r.Context(), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, days)
}

// GET /api/v1/availability/feed.ics
func HandleGetFeed(w http.ResponseWriter, r *http.Request) {
	svc := loadService(w, r)
	if svc == nil {
		return
	}

	feed, err := svc.ExportICS(r.Context(), feedOptions)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="availability.ics"`)
	if _, err := w.Write([]byte(feed)); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write calendar feed")
	}
}

// writeServiceError maps the engine error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())

	var verr *engine.ValidationError
	var ferr apiutil.FieldError
	switch {
	case errors.As(err, &verr):
		apiutil.WriteError(w, http.StatusBadRequest, verr.Error(), verr.Field)
	case errors.As(err, &ferr):
		apiutil.WriteError(w, http.StatusBadRequest, ferr.Error(), ferr.Field)
	case cerrors.Is(err, engine.NotFoundError):
		apiutil.WriteError(w, http.StatusNotFound, err.Error(), "")
	case cerrors.Is(err, engine.ConflictError):
		logger.Warn().Err(err).Msg("Availability write lost to a concurrent update")
		apiutil.WriteError(w, http.StatusConflict, "availability changed concurrently, retry the request", "")
	default:
		logger.Error().Err(err).Msg("Availability request failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to process availability request", "")
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	if err := apiutil.WriteJSON(w, status, payload); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write response")
	}
}

func logAdminAction(r *http.Request, action string) {
	event := log.Ctx(r.Context()).Info().Str("action", action)
	if admin := authz.AdminFromContext(r.Context()); admin != nil {
		event = event.Str("admin", admin.Subject)
	}
	event.Msg("Admin mutation applied")
}
