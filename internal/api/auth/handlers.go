package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/folio/internal/api/apiutil"
	"github.com/codr1/folio/internal/config"
	"github.com/codr1/folio/internal/ratelimit"
)

var (
	appConfig *config.Config
	limiter   *ratelimit.Limiter
)

type loginRequest struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func InitHandlers(cfg *config.Config, l *ratelimit.Limiter) {
	appConfig = cfg
	limiter = l
}

// HandleLogin exchanges the admin password for a session cookie.
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if appConfig == nil || appConfig.App.AdminPasswordHash == "" || appConfig.App.SecretKey == "" {
		logger.Warn().Msg("Admin login attempted without credentials configured")
		apiutil.WriteError(w, http.StatusServiceUnavailable, "admin login is not configured", "")
		return
	}

	var req loginRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}

	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = adminSubject
	}
	ip := ratelimit.GetClientIP(r, appConfig.Security.TrustProxy)

	if limiter != nil {
		if result := limiter.CheckLogin(identifier, ip); !result.Allowed {
			ratelimit.LogRateLimitExceeded(r.Context(), "login", identifier, ip, result.Reason)
			apiutil.WriteRetryAfter(w, result.RetryAfter)
			apiutil.WriteError(w, http.StatusTooManyRequests, "too many login attempts", "")
			return
		}
	}

	if req.Password == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "password is required", "password")
		return
	}

	if !strings.EqualFold(identifier, adminSubject) || !VerifyPassword(appConfig.App.AdminPasswordHash, req.Password) {
		if limiter != nil && limiter.RecordLoginFailure(identifier, ip) {
			logger.Warn().Str("ip", ip).Msg("Admin login locked out")
		}
		logger.Warn().Str("ip", ip).Msg("Admin login rejected")
		apiutil.WriteError(w, http.StatusUnauthorized, "invalid credentials", "")
		return
	}

	if limiter != nil {
		limiter.ResetLogin(identifier)
	}

	admin, err := SetAuthCookie(w, adminSubject)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to issue admin session")
		apiutil.WriteError(w, http.StatusInternalServerError, "failed to create session", "")
		return
	}

	logger.Info().Str("ip", ip).Msg("Admin logged in")
	if err := apiutil.WriteJSON(w, http.StatusOK, sessionResponse{Subject: admin.Subject, ExpiresAt: admin.ExpiresAt}); err != nil {
		logger.Error().Err(err).Msg("Failed to write login response")
	}
}

func HandleLogout(w http.ResponseWriter, r *http.Request) {
	ClearSession(w, r)
	w.WriteHeader(http.StatusNoContent)
}
