package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/codr1/folio/internal/api/authz"
)

const (
	authCookieName         = "folio_admin"
	defaultSessionTTL      = 8 * time.Hour
	sessionTokenBytes      = 16
	sessionCleanupInterval = 15 * time.Minute
	adminSubject           = "admin"
)

var errAuthConfigMissing = errors.New("auth configuration missing")

type authSession struct {
	Subject   string `json:"sub"`
	SessionID string `json:"sid"`
	ExpiresAt int64  `json:"exp"`
}

var (
	sessionMu sync.Mutex
	// Logged-out session IDs, kept until the cookie would have expired anyway.
	revokedSessions    = make(map[string]time.Time)
	sessionCleanupOnce sync.Once
)

func isSecureCookie() bool {
	return appConfig == nil || !appConfig.IsDevelopment()
}

func sessionTTL() time.Duration {
	if appConfig != nil && appConfig.Security.SessionTTL > 0 {
		return appConfig.Security.SessionTTL
	}
	return defaultSessionTTL
}

// SetAuthCookie issues a signed admin session cookie.
func SetAuthCookie(w http.ResponseWriter, subject string) (*authz.Admin, error) {
	if w == nil {
		return nil, errors.New("auth session requires response writer")
	}
	if appConfig == nil || appConfig.App.SecretKey == "" {
		return nil, errAuthConfigMissing
	}

	startSessionCleanup()

	sessionID, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	ttl := sessionTTL()
	expiresAt := time.Now().Add(ttl)
	payload, err := json.Marshal(authSession{
		Subject:   subject,
		SessionID: sessionID,
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}

	encodedPayload := base64.RawURLEncoding.EncodeToString(payload)
	signature, err := signPayload(encodedPayload)
	if err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    encodedPayload + "." + signature,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureCookie(),
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(expiresAt.Unix(), 0),
		MaxAge:   int(ttl.Seconds()),
	})

	return &authz.Admin{Subject: subject, ExpiresAt: time.Unix(expiresAt.Unix(), 0)}, nil
}

// ClearSession revokes the request's session, if any, and expires the cookie.
func ClearSession(w http.ResponseWriter, r *http.Request) {
	if r != nil {
		if session, err := parseAuthCookie(r); err == nil && session != nil {
			revokeSession(session.SessionID, time.Unix(session.ExpiresAt, 0))
		}
	}
	ClearAuthCookie(w)
}

func ClearAuthCookie(w http.ResponseWriter) {
	if w == nil {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureCookie(),
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// AdminFromRequest returns the admin behind a valid session cookie, nil for
// anonymous requests, or an error for a tampered or expired cookie.
func AdminFromRequest(r *http.Request) (*authz.Admin, error) {
	session, err := parseAuthCookie(r)
	if err != nil || session == nil {
		return nil, err
	}
	if isRevoked(session.SessionID) {
		return nil, errors.New("auth session revoked")
	}
	return &authz.Admin{Subject: session.Subject, ExpiresAt: time.Unix(session.ExpiresAt, 0)}, nil
}

// CookieGate authorizes requests carrying a signed admin session cookie.
type CookieGate struct{}

func (CookieGate) Authorize(r *http.Request) (*authz.Admin, error) {
	return AdminFromRequest(r)
}

func parseAuthCookie(r *http.Request) (*authSession, error) {
	if r == nil {
		return nil, nil
	}

	if appConfig == nil || appConfig.App.SecretKey == "" {
		return nil, errAuthConfigMissing
	}

	cookie, err := r.Cookie(authCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}

	parts := strings.SplitN(cookie.Value, ".", 2)
	if len(parts) != 2 {
		return nil, errors.New("invalid auth cookie")
	}

	encodedPayload := parts[0]
	signature := parts[1]
	expectedSignature, err := signPayload(encodedPayload)
	if err != nil {
		return nil, err
	}

	if !hmac.Equal([]byte(signature), []byte(expectedSignature)) {
		return nil, errors.New("invalid auth cookie signature")
	}

	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return nil, err
	}

	var session authSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, err
	}

	if session.ExpiresAt <= time.Now().Unix() {
		return nil, errors.New("auth session expired")
	}
	if session.Subject == "" {
		return nil, errors.New("auth session missing subject")
	}

	return &session, nil
}

func signPayload(payload string) (string, error) {
	if appConfig == nil || appConfig.App.SecretKey == "" {
		return "", errAuthConfigMissing
	}

	mac := hmac.New(sha256.New, []byte(appConfig.App.SecretKey))
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func newSessionToken() (string, error) {
	token := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(token), nil
}

func startSessionCleanup() {
	sessionCleanupOnce.Do(func() {
		// Lazy-start cleanup only when sessions are first used.
		go func() {
			ticker := time.NewTicker(sessionCleanupInterval)
			defer ticker.Stop()
			for range ticker.C {
				pruneRevokedSessions(time.Now())
			}
		}()
	})
}

func revokeSession(sessionID string, expiresAt time.Time) {
	if sessionID == "" {
		return
	}
	sessionMu.Lock()
	revokedSessions[sessionID] = expiresAt
	sessionMu.Unlock()
}

func isRevoked(sessionID string) bool {
	sessionMu.Lock()
	_, ok := revokedSessions[sessionID]
	sessionMu.Unlock()
	return ok
}

func pruneRevokedSessions(now time.Time) {
	sessionMu.Lock()
	for id, expiresAt := range revokedSessions {
		if expiresAt.Before(now) {
			delete(revokedSessions, id)
		}
	}
	sessionMu.Unlock()
}
