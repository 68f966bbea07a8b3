package apiutil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	if err := DecodeJSON(r, &dst); err == nil {
		t.Fatal("expected unknown field error")
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`))
	if err := DecodeJSON(r, &dst); err == nil {
		t.Fatal("expected trailing data error")
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	if err := DecodeJSON(r, &dst); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dst.Name != "a" {
		t.Fatalf("name: %q", dst.Name)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "date is required", "date")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type: %q", got)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"date is required","field":"date"}` {
		t.Fatalf("body: %s", body)
	}

	rec = httptest.NewRecorder()
	WriteHandlerError(rec, HandlerError{Message: "boom"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"boom"}` {
		t.Fatalf("body: %s", body)
	}
}

func TestWriteRetryAfterRoundsUp(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteRetryAfter(rec, 1500*time.Millisecond)
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After: %q", got)
	}

	rec = httptest.NewRecorder()
	WriteRetryAfter(rec, 0)
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After: %q", got)
	}
}

func TestOptionalIntQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?month=11&year=abc", nil)

	month, err := OptionalIntQuery(r, "month")
	if err != nil || month == nil || *month != 11 {
		t.Fatalf("month: %v %v", month, err)
	}

	_, err = OptionalIntQuery(r, "year")
	var fe FieldError
	if !errors.As(err, &fe) || fe.Field != "year" {
		t.Fatalf("expected field error, got %v", err)
	}

	missing, err := OptionalIntQuery(r, "day")
	if err != nil || missing != nil {
		t.Fatalf("missing: %v %v", missing, err)
	}
}
