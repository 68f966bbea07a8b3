package apiutil

import (
	"net/http"
	"strconv"
	"strings"
)

// OptionalIntQuery reads an integer query parameter. A missing or blank
// parameter yields nil.
func OptionalIntQuery(r *http.Request, key string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, FieldError{Field: key, Reason: "must be an integer"}
	}
	return &value, nil
}

// PathOrQuery returns the named path value, falling back to the query
// parameter of the same name.
func PathOrQuery(r *http.Request, key string) string {
	if v := strings.TrimSpace(r.PathValue(key)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get(key))
}
