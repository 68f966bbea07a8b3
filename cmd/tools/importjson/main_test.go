package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codr1/folio/internal/availability"
	"github.com/codr1/folio/internal/store"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestImportDaysAndTemplates(t *testing.T) {
	ctx := context.Background()
	svc := availability.NewService(store.NewMemory(), availability.Options{Location: time.UTC})

	days := writeFile(t, "availability.json", `[
		{"date":"2025-03-10","status":"busy","slots":[]},
		{"date":"2025-03-11","status":"limited","slots":[{"start":"09:00","end":"10:00","timezone":"UTC"}]}
	]`)
	n, err := importDays(ctx, svc, days)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	day, err := svc.Resolve(ctx, "2025-03-11")
	require.NoError(t, err)
	assert.Equal(t, availability.StatusLimited, day.Status)
	assert.Len(t, day.Slots, 1)

	templates := writeFile(t, "templates.json", `[
		{"name":"Quiet Week","days":{"Monday":{"status":"unavailable","slots":[]}}}
	]`)
	n, err = importTemplates(ctx, svc, templates)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored := svc.GetTemplates(ctx)
	require.Len(t, stored, 1)
	assert.Contains(t, stored[0].Days, "monday")
}

func TestImportDaysRejectsInvalidBatch(t *testing.T) {
	ctx := context.Background()
	svc := availability.NewService(store.NewMemory(), availability.Options{Location: time.UTC})

	days := writeFile(t, "availability.json", `[
		{"date":"2025-03-10","status":"busy","slots":[]},
		{"date":"2025-02-30","status":"busy","slots":[]}
	]`)
	_, err := importDays(ctx, svc, days)
	require.Error(t, err)
	assert.Empty(t, svc.List(ctx))
}
