// cmd/tools/importjson/main.go
//
// importjson loads availability records and weekly templates from JSON files
// into the configured store, validating every entry on the way in.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/folio/internal/availability"
	"github.com/codr1/folio/internal/config"
	"github.com/codr1/folio/internal/store"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		configPath    = flag.String("config", "config/app.yaml", "Path to app config")
		daysPath      = flag.String("availability", "", "JSON array of availability records")
		templatesPath = flag.String("templates", "", "JSON array of weekly templates")
	)
	flag.Parse()

	if *daysPath == "" && *templatesPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load timezone")
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("Failed to open store")
	}
	defer st.Close()

	svc := availability.NewService(st, availability.Options{
		Location:   loc,
		BookingURL: cfg.Availability.BookingURL,
	})

	if *daysPath != "" {
		n, err := importDays(ctx, svc, *daysPath)
		if err != nil {
			log.Fatal().Err(err).Str("file", *daysPath).Msg("Failed to import availability")
		}
		log.Info().Int("records", n).Msg("Availability imported")
	}
	if *templatesPath != "" {
		n, err := importTemplates(ctx, svc, *templatesPath)
		if err != nil {
			log.Fatal().Err(err).Str("file", *templatesPath).Msg("Failed to import templates")
		}
		log.Info().Int("templates", n).Msg("Templates imported")
	}
}

// importDays upserts every record in one atomic batch.
func importDays(ctx context.Context, svc *availability.Service, path string) (int, error) {
	var days []availability.DayAvailability
	if err := readJSON(path, &days); err != nil {
		return 0, err
	}
	updates := make([]availability.DayUpdate, len(days))
	for i, day := range days {
		slots := day.Slots
		if slots == nil {
			slots = []availability.TimeSlot{}
		}
		bookingURL := day.BookingURL
		updates[i] = availability.DayUpdate{
			Date:       day.Date,
			Status:     day.Status,
			Slots:      &slots,
			BookingURL: &bookingURL,
		}
	}
	result, err := svc.BulkPutAvailability(ctx, updates)
	if err != nil {
		return 0, err
	}
	return result.UpdatedCount, nil
}

func importTemplates(ctx context.Context, svc *availability.Service, path string) (int, error) {
	var templates []availability.WeeklyTemplate
	if err := readJSON(path, &templates); err != nil {
		return 0, err
	}
	for i, tmpl := range templates {
		if _, err := svc.PutTemplate(ctx, tmpl); err != nil {
			return i, fmt.Errorf("template %q: %w", tmpl.Name, err)
		}
	}
	return len(templates), nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
