package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

const pruneJobName = "availability_retention"

// Pruner removes explicit availability records dated before cutoff.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// PruneObserver is told how many records each run removed.
type PruneObserver interface {
	ObservePrune(removed int)
}

type PruneJob struct {
	Pruner        Pruner
	RetentionDays int
	Cron          string
	Observer      PruneObserver
	Now           func() time.Time
}

// Run prunes once. Records older than RetentionDays before today go.
func (j PruneJob) Run(ctx context.Context) (int, error) {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	cutoff := now().AddDate(0, 0, -j.RetentionDays)

	removed, err := j.Pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if j.Observer != nil {
		j.Observer.ObservePrune(removed)
	}
	return removed, nil
}

// RegisterPruneJob schedules job. RetentionDays <= 0 disables it.
func RegisterPruneJob(s *Service, job PruneJob) error {
	if job.RetentionDays <= 0 {
		log.Info().Msg("Availability retention disabled")
		return nil
	}
	if job.Pruner == nil {
		return fmt.Errorf("prune job requires a pruner")
	}

	jobLogger := log.With().
		Str("component", "availability_retention_job").
		Str("job_name", pruneJobName).
		Int("retention_days", job.RetentionDays).
		Logger()

	_, err := s.AddJob(pruneJobName, job.Cron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		ctx = jobLogger.WithContext(ctx)

		removed, err := job.Run(ctx)
		if err != nil {
			jobLogger.Error().Err(err).Msg("Failed to prune availability records")
			return
		}
		jobLogger.Info().Int("removed", removed).Msg("Availability records pruned")
	}, gocron.WithSingletonMode(gocron.LimitModeReschedule))
	if err != nil {
		return fmt.Errorf("add availability retention job: %w", err)
	}
	return nil
}
