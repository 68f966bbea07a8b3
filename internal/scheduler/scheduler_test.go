package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubPruner struct {
	cutoff  time.Time
	removed int
	err     error
}

func (p *stubPruner) PruneBefore(_ context.Context, cutoff time.Time) (int, error) {
	p.cutoff = cutoff
	return p.removed, p.err
}

type countingObserver struct {
	total int
}

func (o *countingObserver) ObservePrune(removed int) { o.total += removed }

func TestPruneJobRun(t *testing.T) {
	pruner := &stubPruner{removed: 4}
	observer := &countingObserver{}
	now := time.Date(2025, time.March, 31, 3, 15, 0, 0, time.UTC)

	job := PruneJob{Pruner: pruner, RetentionDays: 30, Observer: observer, Now: func() time.Time { return now }}
	removed, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if removed != 4 || observer.total != 4 {
		t.Fatalf("removed: %d observed: %d", removed, observer.total)
	}
	if want := time.Date(2025, time.March, 1, 3, 15, 0, 0, time.UTC); !pruner.cutoff.Equal(want) {
		t.Fatalf("cutoff: %v want %v", pruner.cutoff, want)
	}

	pruner.err = errors.New("store down")
	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected pruner error")
	}
	if observer.total != 4 {
		t.Fatalf("failed run must not be observed, total %d", observer.total)
	}
}

func TestRegisterPruneJob(t *testing.T) {
	svc, err := New(time.UTC)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop() })

	if err := RegisterPruneJob(svc, PruneJob{RetentionDays: 0}); err != nil {
		t.Fatalf("disabled job: %v", err)
	}
	if len(svc.Jobs()) != 0 {
		t.Fatalf("disabled job registered: %v", svc.Jobs())
	}

	if err := RegisterPruneJob(svc, PruneJob{RetentionDays: 30, Cron: "15 3 * * *"}); err == nil {
		t.Fatal("expected error without pruner")
	}

	if err := RegisterPruneJob(svc, PruneJob{Pruner: &stubPruner{}, RetentionDays: 30, Cron: "15 3 * * *"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	jobs := svc.Jobs()
	if len(jobs) != 1 || jobs[0] != pruneJobName {
		t.Fatalf("jobs: %v", jobs)
	}
}

func TestAddJobValidation(t *testing.T) {
	svc, err := New(nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop() })

	if _, err := svc.AddJob("", "* * * * *", func() {}); !errors.Is(err, ErrEmptyJobName) {
		t.Fatalf("expected ErrEmptyJobName, got %v", err)
	}
	if _, err := svc.AddJob("job", " ", func() {}); !errors.Is(err, ErrEmptyCronExpr) {
		t.Fatalf("expected ErrEmptyCronExpr, got %v", err)
	}
	if _, err := svc.AddJob("job", "not a cron", func() {}); err == nil {
		t.Fatal("expected invalid cron error")
	}

	var nilSvc *Service
	if _, err := nilSvc.AddJob("job", "* * * * *", func() {}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
