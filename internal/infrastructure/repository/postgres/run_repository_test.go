package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
)

func TestRunRepositoryCreateAndFinish(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	started := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO scrape_runs").
		WithArgs("grants_gov", "Grants.gov", "running").
		WillReturnRows(sqlmock.NewRows([]string{"id", "started_at"}).AddRow(int64(12), started))
	mock.ExpectExec("UPDATE scrape_runs").
		WithArgs(int64(12), sqlmock.AnyArg(), 40, 5, 2, "", "completed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRunRepository(db)
	run, err := repo.CreateRun(context.Background(), domain.SourceGrantsGov, "Grants.gov")
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if run.ID != 12 || run.Status != domain.RunStatusRunning {
		t.Fatalf("unexpected run %+v", run)
	}

	run.ItemsFound, run.ItemsNew, run.ItemsQualified = 40, 5, 2
	run.Status = domain.RunStatusCompleted
	if err := repo.FinishRun(context.Background(), run); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}
	if run.CompletedAt == nil {
		t.Fatalf("expected completion time to be stamped")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunRepositoryFinishMissingRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE scrape_runs").WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewRunRepository(db).FinishRun(context.Background(), &domain.ScrapeRun{ID: 99, Status: domain.RunStatusFailed})
	if err == nil {
		t.Fatalf("expected error for missing run")
	}
}

func TestRunRepositoryListRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "started_at", "completed_at", "source_type", "source_name", "items_found", "items_new", "items_qualified", "errors", "status"}).
		AddRow(int64(2), now, now, "rss_rfp", "RSS Feeds", 10, 3, 1, "", "completed").
		AddRow(int64(1), now.Add(-time.Hour), nil, "grants_gov", "Grants.gov", 0, 0, 0, "timeout", "failed")
	mock.ExpectQuery("FROM scrape_runs").WithArgs(10).WillReturnRows(rows)

	runs, err := NewRunRepository(db).ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].CompletedAt == nil || runs[1].CompletedAt != nil {
		t.Fatalf("unexpected runs %+v", runs)
	}
	if runs[1].Status != domain.RunStatusFailed || runs[1].Errors != "timeout" {
		t.Fatalf("unexpected failed run %+v", runs[1])
	}
}
