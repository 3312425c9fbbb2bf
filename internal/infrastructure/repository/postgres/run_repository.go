package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
)

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) CreateRun(ctx context.Context, sourceType domain.SourceType, sourceName string) (*domain.ScrapeRun, error) {
	run := &domain.ScrapeRun{
		SourceType: sourceType,
		SourceName: sourceName,
		Status:     domain.RunStatusRunning,
	}
	err := r.db.QueryRowContext(ctx, `
INSERT INTO scrape_runs (source_type, source_name, status)
VALUES ($1, $2, $3)
RETURNING id, started_at
`, string(sourceType), sourceName, string(domain.RunStatusRunning)).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("insert scrape run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) FinishRun(ctx context.Context, run *domain.ScrapeRun) error {
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE scrape_runs
SET completed_at = $2, items_found = $3, items_new = $4, items_qualified = $5, errors = $6, status = $7
WHERE id = $1
`, run.ID, *run.CompletedAt, run.ItemsFound, run.ItemsNew, run.ItemsQualified, run.Errors, string(run.Status))
	if err != nil {
		return fmt.Errorf("finish scrape run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish scrape run rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish scrape run: run %d not found", run.ID)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]domain.ScrapeRun, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, started_at, completed_at, source_type, source_name, items_found, items_new, items_qualified, errors, status
FROM scrape_runs
ORDER BY started_at DESC, id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scrape runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.ScrapeRun, 0, limit)
	for rows.Next() {
		var (
			run         domain.ScrapeRun
			completedAt sql.NullTime
			sourceType  string
			status      string
		)
		if err := rows.Scan(
			&run.ID, &run.StartedAt, &completedAt, &sourceType, &run.SourceName,
			&run.ItemsFound, &run.ItemsNew, &run.ItemsQualified, &run.Errors, &status,
		); err != nil {
			return nil, fmt.Errorf("scan scrape run: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			run.CompletedAt = &t
		}
		run.SourceType = domain.SourceType(sourceType)
		run.Status = domain.RunStatus(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scrape runs: %w", err)
	}
	return runs, nil
}
