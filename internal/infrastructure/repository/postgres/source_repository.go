package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
)

type SourceConfigRepository struct {
	db *sql.DB
}

func NewSourceConfigRepository(db *sql.DB) *SourceConfigRepository {
	return &SourceConfigRepository{db: db}
}

func (r *SourceConfigRepository) ListActiveFeedURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT url
FROM source_configs
WHERE is_active AND source_type IN ($1, $2) AND url <> ''
ORDER BY id
`, string(domain.SourceRSSRFP), string(domain.SourceRSSNews))
	if err != nil {
		return nil, fmt.Errorf("list active feeds: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan feed url: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed urls: %w", err)
	}
	return urls, nil
}

func (r *SourceConfigRepository) List(ctx context.Context) ([]domain.SourceConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, source_type, url, is_active, last_scraped_at, scrape_frequency_minutes, config_json
FROM source_configs
ORDER BY name
`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	out := []domain.SourceConfig{}
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

// Upsert inserts a source or replaces the row with the same name.
func (r *SourceConfigRepository) Upsert(ctx context.Context, src domain.SourceConfig) (*domain.SourceConfig, error) {
	cfg, err := json.Marshal(nonNilMap(src.Config))
	if err != nil {
		return nil, fmt.Errorf("marshal source config: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
INSERT INTO source_configs (name, source_type, url, is_active, scrape_frequency_minutes, config_json)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (name) DO UPDATE SET
	source_type = EXCLUDED.source_type,
	url = EXCLUDED.url,
	is_active = EXCLUDED.is_active,
	scrape_frequency_minutes = EXCLUDED.scrape_frequency_minutes,
	config_json = EXCLUDED.config_json
RETURNING id, name, source_type, url, is_active, last_scraped_at, scrape_frequency_minutes, config_json
`, src.Name, string(src.SourceType), src.URL, src.IsActive, src.ScrapeFrequencyMinutes, cfg)
	return scanSource(row)
}

func (r *SourceConfigRepository) SetActive(ctx context.Context, name string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE source_configs SET is_active = $2 WHERE name = $1`, name, active)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update source rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrSourceNotFound, "set source active", fmt.Errorf("name=%s", name))
	}
	return nil
}

func scanSource(row rowScanner) (*domain.SourceConfig, error) {
	var (
		src        domain.SourceConfig
		sourceType string
		lastRun    sql.NullTime
		cfgRaw     []byte
	)
	if err := row.Scan(&src.ID, &src.Name, &sourceType, &src.URL, &src.IsActive, &lastRun, &src.ScrapeFrequencyMinutes, &cfgRaw); err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}
	src.SourceType = domain.SourceType(sourceType)
	if lastRun.Valid {
		t := lastRun.Time
		src.LastScrapedAt = &t
	}
	if err := unmarshalJSONColumn(cfgRaw, &src.Config); err != nil {
		return nil, fmt.Errorf("unmarshal source config: %w", err)
	}
	return &src, nil
}
