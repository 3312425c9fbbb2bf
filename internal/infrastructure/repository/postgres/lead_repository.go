package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
)

const leadColumns = `id, created_at, updated_at, org_name, org_type, org_url, title, summary, raw_text,
	source_url, source_type, source_name, published_at, confidence_score, relevance_reasoning,
	service_matches, intent_signals, is_government, status, notes, fingerprint, enrichment, extra, scrape_run_id`

var leadOrderColumns = map[string]string{
	"created_at":       "created_at",
	"updated_at":       "updated_at",
	"confidence_score": "confidence_score",
	"org_name":         "org_name",
	"title":            "title",
	"status":           "status",
}

type LeadRepository struct {
	db *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

func (r *LeadRepository) ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM leads WHERE fingerprint = $1)`, fingerprint).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check lead fingerprint: %w", err)
	}
	return exists, nil
}

// Create inserts one lead in its own statement. A fingerprint conflict yields ErrDuplicateLead.
func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	services, err := json.Marshal(nonNilServices(lead.ServiceMatches))
	if err != nil {
		return fmt.Errorf("marshal service matches: %w", err)
	}
	signals, err := json.Marshal(nonNilStrings(lead.IntentSignals))
	if err != nil {
		return fmt.Errorf("marshal intent signals: %w", err)
	}
	extra, err := json.Marshal(nonNilMap(lead.Extra))
	if err != nil {
		return fmt.Errorf("marshal extra: %w", err)
	}

	var (
		enrichment []byte
		ein        string
		city       string
		state      string
		revenue    *float64
		assets     *float64
	)
	if lead.Enrichment != nil {
		if enrichment, err = json.Marshal(lead.Enrichment); err != nil {
			return fmt.Errorf("marshal enrichment: %w", err)
		}
		ein, city, state = lead.Enrichment.EIN, lead.Enrichment.City, lead.Enrichment.State
		revenue, assets = lead.Enrichment.TotalRevenue, lead.Enrichment.TotalAssets
	}

	row := r.db.QueryRowContext(ctx, `
INSERT INTO leads (
	org_name, org_type, org_url, title, summary, raw_text, source_url, source_type, source_name, published_at,
	confidence_score, relevance_reasoning, service_matches, intent_signals, is_government, status, notes, fingerprint,
	enrichment, org_ein, org_revenue, org_assets, org_city, org_state, extra, scrape_run_id
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
ON CONFLICT (fingerprint) DO NOTHING
RETURNING id, created_at, updated_at
`,
		lead.OrgName, lead.OrgType, lead.OrgURL, lead.Title, lead.Summary, lead.RawText, lead.SourceURL,
		string(lead.SourceType), lead.SourceName, lead.PublishedAt,
		lead.ConfidenceScore, lead.RelevanceReasoning, services, signals, lead.IsGovernment, string(lead.Status),
		lead.Notes, lead.Fingerprint,
		enrichment, ein, revenue, assets, city, state, extra, lead.ScrapeRunID,
	)
	if err := row.Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WrapError(domain.ErrDuplicateLead, "create lead", fmt.Errorf("fingerprint %s", lead.Fingerprint))
		}
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (r *LeadRepository) GetByID(ctx context.Context, id int64) (*domain.Lead, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrLeadNotFound, "get lead", fmt.Errorf("id=%d", id))
		}
		return nil, err
	}
	return lead, nil
}

// List returns one page of non-government leads plus the total matching count.
func (r *LeadRepository) List(ctx context.Context, filter domain.LeadFilter) ([]domain.Lead, int, error) {
	where, args := buildLeadWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	column, ok := leadOrderColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	pageSize := max(filter.PageSize, 1)
	page := max(filter.Page, 1)

	query := fmt.Sprintf(`SELECT %s FROM leads WHERE %s ORDER BY %s %s NULLS LAST, id %s LIMIT $%d OFFSET $%d`,
		leadColumns, where, column, direction, direction, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Lead, 0, pageSize)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate leads: %w", err)
	}
	return items, total, nil
}

// likeEscaper makes search input match literally inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func buildLeadWhere(filter domain.LeadFilter) (string, []any) {
	clauses := []string{"is_government = FALSE"}
	args := make([]any, 0, 4)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		clauses = append(clauses, "status = "+next(string(filter.Status)))
	}
	if filter.SourceType != "" {
		clauses = append(clauses, "source_type = "+next(string(filter.SourceType)))
	}
	if filter.MinConfidence != nil {
		clauses = append(clauses, "confidence_score >= "+next(*filter.MinConfidence))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := next("%" + likeEscaper.Replace(search) + "%")
		clauses = append(clauses, fmt.Sprintf(`(title ILIKE %[1]s ESCAPE '\' OR org_name ILIKE %[1]s ESCAPE '\' OR summary ILIKE %[1]s ESCAPE '\')`, p))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *LeadRepository) UpdateReview(ctx context.Context, id int64, review domain.LeadReview) (*domain.Lead, error) {
	var status sql.NullString
	if review.Status != nil {
		status = sql.NullString{String: string(*review.Status), Valid: true}
	}
	var notes sql.NullString
	if review.Notes != nil {
		notes = sql.NullString{String: *review.Notes, Valid: true}
	}

	row := r.db.QueryRowContext(ctx, `
UPDATE leads
SET status = COALESCE($2, status), notes = COALESCE($3, notes), updated_at = NOW()
WHERE id = $1
RETURNING `+leadColumns, id, status, notes)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrLeadNotFound, "update lead", fmt.Errorf("id=%d", id))
		}
		return nil, err
	}
	return lead, nil
}

func (r *LeadRepository) Stats(ctx context.Context) (domain.DashboardStats, error) {
	var (
		stats domain.DashboardStats
		avg   sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'new'),
	COUNT(*) FILTER (WHERE status = 'qualified'),
	AVG(confidence_score),
	COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '7 days')
FROM leads
`).Scan(&stats.TotalLeads, &stats.NewLeads, &stats.QualifiedLeads, &avg, &stats.LeadsThisWeek)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("lead totals: %w", err)
	}
	if avg.Valid {
		stats.AvgConfidence = math.Round(avg.Float64*100) / 100
	}

	stats.TopServices = []domain.ServiceCount{}
	rows, err := r.db.QueryContext(ctx, `
SELECT svc, COUNT(*) AS n
FROM leads, jsonb_array_elements_text(service_matches) AS svc
GROUP BY svc
ORDER BY n DESC, svc
LIMIT 5
`)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("top services: %w", err)
	}
	for rows.Next() {
		var sc domain.ServiceCount
		if err := rows.Scan(&sc.Service, &sc.Count); err != nil {
			rows.Close()
			return domain.DashboardStats{}, fmt.Errorf("scan service count: %w", err)
		}
		stats.TopServices = append(stats.TopServices, sc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.DashboardStats{}, fmt.Errorf("iterate service counts: %w", err)
	}

	stats.SourceBreakdown = []domain.SourceCount{}
	rows, err = r.db.QueryContext(ctx, `
SELECT COALESCE(NULLIF(source_name, ''), 'Unknown'), COUNT(*) AS n
FROM leads
GROUP BY 1
ORDER BY n DESC
`)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("source breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sc domain.SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return domain.DashboardStats{}, fmt.Errorf("scan source count: %w", err)
		}
		stats.SourceBreakdown = append(stats.SourceBreakdown, sc)
	}
	if err := rows.Err(); err != nil {
		return domain.DashboardStats{}, fmt.Errorf("iterate source counts: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*domain.Lead, error) {
	var (
		lead        domain.Lead
		sourceType  string
		status      string
		publishedAt sql.NullTime
		confidence  sql.NullFloat64
		servicesRaw []byte
		signalsRaw  []byte
		enrichRaw   []byte
		extraRaw    []byte
		runID       sql.NullInt64
	)
	err := row.Scan(
		&lead.ID, &lead.CreatedAt, &lead.UpdatedAt, &lead.OrgName, &lead.OrgType, &lead.OrgURL, &lead.Title,
		&lead.Summary, &lead.RawText, &lead.SourceURL, &sourceType, &lead.SourceName, &publishedAt, &confidence,
		&lead.RelevanceReasoning, &servicesRaw, &signalsRaw, &lead.IsGovernment, &status, &lead.Notes,
		&lead.Fingerprint, &enrichRaw, &extraRaw, &runID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan lead: %w", err)
	}

	lead.SourceType = domain.SourceType(sourceType)
	lead.Status = domain.LeadStatus(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		lead.PublishedAt = &t
	}
	if confidence.Valid {
		v := confidence.Float64
		lead.ConfidenceScore = &v
	}
	if runID.Valid {
		v := runID.Int64
		lead.ScrapeRunID = &v
	}

	lead.ServiceMatches = []domain.ServiceCategory{}
	if err := unmarshalJSONColumn(servicesRaw, &lead.ServiceMatches); err != nil {
		return nil, fmt.Errorf("unmarshal service matches: %w", err)
	}
	lead.IntentSignals = []string{}
	if err := unmarshalJSONColumn(signalsRaw, &lead.IntentSignals); err != nil {
		return nil, fmt.Errorf("unmarshal intent signals: %w", err)
	}
	if len(enrichRaw) > 0 {
		lead.Enrichment = &domain.Enrichment{}
		if err := json.Unmarshal(enrichRaw, lead.Enrichment); err != nil {
			return nil, fmt.Errorf("unmarshal enrichment: %w", err)
		}
	}
	if err := unmarshalJSONColumn(extraRaw, &lead.Extra); err != nil {
		return nil, fmt.Errorf("unmarshal extra: %w", err)
	}
	return &lead, nil
}

func unmarshalJSONColumn(raw []byte, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func nonNilServices(in []domain.ServiceCategory) []domain.ServiceCategory {
	if in == nil {
		return []domain.ServiceCategory{}
	}
	return in
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilMap(in map[string]any) map[string]any {
	if in == nil {
		return map[string]any{}
	}
	return in
}
