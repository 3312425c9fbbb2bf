package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
	"github.com/kirillkom/bd-pipeline/internal/core/ports"
)

const (
	defaultPageSize   = 25
	maxPageSize       = 100
	defaultHistoryLen = 20
	maxHistoryLen     = 200
)

var leadSortColumns = map[string]struct{}{
	"created_at":       {},
	"updated_at":       {},
	"confidence_score": {},
	"org_name":         {},
	"title":            {},
	"status":           {},
}

type LeadReviewUseCase struct {
	leads ports.LeadRepository
	runs  ports.RunRepository
}

func NewLeadReviewUseCase(leads ports.LeadRepository, runs ports.RunRepository) *LeadReviewUseCase {
	return &LeadReviewUseCase{leads: leads, runs: runs}
}

func (uc *LeadReviewUseCase) ListLeads(ctx context.Context, filter domain.LeadFilter) (*domain.LeadPage, error) {
	normalized, err := normalizeLeadFilter(filter)
	if err != nil {
		return nil, err
	}

	items, total, err := uc.leads.List(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	if items == nil {
		items = []domain.Lead{}
	}
	return &domain.LeadPage{
		Items:    items,
		Total:    total,
		Page:     normalized.Page,
		PageSize: normalized.PageSize,
	}, nil
}

func (uc *LeadReviewUseCase) GetLead(ctx context.Context, id int64) (*domain.Lead, error) {
	if id <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get lead", fmt.Errorf("id must be positive, got %d", id))
	}
	return uc.leads.GetByID(ctx, id)
}

func (uc *LeadReviewUseCase) ReviewLead(ctx context.Context, id int64, review domain.LeadReview) (*domain.Lead, error) {
	if id <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "review lead", fmt.Errorf("id must be positive, got %d", id))
	}
	if review.Status == nil && review.Notes == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "review lead", errors.New("nothing to update"))
	}
	if review.Status != nil && !review.Status.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "review lead", fmt.Errorf("unknown status %q", *review.Status))
	}
	return uc.leads.UpdateReview(ctx, id, review)
}

func (uc *LeadReviewUseCase) DashboardStats(ctx context.Context) (domain.DashboardStats, error) {
	stats, err := uc.leads.Stats(ctx)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("lead stats: %w", err)
	}

	runs, err := uc.runs.ListRuns(ctx, 10)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("recent runs: %w", err)
	}
	stats.RecentRuns = runs
	if stats.RecentRuns == nil {
		stats.RecentRuns = []domain.ScrapeRun{}
	}
	return stats, nil
}

func (uc *LeadReviewUseCase) RunHistory(ctx context.Context, limit int) ([]domain.ScrapeRun, error) {
	if limit <= 0 {
		limit = defaultHistoryLen
	}
	if limit > maxHistoryLen {
		limit = maxHistoryLen
	}
	runs, err := uc.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if runs == nil {
		runs = []domain.ScrapeRun{}
	}
	return runs, nil
}

func normalizeLeadFilter(filter domain.LeadFilter) (domain.LeadFilter, error) {
	out := filter
	if out.Page <= 0 {
		out.Page = 1
	}
	if out.PageSize <= 0 {
		out.PageSize = defaultPageSize
	}
	if out.PageSize > maxPageSize {
		return out, domain.WrapError(domain.ErrInvalidInput, "list leads", fmt.Errorf("page_size must be <= %d", maxPageSize))
	}

	out.SortBy = strings.ToLower(strings.TrimSpace(out.SortBy))
	if out.SortBy == "" {
		out.SortBy = "created_at"
		out.SortDesc = true
	}
	if _, ok := leadSortColumns[out.SortBy]; !ok {
		return out, domain.WrapError(domain.ErrInvalidInput, "list leads", fmt.Errorf("unsupported sort_by %q", filter.SortBy))
	}
	if out.Status != "" && !out.Status.Valid() {
		return out, domain.WrapError(domain.ErrInvalidInput, "list leads", fmt.Errorf("unknown status %q", out.Status))
	}
	if out.SourceType != "" && !out.SourceType.Valid() {
		return out, domain.WrapError(domain.ErrInvalidInput, "list leads", fmt.Errorf("unknown source_type %q", out.SourceType))
	}
	if out.MinConfidence != nil && (*out.MinConfidence < 0 || *out.MinConfidence > 1) {
		return out, domain.WrapError(domain.ErrInvalidInput, "list leads", errors.New("min_confidence must be within [0,1]"))
	}
	out.Search = strings.TrimSpace(out.Search)
	return out, nil
}

type SourceConfigUseCase struct {
	sources ports.SourceConfigRepository
}

func NewSourceConfigUseCase(sources ports.SourceConfigRepository) *SourceConfigUseCase {
	return &SourceConfigUseCase{sources: sources}
}

func (uc *SourceConfigUseCase) ListSources(ctx context.Context) ([]domain.SourceConfig, error) {
	return uc.sources.List(ctx)
}

func (uc *SourceConfigUseCase) AddSource(ctx context.Context, src domain.SourceConfig) (*domain.SourceConfig, error) {
	src.Name = strings.TrimSpace(src.Name)
	src.URL = strings.TrimSpace(src.URL)
	if src.Name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "add source", errors.New("name is required"))
	}
	if !src.SourceType.Valid() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "add source", fmt.Errorf("unknown source_type %q", src.SourceType))
	}
	if src.SourceType.IsFeed() && src.URL == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "add source", errors.New("feed sources need a url"))
	}
	if src.ScrapeFrequencyMinutes <= 0 {
		src.ScrapeFrequencyMinutes = 360
	}
	src.IsActive = true
	return uc.sources.Upsert(ctx, src)
}

func (uc *SourceConfigUseCase) DisableSource(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.WrapError(domain.ErrInvalidInput, "disable source", errors.New("name is required"))
	}
	return uc.sources.SetActive(ctx, name, false)
}
