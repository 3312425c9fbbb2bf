package ports

import (
	"context"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
)

// CycleRunner is the inbound contract for one full pipeline pass.
type CycleRunner interface {
	RunCycle(ctx context.Context) (domain.CycleResult, error)
}

// LeadService is the inbound contract for the review dashboard.
type LeadService interface {
	ListLeads(ctx context.Context, filter domain.LeadFilter) (*domain.LeadPage, error)
	GetLead(ctx context.Context, id int64) (*domain.Lead, error)
	ReviewLead(ctx context.Context, id int64, review domain.LeadReview) (*domain.Lead, error)
	DashboardStats(ctx context.Context) (domain.DashboardStats, error)
	RunHistory(ctx context.Context, limit int) ([]domain.ScrapeRun, error)
}

// SourceManager is the inbound contract for source configuration.
type SourceManager interface {
	ListSources(ctx context.Context) ([]domain.SourceConfig, error)
	AddSource(ctx context.Context, src domain.SourceConfig) (*domain.SourceConfig, error)
	DisableSource(ctx context.Context, name string) error
}
