package ports

import (
	"context"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
)

// SourceAdapter fetches raw candidate leads from one upstream source.
// Endpoint-level failures are logged and skipped; an error means the whole pass failed.
type SourceAdapter interface {
	Name() string
	SourceType() domain.SourceType
	Scrape(ctx context.Context) ([]domain.RawLead, error)
}

// PreFilterer lets an adapter replace the shared keyword gate.
type PreFilterer interface {
	PreFilter(lead domain.RawLead) bool
}

// LeadFilter is the cheap accept/reject gate applied before any paid call.
type LeadFilter interface {
	Allow(lead domain.RawLead) bool
}

// FeedCatalog resolves the feed URLs to poll on a given pass.
type FeedCatalog interface {
	FeedURLs(ctx context.Context) []string
}

// LeadStore is the write side used by the pipeline.
type LeadStore interface {
	ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error)
	Create(ctx context.Context, lead *domain.Lead) error
}

// LeadRepository adds the dashboard read model to LeadStore.
type LeadRepository interface {
	LeadStore
	GetByID(ctx context.Context, id int64) (*domain.Lead, error)
	List(ctx context.Context, filter domain.LeadFilter) ([]domain.Lead, int, error)
	UpdateReview(ctx context.Context, id int64, review domain.LeadReview) (*domain.Lead, error)
	Stats(ctx context.Context) (domain.DashboardStats, error)
}

// RunRepository records scrape runs.
type RunRepository interface {
	CreateRun(ctx context.Context, sourceType domain.SourceType, sourceName string) (*domain.ScrapeRun, error)
	FinishRun(ctx context.Context, run *domain.ScrapeRun) error
	ListRuns(ctx context.Context, limit int) ([]domain.ScrapeRun, error)
}

// SourceConfigRepository manages operator-defined sources.
type SourceConfigRepository interface {
	ListActiveFeedURLs(ctx context.Context) ([]string, error)
	List(ctx context.Context) ([]domain.SourceConfig, error)
	Upsert(ctx context.Context, src domain.SourceConfig) (*domain.SourceConfig, error)
	SetActive(ctx context.Context, name string, active bool) error
}

// LeadQualifier scores one lead. Unusable model output is an absent result;
// only hard failures such as cancellation are returned as errors.
type LeadQualifier interface {
	Qualify(ctx context.Context, lead domain.RawLead) (domain.QualifyResult, error)
}

// BatchClassifier screens many leads with one call. It never fails; on error every lead passes.
type BatchClassifier interface {
	BatchClassify(ctx context.Context, leads []domain.RawLead) []bool
}

// OrgEnricher looks up registry data for an organization. Nil means nothing usable was found.
type OrgEnricher interface {
	EnrichOrg(ctx context.Context, name string) *domain.Enrichment
}

// LeadEventPublisher announces stored leads.
type LeadEventPublisher interface {
	PublishLeadCreated(ctx context.Context, event domain.LeadEvent) error
}

// CycleObserver receives pipeline measurements.
type CycleObserver interface {
	ObserveRun(source string, status domain.RunStatus, found, fresh, qualified int, seconds float64)
	ObserveQualification(source, outcome string)
}
