package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/bd-pipeline/internal/config"
	"github.com/kirillkom/bd-pipeline/internal/core/domain"
	"github.com/kirillkom/bd-pipeline/internal/core/ports"
	"github.com/kirillkom/bd-pipeline/internal/core/usecase"
	"github.com/kirillkom/bd-pipeline/internal/infrastructure/enrichment/propublica"
	natsevents "github.com/kirillkom/bd-pipeline/internal/infrastructure/events/nats"
	"github.com/kirillkom/bd-pipeline/internal/infrastructure/llm/anthropic"
	"github.com/kirillkom/bd-pipeline/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/bd-pipeline/internal/infrastructure/resilience"
	"github.com/kirillkom/bd-pipeline/internal/infrastructure/sources/feeds"
	"github.com/kirillkom/bd-pipeline/internal/infrastructure/sources/grantsgov"
	"github.com/kirillkom/bd-pipeline/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Leads    ports.LeadService
	Sources  ports.SourceManager
	Cycle    ports.CycleRunner
	Grants   *grantsgov.Adapter
	Metrics  *metrics.HTTPServerMetrics
	Breakers *resilience.Executor

	closeFn func()
}

// New opens Postgres, applies the schema and wires the pipeline. The LLM
// qualifier is only attached when an API key is configured and the event
// publisher only when NATS_URL is set.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	leadRepo := postgres.NewLeadRepository(db)
	runRepo := postgres.NewRunRepository(db)
	sourceRepo := postgres.NewSourceConfigRepository(db)

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	pipelineMetrics := metrics.NewPipelineMetrics(service, httpMetrics.Registry())

	executor := resilience.NewExecutor(resilience.Config{
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
		OnStateChange:           pipelineMetrics.ObserveBreaker,
	})

	catalog := usecase.NewConfiguredFeedCatalog(sourceRepo, cfg.Keywords.FallbackFeeds)
	grants := grantsgov.New(cfg.GrantsGovBaseURL, grantsgov.Options{
		HTTPTimeout: cfg.HTTPTimeout,
		Rows:        cfg.GrantsRows,
		Keywords:    cfg.Keywords.GrantsSearch,
	})
	adapters := []ports.SourceAdapter{
		feeds.New(catalog, feeds.Options{
			HTTPTimeout: cfg.HTTPTimeout,
			MaxEntries:  cfg.MaxResultsPerSource,
		}),
		grants,
	}

	var (
		qualifier ports.LeadQualifier
		screener  ports.BatchClassifier
		publisher ports.LeadEventPublisher
	)
	if cfg.QualifierEnabled() {
		llm := anthropic.New(anthropic.Options{
			BaseURL:            cfg.AnthropicBaseURL,
			APIKey:             cfg.AnthropicAPIKey,
			Model:              cfg.LLMModel,
			MaxTokens:          cfg.LLMMaxTokens,
			HTTPTimeout:        cfg.LLMTimeout,
			ResilienceExecutor: executor,
		})
		qualifier = anthropic.NewQualifier(llm)
		if cfg.BatchScreenEnabled {
			screener = anthropic.NewBatchClassifier(llm, cfg.BatchSize)
		}
	} else {
		slog.Warn("llm_qualifier_disabled", "reason", "ANTHROPIC_API_KEY is empty")
	}

	enricher := propublica.New(cfg.ProPublicaBaseURL, propublica.Options{
		HTTPTimeout:        cfg.HTTPTimeout,
		CacheTTL:           cfg.EnrichmentCacheTTL,
		ResilienceExecutor: executor,
	})

	var events *natsevents.Publisher
	if cfg.NATSURL != "" {
		events, err = natsevents.NewPublisher(cfg.NATSURL, cfg.NATSSubject, natsevents.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		publisher = events
	}

	cycle := usecase.NewRunCycleUseCase(
		adapters,
		usecase.NewKeywordPreFilter(cfg.Keywords.Intent, cfg.Keywords.Government, cfg.Keywords.Sector),
		leadRepo,
		runRepo,
		qualifier,
		screener,
		enricher,
		publisher,
		pipelineMetrics,
		domain.CycleLimits{
			MinConfidence:  cfg.MinConfidence,
			AdapterTimeout: cfg.AdapterTimeout,
			BatchScreen:    screener != nil,
		},
	)

	return &App{
		Config: cfg,

		Leads:    usecase.NewLeadReviewUseCase(leadRepo, runRepo),
		Sources:  usecase.NewSourceConfigUseCase(sourceRepo),
		Cycle:    cycle,
		Grants:   grants,
		Metrics:  httpMetrics,
		Breakers: executor,

		closeFn: func() {
			if events != nil {
				events.Close()
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
