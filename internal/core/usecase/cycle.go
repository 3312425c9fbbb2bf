package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
	"github.com/kirillkom/bd-pipeline/internal/core/ports"
)

const (
	outcomeAccepted       = "accepted"
	outcomeAbsent         = "absent"
	outcomeGovernment     = "government"
	outcomeBelowThreshold = "below_threshold"
	outcomeScreenedOut    = "screened_out"
	outcomeError          = "error"
)

type RunCycleUseCase struct {
	adapters  []ports.SourceAdapter
	filter    ports.LeadFilter
	leads     ports.LeadStore
	runs      ports.RunRepository
	qualifier ports.LeadQualifier
	screener  ports.BatchClassifier
	enricher  ports.OrgEnricher
	publisher ports.LeadEventPublisher
	observer  ports.CycleObserver
	limits    domain.CycleLimits
}

// NewRunCycleUseCase wires one pass over every adapter. qualifier, screener,
// enricher, publisher and observer may be nil; without a qualifier every new
// lead is stored unscored.
func NewRunCycleUseCase(
	adapters []ports.SourceAdapter,
	filter ports.LeadFilter,
	leads ports.LeadStore,
	runs ports.RunRepository,
	qualifier ports.LeadQualifier,
	screener ports.BatchClassifier,
	enricher ports.OrgEnricher,
	publisher ports.LeadEventPublisher,
	observer ports.CycleObserver,
	limits domain.CycleLimits,
) *RunCycleUseCase {
	if limits.AdapterTimeout <= 0 {
		limits.AdapterTimeout = 10 * time.Minute
	}
	if limits.MinConfidence < 0 {
		limits.MinConfidence = 0
	}

	return &RunCycleUseCase{
		adapters:  adapters,
		filter:    filter,
		leads:     leads,
		runs:      runs,
		qualifier: qualifier,
		screener:  screener,
		enricher:  enricher,
		publisher: publisher,
		observer:  observer,
		limits:    limits,
	}
}

type runCounts struct {
	found     int
	fresh     int
	qualified int
}

// RunCycle runs every adapter once, in order. A failing adapter marks only its
// own run failed. The error return is reserved for cancellation of the whole pass.
func (uc *RunCycleUseCase) RunCycle(ctx context.Context) (domain.CycleResult, error) {
	result := domain.CycleResult{
		Sources: make([]domain.SourceRunResult, 0, len(uc.adapters)),
		Errors:  make(map[string]string),
	}

	for _, adapter := range uc.adapters {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("cycle interrupted: %w", err)
		}
		result.Add(uc.runAdapter(ctx, adapter))
	}

	slog.Info("cycle_completed",
		"sources", len(result.Sources),
		"total_found", result.TotalFound,
		"total_new", result.TotalNew,
		"total_qualified", result.TotalQualified,
		"failed_sources", len(result.Errors),
	)
	return result, nil
}

func (uc *RunCycleUseCase) runAdapter(ctx context.Context, adapter ports.SourceAdapter) domain.SourceRunResult {
	start := time.Now()
	name := adapter.Name()
	res := domain.SourceRunResult{Source: name}

	run, err := uc.runs.CreateRun(ctx, adapter.SourceType(), name)
	if err != nil {
		slog.Error("scrape_run_create_failed", "source", name, "error", err)
		res.Status = domain.RunStatusFailed
		res.Error = fmt.Sprintf("create run: %v", err)
		uc.observeRun(name, res.Status, runCounts{}, time.Since(start))
		return res
	}
	res.RunID = run.ID

	adapterCtx, cancel := context.WithTimeout(ctx, uc.limits.AdapterTimeout)
	counts, procErr := uc.process(adapterCtx, adapter, run.ID)
	cancel()

	run.ItemsFound = counts.found
	run.ItemsNew = counts.fresh
	run.ItemsQualified = counts.qualified
	completedAt := time.Now().UTC()
	run.CompletedAt = &completedAt
	if procErr != nil {
		run.Status = domain.RunStatusFailed
		run.Errors = procErr.Error()
		slog.Error("scrape_run_failed", "source", name, "run_id", run.ID, "error", procErr)
	} else {
		run.Status = domain.RunStatusCompleted
	}

	// The adapter deadline may have expired; the run record still has to land.
	if err := uc.runs.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Error("scrape_run_finish_failed", "source", name, "run_id", run.ID, "error", err)
	}

	res.Status = run.Status
	res.ItemsFound = run.ItemsFound
	res.ItemsNew = run.ItemsNew
	res.ItemsQualified = run.ItemsQualified
	res.Error = run.Errors

	slog.Info("scrape_run_finished",
		"source", name,
		"run_id", run.ID,
		"status", string(run.Status),
		"items_found", run.ItemsFound,
		"items_new", run.ItemsNew,
		"items_qualified", run.ItemsQualified,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	uc.observeRun(name, run.Status, counts, time.Since(start))
	return res
}

func (uc *RunCycleUseCase) process(ctx context.Context, adapter ports.SourceAdapter, runID int64) (runCounts, error) {
	var counts runCounts
	name := adapter.Name()

	raw, err := adapter.Scrape(ctx)
	counts.found = len(raw)
	if err != nil {
		return counts, fmt.Errorf("scrape %s: %w", name, err)
	}

	filtered := uc.preFilter(adapter, raw)
	slog.Debug("prefilter_applied", "source", name, "found", len(raw), "passed", len(filtered))

	fresh, err := uc.dedup(ctx, filtered)
	if err != nil {
		return counts, err
	}
	counts.fresh = len(fresh)

	if uc.qualifier == nil {
		for _, lead := range fresh {
			if uc.persist(ctx, name, domain.NewLeadFromRaw(lead, runID)) {
				counts.qualified++
			}
		}
		return counts, nil
	}

	candidates := uc.screen(ctx, name, fresh)
	for _, lead := range candidates {
		if err := ctx.Err(); err != nil {
			return counts, fmt.Errorf("qualify %s: %w", name, err)
		}

		stored, err := uc.qualifyAndStore(ctx, name, lead, runID)
		if err != nil {
			return counts, err
		}
		if stored {
			counts.qualified++
		}
	}
	return counts, nil
}

func (uc *RunCycleUseCase) preFilter(adapter ports.SourceAdapter, raw []domain.RawLead) []domain.RawLead {
	allow := func(domain.RawLead) bool { return true }
	if custom, ok := adapter.(ports.PreFilterer); ok {
		allow = custom.PreFilter
	} else if uc.filter != nil {
		allow = uc.filter.Allow
	}

	out := make([]domain.RawLead, 0, len(raw))
	for _, lead := range raw {
		if allow(lead) {
			out = append(out, lead)
		}
	}
	return out
}

// dedup drops leads already stored and repeats within the same pass.
func (uc *RunCycleUseCase) dedup(ctx context.Context, leads []domain.RawLead) ([]domain.RawLead, error) {
	seen := make(map[string]struct{}, len(leads))
	out := make([]domain.RawLead, 0, len(leads))

	for _, lead := range leads {
		fp := lead.Fingerprint()
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}

		exists, err := uc.leads.ExistsByFingerprint(ctx, fp)
		if err != nil {
			return nil, fmt.Errorf("check fingerprint: %w", err)
		}
		if !exists {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (uc *RunCycleUseCase) screen(ctx context.Context, source string, leads []domain.RawLead) []domain.RawLead {
	if !uc.limits.BatchScreen || uc.screener == nil || len(leads) == 0 {
		return leads
	}

	verdicts := uc.screener.BatchClassify(ctx, leads)
	out := make([]domain.RawLead, 0, len(leads))
	for i, lead := range leads {
		if i < len(verdicts) && verdicts[i] {
			out = append(out, lead)
			continue
		}
		uc.observeQualification(source, outcomeScreenedOut)
	}
	slog.Info("batch_screen_applied", "source", source, "candidates", len(leads), "passed", len(out))
	return out
}

func (uc *RunCycleUseCase) qualifyAndStore(ctx context.Context, source string, raw domain.RawLead, runID int64) (bool, error) {
	result, err := uc.qualifier.Qualify(ctx, raw)
	if err != nil {
		uc.observeQualification(source, outcomeError)
		return false, fmt.Errorf("qualify lead %q: %w", raw.Title, err)
	}
	if !result.Present() {
		uc.observeQualification(source, outcomeAbsent)
		slog.Debug("lead_qualification_absent", "source", source, "title", raw.Title, "reason", result.Reason)
		return false, nil
	}

	q := result.Qualification
	if q.Government() {
		uc.observeQualification(source, outcomeGovernment)
		slog.Debug("lead_skipped_government", "source", source, "title", raw.Title)
		return false, nil
	}
	if q.Confidence() < uc.limits.MinConfidence {
		uc.observeQualification(source, outcomeBelowThreshold)
		slog.Debug("lead_skipped_low_confidence", "source", source, "title", raw.Title, "confidence", q.Confidence())
		return false, nil
	}
	uc.observeQualification(source, outcomeAccepted)

	lead := domain.NewLeadFromRaw(raw, runID)
	lead.ApplyQualification(q)
	lead.Enrichment = uc.enrich(ctx, q, raw)

	return uc.persist(ctx, source, lead), nil
}

func (uc *RunCycleUseCase) enrich(ctx context.Context, q domain.Qualification, raw domain.RawLead) *domain.Enrichment {
	if uc.enricher == nil {
		return nil
	}
	name := ""
	if q.OrgName != nil {
		name = strings.TrimSpace(*q.OrgName)
	}
	if name == "" {
		name = strings.TrimSpace(raw.OrgName)
	}
	if name == "" {
		return nil
	}
	return uc.enricher.EnrichOrg(ctx, name)
}

// persist stores one lead. Failures are logged and reported as not stored.
func (uc *RunCycleUseCase) persist(ctx context.Context, source string, lead *domain.Lead) bool {
	if err := uc.leads.Create(ctx, lead); err != nil {
		if errors.Is(err, domain.ErrDuplicateLead) {
			slog.Debug("lead_duplicate_skipped", "source", source, "fingerprint", lead.Fingerprint)
			return false
		}
		slog.Warn("lead_persist_failed", "source", source, "title", lead.Title, "error", err)
		return false
	}

	uc.publish(ctx, source, lead)
	return true
}

func (uc *RunCycleUseCase) publish(ctx context.Context, source string, lead *domain.Lead) {
	if uc.publisher == nil {
		return
	}
	event := domain.LeadEvent{
		EventID:         uuid.NewString(),
		LeadID:          lead.ID,
		Fingerprint:     lead.Fingerprint,
		Title:           lead.Title,
		OrgName:         lead.OrgName,
		ConfidenceScore: lead.ConfidenceScore,
		SourceName:      lead.SourceName,
		CreatedAt:       lead.CreatedAt,
	}
	if err := uc.publisher.PublishLeadCreated(ctx, event); err != nil {
		slog.Warn("lead_event_publish_failed", "source", source, "lead_id", lead.ID, "error", err)
	}
}

func (uc *RunCycleUseCase) observeRun(source string, status domain.RunStatus, counts runCounts, elapsed time.Duration) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveRun(source, status, counts.found, counts.fresh, counts.qualified, elapsed.Seconds())
}

func (uc *RunCycleUseCase) observeQualification(source, outcome string) {
	if uc.observer == nil {
		return
	}
	uc.observer.ObserveQualification(source, outcome)
}
