package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
	"github.com/kirillkom/bd-pipeline/internal/core/ports"
)

type adapterFake struct {
	name       string
	sourceType domain.SourceType
	leads      []domain.RawLead
	err        error
	calls      int
}

func (f *adapterFake) Name() string                  { return f.name }
func (f *adapterFake) SourceType() domain.SourceType { return f.sourceType }

func (f *adapterFake) Scrape(context.Context) ([]domain.RawLead, error) {
	f.calls++
	return f.leads, f.err
}

type customFilterAdapter struct {
	adapterFake
}

func (f *customFilterAdapter) PreFilter(domain.RawLead) bool { return true }

type leadStoreFake struct {
	byFingerprint map[string]*domain.Lead
	created       []*domain.Lead
	createErrFor  map[string]error
	existsErr     error
	nextID        int64
}

func newLeadStoreFake() *leadStoreFake {
	return &leadStoreFake{
		byFingerprint: make(map[string]*domain.Lead),
		createErrFor:  make(map[string]error),
	}
}

func (f *leadStoreFake) ExistsByFingerprint(_ context.Context, fp string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.byFingerprint[fp]
	return ok, nil
}

func (f *leadStoreFake) Create(_ context.Context, lead *domain.Lead) error {
	if err, ok := f.createErrFor[lead.Title]; ok {
		return err
	}
	if _, ok := f.byFingerprint[lead.Fingerprint]; ok {
		return domain.WrapError(domain.ErrDuplicateLead, "insert lead", errors.New("conflict"))
	}
	f.nextID++
	lead.ID = f.nextID
	f.byFingerprint[lead.Fingerprint] = lead
	f.created = append(f.created, lead)
	return nil
}

type runRepoFake struct {
	created  []*domain.ScrapeRun
	finished []domain.ScrapeRun
	nextID   int64
}

func (f *runRepoFake) CreateRun(_ context.Context, sourceType domain.SourceType, sourceName string) (*domain.ScrapeRun, error) {
	f.nextID++
	run := &domain.ScrapeRun{ID: f.nextID, SourceType: sourceType, SourceName: sourceName, Status: domain.RunStatusRunning}
	f.created = append(f.created, run)
	return run, nil
}

func (f *runRepoFake) FinishRun(_ context.Context, run *domain.ScrapeRun) error {
	f.finished = append(f.finished, *run)
	return nil
}

func (f *runRepoFake) ListRuns(context.Context, int) ([]domain.ScrapeRun, error) { return nil, nil }

func (f *runRepoFake) finishedFor(t *testing.T, source string) domain.ScrapeRun {
	t.Helper()
	for _, run := range f.finished {
		if run.SourceName == source {
			return run
		}
	}
	t.Fatalf("no finished run for %s", source)
	return domain.ScrapeRun{}
}

type qualifierFake struct {
	fn    func(domain.RawLead) (domain.QualifyResult, error)
	calls []string
}

func (f *qualifierFake) Qualify(_ context.Context, lead domain.RawLead) (domain.QualifyResult, error) {
	f.calls = append(f.calls, lead.Title)
	return f.fn(lead)
}

type screenerFake struct {
	verdicts []bool
}

func (f *screenerFake) BatchClassify(context.Context, []domain.RawLead) []bool { return f.verdicts }

type enricherFake struct {
	names []string
	out   *domain.Enrichment
}

func (f *enricherFake) EnrichOrg(_ context.Context, name string) *domain.Enrichment {
	f.names = append(f.names, name)
	return f.out
}

type publisherFake struct {
	events []domain.LeadEvent
	err    error
}

func (f *publisherFake) PublishLeadCreated(_ context.Context, event domain.LeadEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type observerFake struct {
	runs     map[string]domain.RunStatus
	outcomes map[string]int
}

func newObserverFake() *observerFake {
	return &observerFake{runs: map[string]domain.RunStatus{}, outcomes: map[string]int{}}
}

func (f *observerFake) ObserveRun(source string, status domain.RunStatus, _, _, _ int, _ float64) {
	f.runs[source] = status
}

func (f *observerFake) ObserveQualification(_ string, outcome string) {
	f.outcomes[outcome]++
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
func strPtr(v string) *string     { return &v }

func passingQualification(score float64) domain.QualifyResult {
	return domain.Qualified(domain.Qualification{
		IsGovernment:    boolPtr(false),
		ConfidenceScore: floatPtr(score),
		ServiceMatches:  []domain.ServiceCategory{domain.ServiceInteractiveTools},
		IntentSignals:   []string{"RFP"},
		Summary:         strPtr("summary"),
	})
}

func feedLead(title, url, body string) domain.RawLead {
	return domain.RawLead{
		Title:      title,
		SourceURL:  url,
		RawText:    body,
		SourceType: domain.SourceRSSRFP,
		SourceName: "RFPdb",
	}
}

func defaultFilter() *KeywordPreFilter {
	return NewKeywordPreFilter(
		[]string{"interactive dashboard", "rfp", "digital transformation"},
		[]string{"department of ", "federal agency"},
		[]string{"foundation", "nonprofit"},
	)
}

func TestRunCycleEndToEndStoresQualifiedLead(t *testing.T) {
	feed := &adapterFake{
		name:       "RSS Feeds",
		sourceType: domain.SourceRSSNews,
		leads: []domain.RawLead{
			feedLead("Acme Foundation: RFP for Data Dashboard", "https://example.org/rfp/1",
				"Acme seeks a partner to build an interactive dashboard for donors."),
		},
	}
	store := newLeadStoreFake()
	runs := &runRepoFake{}
	qualifier := &qualifierFake{fn: func(domain.RawLead) (domain.QualifyResult, error) {
		return passingQualification(0.82), nil
	}}
	publisher := &publisherFake{}

	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{feed},
		defaultFilter(), store, runs, qualifier, nil, nil, publisher, nil,
		domain.CycleLimits{MinConfidence: 0.2},
	)

	res, err := uc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if res.TotalFound != 1 || res.TotalNew != 1 || res.TotalQualified != 1 {
		t.Fatalf("unexpected totals: %+v", res)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected 1 stored lead, got %d", len(store.created))
	}
	lead := store.created[0]
	if lead.Status != domain.LeadStatusNew {
		t.Fatalf("expected status new, got %q", lead.Status)
	}
	if lead.ConfidenceScore == nil || *lead.ConfidenceScore != 0.82 {
		t.Fatalf("expected confidence 0.82, got %v", lead.ConfidenceScore)
	}
	if len(lead.ServiceMatches) != 1 || lead.ServiceMatches[0] != domain.ServiceInteractiveTools {
		t.Fatalf("unexpected service matches %v", lead.ServiceMatches)
	}
	if lead.ScrapeRunID == nil || *lead.ScrapeRunID != res.Sources[0].RunID {
		t.Fatalf("expected lead linked to run %d, got %v", res.Sources[0].RunID, lead.ScrapeRunID)
	}
	if lead.OrgName != domain.UnknownOrgName {
		t.Fatalf("expected Unknown org without refined or raw name, got %q", lead.OrgName)
	}
	if run := runs.finishedFor(t, "RSS Feeds"); run.Status != domain.RunStatusCompleted {
		t.Fatalf("expected completed run, got %q", run.Status)
	}
	if len(publisher.events) != 1 || publisher.events[0].LeadID != lead.ID {
		t.Fatalf("expected one lead event for stored lead, got %+v", publisher.events)
	}
}

func TestRunCycleIsIdempotentWithoutNewUpstreamData(t *testing.T) {
	feed := &adapterFake{
		name:       "RSS Feeds",
		sourceType: domain.SourceRSSNews,
		leads: []domain.RawLead{
			feedLead("Nonprofit RFP one", "https://example.org/1", ""),
			feedLead("Nonprofit RFP two", "https://example.org/2", ""),
		},
	}
	store := newLeadStoreFake()
	qualifier := &qualifierFake{fn: func(domain.RawLead) (domain.QualifyResult, error) {
		return passingQualification(0.9), nil
	}}
	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{feed},
		defaultFilter(), store, &runRepoFake{}, qualifier, nil, nil, nil, nil,
		domain.CycleLimits{MinConfidence: 0.2},
	)

	if _, err := uc.RunCycle(context.Background()); err != nil {
		t.Fatalf("first RunCycle() error = %v", err)
	}
	second, err := uc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second RunCycle() error = %v", err)
	}
	if len(store.created) != 2 {
		t.Fatalf("expected 2 stored leads overall, got %d", len(store.created))
	}
	if second.TotalNew != 0 || second.TotalQualified != 0 {
		t.Fatalf("expected no new leads on second pass, got %+v", second)
	}
	if len(qualifier.calls) != 2 {
		t.Fatalf("expected qualifier called only on the first pass, got %d calls", len(qualifier.calls))
	}
}

func TestRunCycleIsolatesFailingAdapter(t *testing.T) {
	grants := &adapterFake{
		name:       "Grants.gov",
		sourceType: domain.SourceGrantsGov,
		err:        fmt.Errorf("10 of 10 queries failed: %w", domain.ErrAllSourcesFailed),
	}
	feed := &adapterFake{
		name:       "RSS Feeds",
		sourceType: domain.SourceRSSNews,
		leads:      []domain.RawLead{feedLead("Foundation digital transformation RFP", "https://example.org/x", "")},
	}
	store := newLeadStoreFake()
	runs := &runRepoFake{}
	observer := newObserverFake()
	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{grants, feed},
		defaultFilter(), store, runs, nil, nil, nil, nil, observer,
		domain.CycleLimits{MinConfidence: 0.2},
	)

	res, err := uc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if feed.calls != 1 {
		t.Fatalf("expected feed adapter to run after grants failure")
	}
	if run := runs.finishedFor(t, "Grants.gov"); run.Status != domain.RunStatusFailed || run.Errors == "" {
		t.Fatalf("expected failed grants run with error text, got %+v", run)
	}
	if run := runs.finishedFor(t, "RSS Feeds"); run.Status != domain.RunStatusCompleted {
		t.Fatalf("expected completed feed run, got %+v", run)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected feed lead persisted, got %d", len(store.created))
	}
	if _, ok := res.Errors["Grants.gov"]; !ok || len(res.Errors) != 1 {
		t.Fatalf("expected only grants in errors map, got %v", res.Errors)
	}
	if observer.runs["Grants.gov"] != domain.RunStatusFailed || observer.runs["RSS Feeds"] != domain.RunStatusCompleted {
		t.Fatalf("unexpected observed statuses %v", observer.runs)
	}
}

func TestRunCycleConfidenceThresholdIsInclusive(t *testing.T) {
	scores := map[string]float64{
		"Foundation RFP at threshold":    0.2,
		"Foundation RFP below threshold": 0.19999,
	}
	feed := &adapterFake{
		name:       "RSS Feeds",
		sourceType: domain.SourceRSSNews,
		leads: []domain.RawLead{
			feedLead("Foundation RFP at threshold", "https://example.org/a", ""),
			feedLead("Foundation RFP below threshold", "https://example.org/b", ""),
		},
	}
	store := newLeadStoreFake()
	qualifier := &qualifierFake{fn: func(lead domain.RawLead) (domain.QualifyResult, error) {
		return passingQualification(scores[lead.Title]), nil
	}}
	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{feed},
		defaultFilter(), store, &runRepoFake{}, qualifier, nil, nil, nil, nil,
		domain.CycleLimits{MinConfidence: 0.2},
	)

	res, err := uc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(store.created) != 1 || store.created[0].Title != "Foundation RFP at threshold" {
		t.Fatalf("expected only the at-threshold lead stored, got %+v", store.created)
	}
	if res.TotalNew != 2 || res.TotalQualified != 1 {
		t.Fatalf("unexpected totals %+v", res)
	}
}

func TestRunCycleSkipsAbsentGovernmentAndMissingConfidence(t *testing.T) {
	feed := &adapterFake{
		name:       "RSS Feeds",
		sourceType: domain.SourceRSSNews,
		leads: []domain.RawLead{
			feedLead("Foundation RFP absent", "https://example.org/1", ""),
			feedLead("Foundation RFP government", "https://example.org/2", ""),
			feedLead("Foundation RFP no score", "https://example.org/3", ""),
		},
	}
	store := newLeadStoreFake()
	qualifier := &qualifierFake{fn: func(lead domain.RawLead) (domain.QualifyResult, error) {
		switch lead.Title {
		case "Foundation RFP absent":
			return domain.Unqualified("invalid json"), nil
		case "Foundation RFP government":
			return domain.Qualified(domain.Qualification{IsGovernment: boolPtr(true), ConfidenceScore: floatPtr(0.9)}), nil
		default:
			return domain.Qualified(domain.Qualification{IsGovernment: boolPtr(false)}), nil
		}
	}}
	observer := newObserverFake()
	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{feed},
		defaultFilter(), store, &runRepoFake{}, qualifier, nil, nil, nil, observer,
		domain.CycleLimits{MinConfidence: 0.2},
	)

	if _, err := uc.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(store.created) != 0 {
		t.Fatalf("expected nothing stored, got %d", len(store.created))
	}
	if observer.outcomes[outcomeAbsent] != 1 || observer.outcomes[outcomeGovernment] != 1 || observer.outcomes[outcomeBelowThreshold] != 1 {
		t.Fatalf("unexpected outcomes %v", observer.outcomes)
	}
}

func TestRunCycleWithoutQualifierStoresAllNewLeadsVerbatim(t *testing.T) {
	feed := &adapterFake{
		name:       "RSS Feeds",
		sourceType: domain.SourceRSSNews,
		leads: []domain.RawLead{
			{Title: "Nonprofit RFP", SourceURL: "https://example.org/1", OrgName: "Acme", SourceType: domain.SourceRSSRFP},
			{Title: "Foundation news", SourceURL: "https://example.org/2", SourceType: domain.SourceRSSNews},
			{Title: "Sports results", SourceURL: "https://example.org/3", SourceType: domain.SourceRSSNews},
		},
	}
	store := newLeadStoreFake()
	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{feed},
		defaultFilter(), store, &runRepoFake{}, nil, nil, nil, nil, nil,
		domain.CycleLimits{MinConfidence: 0.2},
	)

	res, err := uc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(store.created) != 2 || res.TotalQualified != 2 {
		t.Fatalf("expected 2 stored leads, got %d (%+v)", len(store.created), res)
	}
	if store.created[0].OrgName != "Acme" || store.created[1].OrgName != domain.UnknownOrgName {
		t.Fatalf("unexpected org names %q %q", store.created[0].OrgName, store.created[1].OrgName)
	}
	if store.created[0].ConfidenceScore != nil {
		t.Fatalf("expected unscored lead")
	}
}

func TestRunCycleDedupsWithinSinglePass(t *testing.T) {
	feed := &adapterFake{
		name:       "RSS Feeds",
		sourceType: domain.SourceRSSNews,
		leads: []domain.RawLead{
			feedLead("Foundation RFP", "https://example.org/1", ""),
			feedLead("  FOUNDATION rfp ", "https://EXAMPLE.org/1", ""),
		},
	}
	store := newLeadStoreFake()
	qualifier := &qualifierFake{fn: func(domain.RawLead) (domain.QualifyResult, error) {
		return passingQualification(0.5), nil
	}}
	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{feed},
		defaultFilter(), store, &runRepoFake{}, qualifier, nil, nil, nil, nil,
		domain.CycleLimits{MinConfidence: 0.2},
	)

	res, err := uc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if res.TotalNew != 1 || len(qualifier.calls) != 1 || len(store.created) != 1 {
		t.Fatalf("expected a single new lead, got new=%d calls=%d stored=%d", res.TotalNew, len(qualifier.calls), len(store.created))
	}
}

func TestRunCycleContinuesAfterPersistFailure(t *testing.T) {
	feed := &adapterFake{
		name:       "RSS Feeds",
		sourceType: domain.SourceRSSNews,
		leads: []domain.RawLead{
			feedLead("Foundation RFP bad row", "https://example.org/1", ""),
			feedLead("Foundation RFP good row", "https://example.org/2", ""),
		},
	}
	store := newLeadStoreFake()
	store.createErrFor["Foundation RFP bad row"] = errors.New("value too long")
	qualifier := &qualifierFake{fn: func(domain.RawLead) (domain.QualifyResult, error) {
		return passingQualification(0.5), nil
	}}
	runs := &runRepoFake{}
	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{feed},
		defaultFilter(), store, runs, qualifier, nil, nil, nil, nil,
		domain.CycleLimits{MinConfidence: 0.2},
	)

	res, err := uc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(store.created) != 1 || store.created[0].Title != "Foundation RFP good row" {
		t.Fatalf("expected good row stored, got %+v", store.created)
	}
	if res.TotalQualified != 1 {
		t.Fatalf("expected 1 qualified, got %d", res.TotalQualified)
	}
	if run := runs.finishedFor(t, "RSS Feeds"); run.Status != domain.RunStatusCompleted {
		t.Fatalf("expected completed run, got %q", run.Status)
	}
}

func TestRunCycleQualifierHardErrorFailsOnlyThatRun(t *testing.T) {
	first := &adapterFake{
		name:       "RSS Feeds",
		sourceType: domain.SourceRSSNews,
		leads:      []domain.RawLead{feedLead("Foundation RFP", "https://example.org/1", "")},
	}
	second := &adapterFake{
		name:       "Grants.gov",
		sourceType: domain.SourceGrantsGov,
		leads:      []domain.RawLead{feedLead("Nonprofit digital transformation", "https://grants.example/2", "")},
	}
	store := newLeadStoreFake()
	qualifier := &qualifierFake{fn: func(lead domain.RawLead) (domain.QualifyResult, error) {
		if lead.Title == "Foundation RFP" {
			return domain.QualifyResult{}, context.DeadlineExceeded
		}
		return passingQualification(0.7), nil
	}}
	runs := &runRepoFake{}
	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{first, second},
		defaultFilter(), store, runs, qualifier, nil, nil, nil, nil,
		domain.CycleLimits{MinConfidence: 0.2},
	)

	res, err := uc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if run := runs.finishedFor(t, "RSS Feeds"); run.Status != domain.RunStatusFailed {
		t.Fatalf("expected failed feed run, got %q", run.Status)
	}
	if run := runs.finishedFor(t, "Grants.gov"); run.Status != domain.RunStatusCompleted || run.ItemsQualified != 1 {
		t.Fatalf("expected completed grants run with one lead, got %+v", run)
	}
	if res.Errors["RSS Feeds"] == "" {
		t.Fatalf("expected feed error reported, got %v", res.Errors)
	}
}

func TestRunCycleEnrichesByRefinedThenRawOrgName(t *testing.T) {
	feed := &adapterFake{
		name:       "RSS Feeds",
		sourceType: domain.SourceRSSNews,
		leads: []domain.RawLead{
			{Title: "Foundation RFP refined", SourceURL: "https://example.org/1", OrgName: "Raw One"},
			{Title: "Foundation RFP raw", SourceURL: "https://example.org/2", OrgName: "Raw Two"},
		},
	}
	store := newLeadStoreFake()
	qualifier := &qualifierFake{fn: func(lead domain.RawLead) (domain.QualifyResult, error) {
		res := passingQualification(0.6)
		if lead.Title == "Foundation RFP refined" {
			res.Qualification.OrgName = strPtr("Refined One")
		}
		return res, nil
	}}
	enricher := &enricherFake{out: &domain.Enrichment{EIN: "123456789", Name: "REFINED ONE"}}
	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{feed},
		defaultFilter(), store, &runRepoFake{}, qualifier, nil, enricher, nil, nil,
		domain.CycleLimits{MinConfidence: 0.2},
	)

	if _, err := uc.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(enricher.names) != 2 || enricher.names[0] != "Refined One" || enricher.names[1] != "Raw Two" {
		t.Fatalf("unexpected enrichment lookups %v", enricher.names)
	}
	if store.created[0].OrgName != "Refined One" || store.created[0].Enrichment == nil {
		t.Fatalf("expected refined org with enrichment, got %+v", store.created[0])
	}
}

func TestRunCycleBatchScreenDropsRejectedLeads(t *testing.T) {
	feed := &adapterFake{
		name:       "RSS Feeds",
		sourceType: domain.SourceRSSNews,
		leads: []domain.RawLead{
			feedLead("Foundation RFP keep", "https://example.org/1", ""),
			feedLead("Foundation RFP drop", "https://example.org/2", ""),
		},
	}
	store := newLeadStoreFake()
	qualifier := &qualifierFake{fn: func(domain.RawLead) (domain.QualifyResult, error) {
		return passingQualification(0.6), nil
	}}
	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{feed},
		defaultFilter(), store, &runRepoFake{}, qualifier, &screenerFake{verdicts: []bool{true, false}}, nil, nil, nil,
		domain.CycleLimits{MinConfidence: 0.2, BatchScreen: true},
	)

	if _, err := uc.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(qualifier.calls) != 1 || qualifier.calls[0] != "Foundation RFP keep" {
		t.Fatalf("expected only the screened-in lead qualified, got %v", qualifier.calls)
	}
}

func TestRunCycleUsesAdapterPreFilterOverride(t *testing.T) {
	adapter := &customFilterAdapter{adapterFake{
		name:       "Custom",
		sourceType: domain.SourceWebScrape,
		leads:      []domain.RawLead{{Title: "Sports results", SourceURL: "https://example.org/s"}},
	}}
	store := newLeadStoreFake()
	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{adapter},
		defaultFilter(), store, &runRepoFake{}, nil, nil, nil, nil, nil,
		domain.CycleLimits{},
	)

	if _, err := uc.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected override filter to accept the lead, got %d stored", len(store.created))
	}
}

func TestRunCycleDedupLookupFailureFailsRun(t *testing.T) {
	feed := &adapterFake{
		name:       "RSS Feeds",
		sourceType: domain.SourceRSSNews,
		leads:      []domain.RawLead{feedLead("Foundation RFP", "https://example.org/1", "")},
	}
	store := newLeadStoreFake()
	store.existsErr = errors.New("connection refused")
	runs := &runRepoFake{}
	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{feed},
		defaultFilter(), store, runs, nil, nil, nil, nil, nil,
		domain.CycleLimits{},
	)

	if _, err := uc.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	run := runs.finishedFor(t, "RSS Feeds")
	if run.Status != domain.RunStatusFailed || run.ItemsFound != 1 {
		t.Fatalf("expected failed run that still reports items found, got %+v", run)
	}
}

func TestRunCycleStopsWhenContextCancelled(t *testing.T) {
	feed := &adapterFake{name: "RSS Feeds", sourceType: domain.SourceRSSNews}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := NewRunCycleUseCase(
		[]ports.SourceAdapter{feed},
		defaultFilter(), newLeadStoreFake(), &runRepoFake{}, nil, nil, nil, nil, nil,
		domain.CycleLimits{},
	)
	if _, err := uc.RunCycle(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if feed.calls != 0 {
		t.Fatalf("expected no adapter calls after cancellation")
	}
}
