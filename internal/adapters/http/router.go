package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
	"github.com/kirillkom/bd-pipeline/internal/core/ports"
	"github.com/kirillkom/bd-pipeline/internal/infrastructure/resilience"
	"github.com/kirillkom/bd-pipeline/internal/observability/metrics"
)

const (
	serviceName         = "api"
	defaultCycleTimeout = 10 * time.Minute
)

type Options struct {
	AllowedOrigins []string
	Metrics        *metrics.HTTPServerMetrics
	Breakers       BreakerReporter

	// CycleTimeout bounds a manually triggered cycle. Zero means 10 minutes.
	CycleTimeout time.Duration
}

// BreakerReporter exposes upstream circuit state for /healthz.
type BreakerReporter interface {
	States() []resilience.BreakerState
}

type Router struct {
	leads          ports.LeadService
	cycle          ports.CycleRunner
	metrics        *metrics.HTTPServerMetrics
	breakers       BreakerReporter
	allowedOrigins []string
	cycleTimeout   time.Duration

	// runMu keeps manual scrape triggers from overlapping.
	runMu sync.Mutex
}

func NewRouter(leads ports.LeadService, cycle ports.CycleRunner, opts Options) *Router {
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = defaultCycleTimeout
	}
	return &Router{
		leads:          leads,
		cycle:          cycle,
		metrics:        opts.Metrics,
		breakers:       opts.Breakers,
		allowedOrigins: opts.AllowedOrigins,
		cycleTimeout:   opts.CycleTimeout,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("GET /api/dashboard/stats", rt.dashboardStats)
	mux.HandleFunc("GET /api/leads", rt.listLeads)
	mux.HandleFunc("GET /api/leads/{id}", rt.getLead)
	mux.HandleFunc("PATCH /api/leads/{id}", rt.reviewLead)
	mux.HandleFunc("POST /api/scrape/run", rt.runScrape)
	mux.HandleFunc("GET /api/scrape/history", rt.scrapeHistory)

	var handler http.Handler = mux
	handler = corsMiddleware(rt.allowedOrigins, handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

// healthz stays 200 while an upstream breaker is open; the pipeline keeps
// running degraded and the dashboard still serves stored leads.
func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	resp := struct {
		Status   string                    `json:"status"`
		Breakers []resilience.BreakerState `json:"breakers,omitempty"`
	}{Status: "ok"}

	if rt.breakers != nil {
		resp.Breakers = rt.breakers.States()
		for _, b := range resp.Breakers {
			if b.State != "closed" {
				resp.Status = "degraded"
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) dashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.leads.DashboardStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) listLeads(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLeadFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := rt.leads.ListLeads(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (rt *Router) getLead(w http.ResponseWriter, r *http.Request) {
	id, err := parseLeadID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	lead, err := rt.leads.GetLead(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (rt *Router) reviewLead(w http.ResponseWriter, r *http.Request) {
	id, err := parseLeadID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var review domain.LeadReview
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&review); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	lead, err := rt.leads.ReviewLead(r.Context(), id, review)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (rt *Router) runScrape(w http.ResponseWriter, r *http.Request) {
	if rt.cycle == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "pipeline is not configured"})
		return
	}
	if !rt.runMu.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a scrape cycle is already running"})
		return
	}
	defer rt.runMu.Unlock()

	// A dashboard disconnect must not abort the adapter that is mid-run.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), rt.cycleTimeout)
	defer cancel()

	result, err := rt.cycle.RunCycle(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) scrapeHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, r, err)
		return
	}

	runs, err := rt.leads.RunHistory(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func parseLeadFilter(r *http.Request) (domain.LeadFilter, error) {
	q := r.URL.Query()
	filter := domain.LeadFilter{
		Status:     domain.LeadStatus(strings.TrimSpace(q.Get("status"))),
		SourceType: domain.SourceType(strings.TrimSpace(q.Get("source_type"))),
		Search:     q.Get("search"),
		SortBy:     q.Get("sort_by"),
		SortDesc:   !strings.EqualFold(strings.TrimSpace(q.Get("sort_order")), "asc"),
	}

	var err error
	if filter.Page, err = queryInt(r, "page", 1); err != nil {
		return filter, err
	}
	if filter.PageSize, err = queryInt(r, "page_size", 25); err != nil {
		return filter, err
	}
	if raw := strings.TrimSpace(q.Get("min_confidence")); raw != "" {
		value, parseErr := strconv.ParseFloat(raw, 64)
		if parseErr != nil {
			return filter, domain.WrapError(domain.ErrInvalidInput, "parse query", fmt.Errorf("min_confidence: %w", parseErr))
		}
		filter.MinConfidence = &value
	}
	return filter, nil
}

func parseLeadID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse lead id", fmt.Errorf("invalid id %q", raw))
	}
	return id, nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse query", fmt.Errorf("%s must be an integer", key))
	}
	return value, nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "request cancelled"})
		return
	}

	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
