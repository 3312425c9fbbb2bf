package grantsgov

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
	"github.com/kirillkom/bd-pipeline/internal/infrastructure/sources/markup"
)

const (
	adapterName     = "Grants.gov"
	detailURLPrefix = "https://www.grants.gov/search-results-detail/"
	maxBodyRunes    = 5000
	openDateLayout  = "01/02/2006"
)

// DefaultKeywords are the service-aligned search terms issued on every pass.
var DefaultKeywords = []string{
	"knowledge management system",
	"digital transformation nonprofit",
	"interactive dashboard",
	"data management tool",
	"website redesign nonprofit",
	"custom application development",
	"digital storytelling",
	"information architecture",
	"data visualization platform",
	"technology modernization",
}

type Options struct {
	HTTPTimeout time.Duration
	Rows        int
	Keywords    []string
}

type Adapter struct {
	baseURL    string
	httpClient *http.Client
	rows       int
	keywords   []string
}

func New(baseURL string, opts Options) *Adapter {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rows := opts.Rows
	if rows <= 0 {
		rows = 25
	}
	keywords := opts.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	return &Adapter{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		rows:       rows,
		keywords:   append([]string(nil), keywords...),
	}
}

func (c *Adapter) Name() string                  { return adapterName }
func (c *Adapter) SourceType() domain.SourceType { return domain.SourceGrantsGov }

// Scrape issues one search per keyword. Opportunities repeated across
// keywords are kept once, attributed to the first keyword that found them.
func (c *Adapter) Scrape(ctx context.Context) ([]domain.RawLead, error) {
	seen := make(map[string]struct{})
	leads := make([]domain.RawLead, 0, len(c.keywords)*c.rows)
	failed := 0

	for _, keyword := range c.keywords {
		if err := ctx.Err(); err != nil {
			return leads, fmt.Errorf("grants search interrupted: %w", err)
		}

		hits, err := c.search(ctx, keyword)
		if err != nil {
			failed++
			slog.Warn("grants_search_failed", "keyword", keyword, "error", err)
			continue
		}

		added := 0
		for _, opp := range hits {
			id := strings.TrimSpace(string(opp.ID))
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			leads = append(leads, toRawLead(opp, keyword))
			added++
		}
		slog.Info("grants_search_completed", "keyword", keyword, "hits", len(hits), "added", added)
	}

	if len(c.keywords) > 0 && failed == len(c.keywords) {
		return leads, fmt.Errorf("%d of %d grants searches failed: %w", failed, len(c.keywords), domain.ErrAllSourcesFailed)
	}
	return leads, nil
}

func (c *Adapter) search(ctx context.Context, keyword string) ([]opportunity, error) {
	var resp searchResponse
	err := c.postJSON(ctx, "/search2", searchRequest{
		Keyword:     keyword,
		OppStatuses: "posted",
		Rows:        c.rows,
		SortBy:      "openDate|desc",
	}, &resp, "search2")
	if err != nil {
		return nil, err
	}
	return resp.hits(), nil
}

// FetchOpportunity returns the raw detail payload for one opportunity.
func (c *Adapter) FetchOpportunity(ctx context.Context, oppID string) (map[string]any, error) {
	oppID = strings.TrimSpace(oppID)
	if oppID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fetch opportunity", errors.New("opportunity id is required"))
	}

	var out map[string]any
	if err := c.getJSON(ctx, "/fetchOpportunity", url.Values{"oppId": {oppID}}, &out, "fetchOpportunity"); err != nil {
		return nil, err
	}
	return out, nil
}

func toRawLead(opp opportunity, keyword string) domain.RawLead {
	id := strings.TrimSpace(string(opp.ID))
	title := strings.TrimSpace(opp.Title)
	if title == "" {
		title = "Untitled"
	}

	body := fmt.Sprintf(
		"Opportunity: %s\nAgency: %s\nNumber: %s\nOpen: %s | Close: %s\nDescription: %s",
		title, opp.AgencyCode, opp.Number, opp.OpenDate, opp.CloseDate, markup.Text(opp.Description),
	)

	return domain.RawLead{
		Title:       title,
		RawText:     markup.Truncate(body, maxBodyRunes),
		SourceURL:   detailURLPrefix + id,
		SourceType:  domain.SourceGrantsGov,
		SourceName:  adapterName,
		OrgName:     strings.TrimSpace(opp.AgencyCode),
		PublishedAt: parseOpenDate(opp.OpenDate),
		Extra: map[string]any{
			"opportunity_id":     id,
			"opportunity_number": opp.Number,
			"close_date":         opp.CloseDate,
			"search_keyword":     keyword,
		},
	}
}

func parseOpenDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if len(raw) < len(openDateLayout) {
		return nil
	}
	t, err := time.Parse(openDateLayout, raw[:len(openDateLayout)])
	if err != nil {
		return nil
	}
	return &t
}
