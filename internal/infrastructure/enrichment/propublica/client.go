package propublica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
	"github.com/kirillkom/bd-pipeline/internal/infrastructure/resilience"
)

type Options struct {
	HTTPTimeout        time.Duration
	CacheTTL           time.Duration
	ResilienceExecutor *resilience.Executor
}

// Client looks up nonprofit filings by organization name. Lookups are cached
// per normalized name, including definitive misses; transport failures are not cached.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *gocache.Cache
	executor   *resilience.Executor
}

func New(baseURL string, opts Options) *Client {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      gocache.New(ttl, ttl/2),
		executor:   opts.ResilienceExecutor,
	}
}

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "propublica status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("propublica %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("propublica %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

type searchResponse struct {
	Organizations []struct {
		EIN  flexString `json:"ein"`
		Name string     `json:"name"`
	} `json:"organizations"`
}

type organizationResponse struct {
	Organization struct {
		Name           string     `json:"name"`
		City           string     `json:"city"`
		State          string     `json:"state"`
		NTEECode       string     `json:"ntee_code"`
		SubsectionCode flexString `json:"subsection_code"`
	} `json:"organization"`
	FilingsWithData []struct {
		TotalRevenue  *float64 `json:"totrevenue"`
		TotalExpenses *float64 `json:"totfuncexpns"`
		TotalAssets   *float64 `json:"totassetsend"`
		TaxPeriodYear *int     `json:"tax_prd_yr"`
	} `json:"filings_with_data"`
}

// EnrichOrg never fails: any problem yields nil.
func (c *Client) EnrichOrg(ctx context.Context, name string) *domain.Enrichment {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil
	}
	if cached, ok := c.cache.Get(key); ok {
		return cached.(*domain.Enrichment)
	}

	enrichment, err := c.lookup(ctx, name)
	if err != nil {
		slog.Warn("propublica_enrichment_failed", "org_name", name, "error", err)
		return nil
	}
	c.cache.SetDefault(key, enrichment)
	return enrichment
}

// lookup returns (nil, nil) for a definitive miss.
func (c *Client) lookup(ctx context.Context, name string) (*domain.Enrichment, error) {
	var search searchResponse
	if err := c.getJSON(ctx, "/search.json", url.Values{"q": {name}}, &search, "search"); err != nil {
		return nil, err
	}
	if len(search.Organizations) == 0 {
		return nil, nil
	}
	ein := strings.TrimSpace(string(search.Organizations[0].EIN))
	if ein == "" {
		return nil, nil
	}

	var detail organizationResponse
	err := c.getJSON(ctx, "/organizations/"+url.PathEscape(ein)+".json", nil, &detail, "organization")
	if err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	out := &domain.Enrichment{
		EIN:            ein,
		Name:           detail.Organization.Name,
		City:           detail.Organization.City,
		State:          detail.Organization.State,
		NTEECode:       detail.Organization.NTEECode,
		SubsectionCode: string(detail.Organization.SubsectionCode),
		NumFilings:     len(detail.FilingsWithData),
	}
	if len(detail.FilingsWithData) > 0 {
		latest := detail.FilingsWithData[0]
		out.TotalRevenue = latest.TotalRevenue
		out.TotalExpenses = latest.TotalExpenses
		out.TotalAssets = latest.TotalAssets
		out.TaxYear = latest.TaxPeriodYear
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any, operation string) error {
	call := func(callCtx context.Context) error {
		target := c.baseURL + path
		if len(query) > 0 {
			target += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(callCtx, http.MethodGet, target, nil)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("propublica %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &HTTPStatusError{Operation: operation, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	if c.executor == nil {
		return call(ctx)
	}
	return c.executor.Execute(ctx, "propublica."+operation, call, classifyError)
}

func classifyError(err error) resilience.ErrorClassification {
	if err == nil || resilience.IsContextError(err) {
		return resilience.ErrorClassification{RecordFailure: false}
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return resilience.ErrorClassification{RecordFailure: statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: false}
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return fmt.Errorf("unexpected scalar %s", raw)
	}
	*s = flexString(raw)
	return nil
}
