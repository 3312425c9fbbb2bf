package grantsgov

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "grants.gov status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("grants.gov %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("grants.gov %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

type searchRequest struct {
	Keyword     string `json:"keyword"`
	OppStatuses string `json:"oppStatuses"`
	Rows        int    `json:"rows"`
	SortBy      string `json:"sortBy"`
}

type opportunity struct {
	ID          flexString `json:"id"`
	Title       string     `json:"title"`
	AgencyCode  string     `json:"agencyCode"`
	Number      string     `json:"number"`
	OpenDate    string     `json:"openDate"`
	CloseDate   string     `json:"closeDate"`
	Description string     `json:"description"`
}

type searchResponse struct {
	OppHits []opportunity `json:"oppHits"`
	Data    *struct {
		OppHits []opportunity `json:"oppHits"`
	} `json:"data"`
}

func (r searchResponse) hits() []opportunity {
	if len(r.OppHits) > 0 {
		return r.OppHits
	}
	if r.Data != nil {
		return r.Data.OppHits
	}
	return nil
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
		return fmt.Errorf("grants.gov id: unexpected value %s", raw)
	}
	*s = flexString(raw)
	return nil
}

func (c *Adapter) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out, operation)
}

func (c *Adapter) getJSON(ctx context.Context, path string, query url.Values, out any, operation string) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	return c.do(req, out, operation)
}

func (c *Adapter) do(req *http.Request, out any, operation string) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("grants.gov %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
