package domain

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ScrapeRun records one adapter pass.
type ScrapeRun struct {
	ID             int64      `json:"id"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	SourceType     SourceType `json:"source_type"`
	SourceName     string     `json:"source_name"`
	ItemsFound     int        `json:"items_found"`
	ItemsNew       int        `json:"items_new"`
	ItemsQualified int        `json:"items_qualified"`
	Errors         string     `json:"errors,omitempty"`
	Status         RunStatus  `json:"status"`
}

type SourceRunResult struct {
	Source         string    `json:"source"`
	RunID          int64     `json:"run_id"`
	Status         RunStatus `json:"status"`
	ItemsFound     int       `json:"items_found"`
	ItemsNew       int       `json:"items_new"`
	ItemsQualified int       `json:"items_qualified"`
	Error          string    `json:"error,omitempty"`
}

// CycleResult aggregates the per-source outcomes of one pipeline pass.
type CycleResult struct {
	Sources        []SourceRunResult `json:"sources"`
	TotalFound     int               `json:"total_found"`
	TotalNew       int               `json:"total_new"`
	TotalQualified int               `json:"total_qualified"`
	Errors         map[string]string `json:"errors"`
}

func (r *CycleResult) Add(res SourceRunResult) {
	r.Sources = append(r.Sources, res)
	r.TotalFound += res.ItemsFound
	r.TotalNew += res.ItemsNew
	r.TotalQualified += res.ItemsQualified
	if res.Error != "" {
		if r.Errors == nil {
			r.Errors = make(map[string]string)
		}
		r.Errors[res.Source] = res.Error
	}
}

// SourceConfig is an operator-managed source row.
type SourceConfig struct {
	ID                     int64          `json:"id"`
	Name                   string         `json:"name"`
	SourceType             SourceType     `json:"source_type"`
	URL                    string         `json:"url"`
	IsActive               bool           `json:"is_active"`
	LastScrapedAt          *time.Time     `json:"last_scraped_at,omitempty"`
	ScrapeFrequencyMinutes int            `json:"scrape_frequency_minutes"`
	Config                 map[string]any `json:"config,omitempty"`
}

// LeadEvent is published after a lead is stored.
type LeadEvent struct {
	EventID         string    `json:"event_id"`
	LeadID          int64     `json:"lead_id"`
	Fingerprint     string    `json:"fingerprint"`
	Title           string    `json:"title"`
	OrgName         string    `json:"org_name"`
	ConfidenceScore *float64  `json:"confidence_score,omitempty"`
	SourceName      string    `json:"source_name"`
	CreatedAt       time.Time `json:"created_at"`
}

// CycleLimits tunes one pipeline pass.
type CycleLimits struct {
	MinConfidence  float64
	AdapterTimeout time.Duration
	BatchScreen    bool
}
