package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

type SourceType string

const (
	SourceRSSRFP     SourceType = "rss_rfp"
	SourceRSSNews    SourceType = "rss_news"
	SourceGrantsGov  SourceType = "grants_gov"
	SourcePropublica SourceType = "propublica"
	SourceWebScrape  SourceType = "web_scrape"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceRSSRFP, SourceRSSNews, SourceGrantsGov, SourcePropublica, SourceWebScrape:
		return true
	default:
		return false
	}
}

// IsFeed reports whether leads of this type come from syndication feeds.
func (s SourceType) IsFeed() bool {
	return s == SourceRSSRFP || s == SourceRSSNews
}

type LeadStatus string

const (
	LeadStatusNew          LeadStatus = "new"
	LeadStatusReviewing    LeadStatus = "reviewing"
	LeadStatusQualified    LeadStatus = "qualified"
	LeadStatusDisqualified LeadStatus = "disqualified"
	LeadStatusContacted    LeadStatus = "contacted"
	LeadStatusArchived     LeadStatus = "archived"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusReviewing, LeadStatusQualified,
		LeadStatusDisqualified, LeadStatusContacted, LeadStatusArchived:
		return true
	default:
		return false
	}
}

// UnknownOrgName is stored when neither the qualifier nor the source named an organization.
const UnknownOrgName = "Unknown"

// RawLead is a candidate item produced by a source adapter before any scoring.
type RawLead struct {
	Title       string
	RawText     string
	SourceURL   string
	SourceType  SourceType
	SourceName  string
	OrgName     string
	OrgType     string
	OrgURL      string
	PublishedAt *time.Time
	Extra       map[string]any
}

func (l RawLead) Fingerprint() string {
	return Fingerprint(l.Title, l.SourceURL)
}

// Fingerprint returns the hex sha256 of the normalized title and url.
func Fingerprint(title, sourceURL string) string {
	normalized := strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(sourceURL))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Lead is a persisted, reviewable opportunity.
type Lead struct {
	ID                 int64             `json:"id"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	OrgName            string            `json:"org_name"`
	OrgType            string            `json:"org_type,omitempty"`
	OrgURL             string            `json:"org_url,omitempty"`
	Title              string            `json:"title"`
	Summary            string            `json:"summary,omitempty"`
	RawText            string            `json:"raw_text,omitempty"`
	SourceURL          string            `json:"source_url"`
	SourceType         SourceType        `json:"source_type"`
	SourceName         string            `json:"source_name"`
	PublishedAt        *time.Time        `json:"published_at,omitempty"`
	ConfidenceScore    *float64          `json:"confidence_score,omitempty"`
	RelevanceReasoning string            `json:"relevance_reasoning,omitempty"`
	ServiceMatches     []ServiceCategory `json:"service_matches"`
	IntentSignals      []string          `json:"intent_signals"`
	IsGovernment       bool              `json:"is_government"`
	Status             LeadStatus        `json:"status"`
	Notes              string            `json:"notes,omitempty"`
	Fingerprint        string            `json:"fingerprint"`
	Enrichment         *Enrichment       `json:"enrichment,omitempty"`
	Extra              map[string]any    `json:"extra,omitempty"`
	ScrapeRunID        *int64            `json:"scrape_run_id,omitempty"`
}

// NewLeadFromRaw builds an unscored lead carrying the raw item verbatim.
func NewLeadFromRaw(raw RawLead, runID int64) *Lead {
	orgName := strings.TrimSpace(raw.OrgName)
	if orgName == "" {
		orgName = UnknownOrgName
	}
	lead := &Lead{
		OrgName:        orgName,
		OrgType:        raw.OrgType,
		OrgURL:         raw.OrgURL,
		Title:          raw.Title,
		RawText:        raw.RawText,
		SourceURL:      raw.SourceURL,
		SourceType:     raw.SourceType,
		SourceName:     raw.SourceName,
		PublishedAt:    raw.PublishedAt,
		ServiceMatches: []ServiceCategory{},
		IntentSignals:  []string{},
		Status:         LeadStatusNew,
		Fingerprint:    raw.Fingerprint(),
		Extra:          raw.Extra,
	}
	if runID > 0 {
		lead.ScrapeRunID = &runID
	}
	return lead
}

// ApplyQualification copies scoring output onto the lead.
// The qualifier's org name wins over the source's when present.
func (l *Lead) ApplyQualification(q Qualification) {
	if q.OrgName != nil && strings.TrimSpace(*q.OrgName) != "" {
		l.OrgName = strings.TrimSpace(*q.OrgName)
	}
	if q.OrgType != nil {
		l.OrgType = *q.OrgType
	}
	if q.Summary != nil {
		l.Summary = *q.Summary
	}
	if q.RelevanceReasoning != nil {
		l.RelevanceReasoning = *q.RelevanceReasoning
	}
	if q.IsGovernment != nil {
		l.IsGovernment = *q.IsGovernment
	}
	if q.ServiceMatches != nil {
		l.ServiceMatches = append([]ServiceCategory(nil), q.ServiceMatches...)
	}
	if q.IntentSignals != nil {
		l.IntentSignals = append([]string(nil), q.IntentSignals...)
	}
	score := q.Confidence()
	l.ConfidenceScore = &score
}

// LeadFilter narrows dashboard listings.
type LeadFilter struct {
	Status        LeadStatus
	SourceType    SourceType
	MinConfidence *float64
	Search        string
	SortBy        string
	SortDesc      bool
	Page          int
	PageSize      int
}

type LeadPage struct {
	Items    []Lead `json:"items"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// LeadReview carries reviewer edits; nil fields are left unchanged.
type LeadReview struct {
	Status *LeadStatus `json:"status,omitempty"`
	Notes  *string     `json:"notes,omitempty"`
}

type ServiceCount struct {
	Service string `json:"service"`
	Count   int    `json:"count"`
}

type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type DashboardStats struct {
	TotalLeads      int            `json:"total_leads"`
	NewLeads        int            `json:"new_leads"`
	QualifiedLeads  int            `json:"qualified_leads"`
	AvgConfidence   float64        `json:"avg_confidence"`
	LeadsThisWeek   int            `json:"leads_this_week"`
	TopServices     []ServiceCount `json:"top_services"`
	SourceBreakdown []SourceCount  `json:"source_breakdown"`
	RecentRuns      []ScrapeRun    `json:"recent_runs"`
}
