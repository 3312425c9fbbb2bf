package domain

import "strings"

type ServiceCategory string

const (
	ServiceKnowledgeSystems    ServiceCategory = "knowledge_systems"
	ServiceDigitalTools        ServiceCategory = "digital_tools"
	ServiceInteractiveTools    ServiceCategory = "interactive_tools"
	ServiceDigitalStorytelling ServiceCategory = "digital_storytelling"
	ServiceCustomApplications  ServiceCategory = "custom_applications"
)

func ServiceCategories() []ServiceCategory {
	return []ServiceCategory{
		ServiceKnowledgeSystems,
		ServiceDigitalTools,
		ServiceInteractiveTools,
		ServiceDigitalStorytelling,
		ServiceCustomApplications,
	}
}

func ParseServiceCategory(raw string) (ServiceCategory, bool) {
	candidate := ServiceCategory(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range ServiceCategories() {
		if candidate == known {
			return known, true
		}
	}
	return "", false
}

// Qualification is the structured judgment returned by the qualifier.
// Nil fields mean the model omitted them.
type Qualification struct {
	IsGovernment       *bool             `json:"is_government"`
	OrgName            *string           `json:"org_name"`
	OrgType            *string           `json:"org_type"`
	Summary            *string           `json:"summary"`
	ServiceMatches     []ServiceCategory `json:"service_matches"`
	IntentSignals      []string          `json:"intent_signals"`
	ConfidenceScore    *float64          `json:"confidence_score"`
	RelevanceReasoning *string           `json:"relevance_reasoning"`
}

// Confidence returns the score, treating a missing value as zero.
func (q Qualification) Confidence() float64 {
	if q.ConfidenceScore == nil {
		return 0
	}
	return *q.ConfidenceScore
}

func (q Qualification) Government() bool {
	return q.IsGovernment != nil && *q.IsGovernment
}

type QualifyOutcome string

const (
	QualifyPresent QualifyOutcome = "present"
	QualifyAbsent  QualifyOutcome = "absent"
)

// QualifyResult separates "the model could not judge this lead" from a usable judgment.
type QualifyResult struct {
	Outcome       QualifyOutcome
	Qualification Qualification
	Reason        string
}

func Qualified(q Qualification) QualifyResult {
	return QualifyResult{Outcome: QualifyPresent, Qualification: q}
}

func Unqualified(reason string) QualifyResult {
	return QualifyResult{Outcome: QualifyAbsent, Reason: reason}
}

func (r QualifyResult) Present() bool {
	return r.Outcome == QualifyPresent
}
