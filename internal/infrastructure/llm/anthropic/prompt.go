package anthropic

import (
	"fmt"
	"strings"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
	"github.com/kirillkom/bd-pipeline/internal/infrastructure/sources/markup"
)

const (
	qualifyTextRunes = 3000
	batchTextRunes   = 500
)

const qualificationSystemPrompt = `You are a Business Development analyst for Citizen Codex, a company that builds products transforming how information can be used for the public good.

## Our Services
1. **Knowledge Systems/Management**: systems to organize, search, and surface institutional knowledge
2. **Digital Tools**: custom digital platforms and utilities for mission-driven work
3. **Interactive Tools**: dashboards, data explorers, calculators, and interactive content
4. **Digital Storytelling**: data-driven narratives, multimedia experiences, impact reports
5. **Custom Applications**: full-stack web/mobile applications built to spec

## Target Audience
Mission-driven organizations: NGOs, professional associations, professional services, law firms, advocacy organizations, foundations, and educational institutions.

## Strict Exclusions
- Government agencies (federal, state, local). We do NOT pursue these.
- Government departments, bureaus, or offices.

## Your Task
Analyze each opportunity and score it for relevance to Citizen Codex. You must:

1. Determine if it's a government entity. If yes, mark it as excluded immediately.
2. Identify the organization type: NGO, association, foundation, educational, law firm, etc.
3. Detect intent signals: data silos, fragmented systems, digital transformation needs, knowledge management, RFPs for dashboards/tools/apps.
4. Match to our services: which of our 5 service lines align with this opportunity?
5. Assess confidence: how likely is this a real, actionable opportunity for us?

Respond ONLY with valid JSON. No markdown, no backticks, no preamble.`

const qualificationUserTemplate = `Analyze this opportunity for Citizen Codex:

**Title:** %s
**Source:** %s (%s)
**Organization:** %s
**URL:** %s

**Full Text:**
%s

---

Return a JSON object with these exact fields:
{
  "is_government": boolean,
  "org_name": "Refined organization name",
  "org_type": "ngo|association|foundation|educational|law_firm|professional_services|advocacy|other",
  "summary": "2-3 sentence summary of the opportunity and why it matters for CC",
  "service_matches": [%s],
  "intent_signals": ["list of detected intent signals"],
  "confidence_score": 0.0 to 1.0,
  "relevance_reasoning": "1-2 sentence explanation of the confidence score"
}

Rules:
- confidence_score 0.8-1.0: Strong match. Clear need for our services, right org type, active RFP/procurement
- confidence_score 0.5-0.79: Moderate. Relevant sector with some intent signals, worth monitoring
- confidence_score 0.2-0.49: Weak. Tangential relevance, low intent signals
- confidence_score 0.0-0.19: Not relevant. Wrong sector, government, or no alignment
- service_matches should only include services we could realistically offer for this opportunity
- is_government MUST be true if the org is any level of government agency`

const batchSystemPrompt = `You are a rapid classifier for a BD pipeline. For each item, determine if it passes or fails our filters.

PASS if:
- The organization is NOT a government agency
- AND the opportunity relates to digital tools, knowledge management, data, technology, or information systems
- AND the organization is a nonprofit, association, foundation, educational institution, law firm, or advocacy org

FAIL if:
- It IS a government agency (any level)
- OR it has zero relevance to digital/technology/data/knowledge work
- OR it's purely about fundraising, events, or non-tech services

Respond with JSON only: [{"index": 0, "pass": true}, ...]`

func buildQualificationPrompt(lead domain.RawLead) string {
	services := make([]string, 0, len(domain.ServiceCategories()))
	for _, s := range domain.ServiceCategories() {
		services = append(services, `"`+string(s)+`"`)
	}
	return fmt.Sprintf(qualificationUserTemplate,
		lead.Title,
		lead.SourceName,
		lead.SourceType,
		orgOrUnknown(lead.OrgName),
		lead.SourceURL,
		markup.Truncate(lead.RawText, qualifyTextRunes),
		strings.Join(services, ", "),
	)
}

func buildBatchPrompt(leads []domain.RawLead) string {
	items := make([]string, 0, len(leads))
	for i, lead := range leads {
		items = append(items, fmt.Sprintf("[%d] Title: %s\nOrg: %s\nSource: %s\nText: %s\n",
			i, lead.Title, orgOrUnknown(lead.OrgName), lead.SourceName, markup.Truncate(lead.RawText, batchTextRunes)))
	}
	return fmt.Sprintf("Classify these %d items:\n\n%s", len(leads), strings.Join(items, "\n---\n"))
}

func orgOrUnknown(name string) string {
	if strings.TrimSpace(name) == "" {
		return domain.UnknownOrgName
	}
	return name
}

// stripCodeFence removes a leading ```lang line and the trailing fence.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
