package usecase

import (
	"strings"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
)

// KeywordPreFilter rejects government items and keeps items that mention
// buying intent or a target sector. Matching is case-insensitive substring.
type KeywordPreFilter struct {
	intent     []string
	government []string
	sector     []string
}

func NewKeywordPreFilter(intent, government, sector []string) *KeywordPreFilter {
	return &KeywordPreFilter{
		intent:     lowerAll(intent),
		government: lowerAll(government),
		sector:     lowerAll(sector),
	}
}

func (f *KeywordPreFilter) Allow(lead domain.RawLead) bool {
	text := strings.ToLower(lead.Title + " " + lead.RawText)

	if containsAny(text, f.government) {
		return false
	}
	return containsAny(text, f.intent) || containsAny(text, f.sector)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, strings.ToLower(item))
	}
	return out
}
