package feeds

import (
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
)

var orgSeparators = []string{":", " - ", " — ", " | "}

// ExtractOrgName guesses an organization from titles like "Acme Foundation: RFP for ...".
// Separators are tried in order; the first prefix of plausible length wins.
func ExtractOrgName(title string) string {
	for _, sep := range orgSeparators {
		idx := strings.Index(title, sep)
		if idx < 0 {
			continue
		}
		candidate := strings.TrimSpace(title[:idx])
		if n := utf8.RuneCountInString(candidate); n > 3 && n < 100 {
			return candidate
		}
	}
	return ""
}

// ClassifySource maps a feed URL to a human-readable source label.
func ClassifySource(feedURL string) string {
	u := strings.ToLower(feedURL)
	switch {
	case strings.Contains(u, "philanthropynewsdigest"), strings.Contains(u, "candid"):
		return "Philanthropy News Digest"
	case strings.Contains(u, "rfpdb"):
		return "RFPdb"
	case strings.Contains(u, "rfpmart"):
		switch {
		case strings.Contains(u, "it-services"):
			return "RFPMart — IT Services"
		case strings.Contains(u, "professional-consulting"):
			return "RFPMart — Professional Consulting"
		case strings.Contains(u, "data-entry"):
			return "RFPMart — Data/Records"
		default:
			return "RFPMart"
		}
	case strings.Contains(u, "nonprofitquarterly"):
		return "Nonprofit Quarterly"
	case strings.Contains(u, "techsoup"):
		return "TechSoup"
	case strings.Contains(u, "nptechforgood"):
		return "NP Tech for Good"
	default:
		return "RSS Feed"
	}
}

func classifyType(feedURL string) domain.SourceType {
	if strings.Contains(strings.ToLower(feedURL), "rfp") {
		return domain.SourceRSSRFP
	}
	return domain.SourceRSSNews
}
