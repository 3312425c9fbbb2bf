package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
	"github.com/kirillkom/bd-pipeline/internal/infrastructure/resilience"
)

var requiredFields = []string{
	"is_government",
	"org_name",
	"org_type",
	"summary",
	"service_matches",
	"intent_signals",
	"confidence_score",
	"relevance_reasoning",
}

type Qualifier struct {
	client *Client
}

func NewQualifier(client *Client) *Qualifier {
	return &Qualifier{client: client}
}

// Qualify returns an error only when the caller's context is done.
// Every other failure is reported as an absent judgment.
func (q *Qualifier) Qualify(ctx context.Context, lead domain.RawLead) (domain.QualifyResult, error) {
	text, err := q.client.complete(ctx, "qualify", qualificationSystemPrompt, buildQualificationPrompt(lead))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && resilience.IsContextError(err) {
			return domain.QualifyResult{}, fmt.Errorf("qualify %q: %w", lead.Title, ctxErr)
		}
		slog.Error("llm_qualification_failed", "title", lead.Title, "error", err)
		return domain.Unqualified("llm call failed: " + err.Error()), nil
	}

	qualification, err := parseQualification(text)
	if err != nil {
		slog.Error("llm_qualification_unparseable", "title", lead.Title, "error", err)
		return domain.Unqualified(err.Error()), nil
	}
	return domain.Qualified(qualification), nil
}

func parseQualification(text string) (domain.Qualification, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &fields); err != nil {
		return domain.Qualification{}, fmt.Errorf("parse qualification json: %w", err)
	}
	if fields == nil {
		return domain.Qualification{}, fmt.Errorf("parse qualification json: reply is null")
	}
	for _, name := range requiredFields {
		if _, ok := fields[name]; !ok {
			slog.Warn("llm_qualification_missing_field", "field", name)
		}
	}

	confidence, err := parseConfidence(fields["confidence_score"])
	if err != nil {
		return domain.Qualification{}, err
	}
	government, err := parseGovernment(fields["is_government"])
	if err != nil {
		return domain.Qualification{}, err
	}

	return domain.Qualification{
		IsGovernment:       government,
		OrgName:            decodeOptional[string](fields["org_name"]),
		OrgType:            decodeOptional[string](fields["org_type"]),
		Summary:            decodeOptional[string](fields["summary"]),
		ServiceMatches:     parseServices(fields["service_matches"]),
		IntentSignals:      parseStrings(fields["intent_signals"]),
		ConfidenceScore:    confidence,
		RelevanceReasoning: decodeOptional[string](fields["relevance_reasoning"]),
	}, nil
}

// decodeOptional yields nil for a missing, null, or mistyped value.
func decodeOptional[T any](raw json.RawMessage) *T {
	if isNull(raw) {
		return nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return &out
}

// parseGovernment accepts a bool or the strings "true"/"false". Anything else
// fails the judgment so a mistyped flag cannot let a government lead through.
func parseGovernment(raw json.RawMessage) (*bool, error) {
	if isNull(raw) {
		return nil, nil
	}
	var value bool
	if err := json.Unmarshal(raw, &value); err == nil {
		return &value, nil
	}
	var str string
	if json.Unmarshal(raw, &str) == nil {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(str)); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("is_government is not a boolean: %s", string(raw))
}

// parseConfidence accepts a number or a numeric string and clamps it into [0,1].
func parseConfidence(raw json.RawMessage) (*float64, error) {
	if isNull(raw) {
		return nil, nil
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		var str string
		if json.Unmarshal(raw, &str) != nil {
			return nil, fmt.Errorf("confidence_score is not numeric: %s", string(raw))
		}
		parsed, parseErr := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if parseErr != nil {
			return nil, fmt.Errorf("confidence_score is not numeric: %q", str)
		}
		value = parsed
	}
	if math.IsNaN(value) {
		return nil, fmt.Errorf("confidence_score is not numeric: NaN")
	}
	value = math.Max(0, math.Min(1, value))
	return &value, nil
}

func parseServices(raw json.RawMessage) []domain.ServiceCategory {
	out := []domain.ServiceCategory{}
	for _, item := range parseStrings(raw) {
		if service, ok := domain.ParseServiceCategory(item); ok {
			out = append(out, service)
		}
	}
	return out
}

func parseStrings(raw json.RawMessage) []string {
	out := []string{}
	if isNull(raw) {
		return out
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
