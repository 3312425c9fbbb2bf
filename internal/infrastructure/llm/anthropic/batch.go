package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kirillkom/bd-pipeline/internal/core/domain"
)

const defaultBatchSize = 20

type BatchClassifier struct {
	client    *Client
	batchSize int
}

func NewBatchClassifier(client *Client, batchSize int) *BatchClassifier {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &BatchClassifier{client: client, batchSize: batchSize}
}

type batchVerdict struct {
	Index *int  `json:"index"`
	Pass  *bool `json:"pass"`
}

// BatchClassify returns one verdict per lead. A chunk whose call fails passes
// every lead through; a lead the model left out of a good answer fails.
func (b *BatchClassifier) BatchClassify(ctx context.Context, leads []domain.RawLead) []bool {
	out := make([]bool, 0, len(leads))
	for start := 0; start < len(leads); start += b.batchSize {
		end := min(start+b.batchSize, len(leads))
		out = append(out, b.classifyChunk(ctx, leads[start:end])...)
	}
	return out
}

func (b *BatchClassifier) classifyChunk(ctx context.Context, chunk []domain.RawLead) []bool {
	verdicts, err := b.requestVerdicts(ctx, chunk)
	if err != nil {
		slog.Error("llm_batch_classification_failed", "items", len(chunk), "error", err)
		all := make([]bool, len(chunk))
		for i := range all {
			all[i] = true
		}
		return all
	}

	out := make([]bool, len(chunk))
	for _, v := range verdicts {
		if v.Index == nil || v.Pass == nil || *v.Index < 0 || *v.Index >= len(chunk) {
			continue
		}
		out[*v.Index] = *v.Pass
	}
	return out
}

func (b *BatchClassifier) requestVerdicts(ctx context.Context, chunk []domain.RawLead) ([]batchVerdict, error) {
	text, err := b.client.complete(ctx, "batch_classify", batchSystemPrompt, buildBatchPrompt(chunk))
	if err != nil {
		return nil, err
	}
	var verdicts []batchVerdict
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &verdicts); err != nil {
		return nil, fmt.Errorf("parse batch verdicts: %w", err)
	}
	return verdicts, nil
}
