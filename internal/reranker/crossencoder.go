package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"go.uber.org/zap"
)

const defaultCrossEncoderEndpoint = "http://localhost:8091/rerank"

// CrossEncoder scores (query, document) pairs against a locally hosted
// cross-encoder model served over HTTP. Raw logits are squashed to [0,1]
// with a sigmoid.
type CrossEncoder struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewCrossEncoder(endpoint string, logger *zap.Logger) *CrossEncoder {
	if endpoint == "" {
		endpoint = defaultCrossEncoderEndpoint
	}
	return &CrossEncoder{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type crossEncoderRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type crossEncoderResponse struct {
	Scores []float64 `json:"scores"`
}

func (c *CrossEncoder) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	body, err := json.Marshal(crossEncoderRequest{Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank endpoint returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result crossEncoderResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal rerank response: %w", err)
	}
	if len(result.Scores) != len(documents) {
		return nil, fmt.Errorf("rerank endpoint returned %d scores for %d documents", len(result.Scores), len(documents))
	}

	scores := make([]float64, len(result.Scores))
	for i, logit := range result.Scores {
		scores[i] = sigmoid(logit)
	}
	return scores, nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
