package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/biospace/apiserver/config"
)

// InferenceService proxies natural-language queries to the upstream
// inference endpoint as a plain pass-through call with a timeout.
type InferenceService struct {
	client *http.Client
	url    string
}

// NewInferenceService constructs the proxy client from config.
func NewInferenceService(cfg config.UpstreamConfig) *InferenceService {
	return &InferenceService{
		client: &http.Client{Timeout: cfg.Timeout},
		url:    cfg.InferenceURL,
	}
}

// InferenceResult is the upstream's response, passed through unchanged.
type InferenceResult struct {
	StatusCode int
	Body       json.RawMessage
}

// Ask forwards the query to the upstream service. A transport-level
// failure is reported as ErrUpstreamUnavailable; an upstream HTTP error
// is passed through in the result.
func (s *InferenceService) Ask(ctx context.Context, query string) (InferenceResult, error) {
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return InferenceResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return InferenceResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return InferenceResult{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return InferenceResult{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	return InferenceResult{
		StatusCode: resp.StatusCode,
		Body:       json.RawMessage(body),
	}, nil
}
