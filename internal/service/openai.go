package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"matchcore/internal/config"
)

// Retry policy for transient upstream failures: up to 2 retries with
// exponential backoff. Rate limits (429) and other 4xx are never retried.
var retryBackoff = []time.Duration{200 * time.Millisecond, 800 * time.Millisecond}

// OpenAIClient handles OpenAI-compatible API interactions
type OpenAIClient struct {
	config     *config.OpenAIConfig
	httpClient *http.Client
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(cfg *config.OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// IsEnabled returns whether the client is configured and ready
func (c *OpenAIClient) IsEnabled() bool {
	return c.config.Enabled
}

// ChatCompletion performs a chat completion request with retry on transient
// failures
func (c *OpenAIClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if !c.config.Enabled {
		return nil, &UpstreamError{Op: "chat_completion", Err: errors.New("OpenAI API is not enabled (missing API key)")}
	}

	if req.Model == "" {
		req.Model = c.config.ChatModel
	}
	if req.Temperature == 0 && c.config.ChatTemperature > 0 {
		req.Temperature = c.config.ChatTemperature
	}
	if req.TopP == 0 && c.config.ChatTopP > 0 {
		req.TopP = c.config.ChatTopP
	}
	if req.MaxTokens == 0 && c.config.ChatMaxTokens > 0 {
		req.MaxTokens = c.config.ChatMaxTokens
	}

	body, err := c.doWithRetry(ctx, "chat_completion", "/chat/completions", req)
	if err != nil {
		return nil, err
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &UpstreamError{Op: "chat_completion", Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	return &result, nil
}

// CreateEmbeddings creates embeddings for the given texts. Output index i
// corresponds to input index i; a missing item fails the whole call.
func (c *OpenAIClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.config.Enabled {
		return nil, &UpstreamError{Op: "embeddings", Err: errors.New("OpenAI API is not enabled (missing API key)")}
	}

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := EmbeddingRequest{
		Model:          c.config.EmbeddingModel,
		Input:          texts,
		Dimensions:     c.config.EmbeddingDimensions,
		EncodingFormat: "float",
	}

	body, err := c.doWithRetry(ctx, "embeddings", "/embeddings", req)
	if err != nil {
		return nil, err
	}

	var result EmbeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &UpstreamError{Op: "embeddings", Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	// Reassemble in input order using the index field
	embeddings := make([][]float32, len(texts))
	for _, item := range result.Data {
		if item.Index >= 0 && item.Index < len(embeddings) {
			embeddings[item.Index] = item.Embedding
		}
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, &UpstreamError{Op: "embeddings", Err: fmt.Errorf("no embedding returned for input %d", i)}
		}
	}

	return embeddings, nil
}

// doWithRetry sends one JSON POST and retries transient failures. The
// returned error is always an *UpstreamError or ErrRateLimited.
func (c *OpenAIClient) doWithRetry(ctx context.Context, op, path string, payload interface{}) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, &UpstreamError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	var lastErr error
	for attempt := 0; attempt <= len(retryBackoff); attempt++ {
		if attempt > 0 {
			log.Printf("Retrying %s after transient error (attempt %d): %v", op, attempt+1, lastErr)
			select {
			case <-time.After(retryBackoff[attempt-1]):
			case <-ctx.Done():
				return nil, &UpstreamError{Op: op, Transient: true, Err: ctx.Err()}
			}
		}

		body, err := c.doOnce(ctx, op, path, reqBody)
		if err == nil {
			return body, nil
		}
		if !IsTransientUpstream(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func (c *OpenAIClient) doOnce(ctx context.Context, op, path string, reqBody []byte) ([]byte, error) {
	url := c.config.APIBase + path
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, &UpstreamError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.config.APIKey))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network errors and client timeouts are transient
		return nil, &UpstreamError{Op: op, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Op: op, Transient: true, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: ErrRateLimited}
	case resp.StatusCode >= 500:
		return nil, &UpstreamError{
			Op: op, StatusCode: resp.StatusCode, Transient: true,
			Err: fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body)),
		}
	default:
		return nil, &UpstreamError{
			Op: op, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body)),
		}
	}
}
