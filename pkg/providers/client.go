package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/logger"
)

const (
	maxAttempts    = 3
	defaultBackoff = 500 * time.Millisecond
)

// ModelClient is the HTTP implementation of Client against an
// OpenAI-style API.
type ModelClient struct {
	cfg        config.ModelConfig
	apiBase    string
	httpClient *http.Client
	backoff    time.Duration
}

func NewModelClient(cfg config.ModelConfig) *ModelClient {
	timeout := time.Duration(cfg.CallTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &ModelClient{
		cfg:        cfg,
		apiBase:    strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/"),
		httpClient: &http.Client{Timeout: timeout},
		backoff:    defaultBackoff,
	}
}

func (c *ModelClient) Chat(ctx context.Context, messages []Message, opts Options) (*LLMResponse, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = c.cfg.ChatModel
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.cfg.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	body := map[string]interface{}{
		"model":       model,
		"messages":    messages,
		"temperature": temperature,
		"max_tokens":  maxTokens,
	}
	if opts.JSONMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	raw, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}
	return parseChatResponse(raw)
}

func (c *ModelClient) SummarizeMini(ctx context.Context, text string, maxWords int) (string, error) {
	if maxWords <= 0 {
		maxWords = 150
	}
	resp, err := c.Chat(ctx, []Message{
		{Role: "system", Content: fmt.Sprintf("Summarize the following text in at most %d words. Keep emotional tone and concrete details; drop filler.", maxWords)},
		{Role: "user", Content: text},
	}, Options{Model: c.cfg.MiniModel, Temperature: 0.3})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func (c *ModelClient) Embed(ctx context.Context, text string) ([]float64, error) {
	raw, err := c.post(ctx, "/embeddings", map[string]interface{}{
		"model": c.cfg.EmbeddingModel,
		"input": text,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse embeddings response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embeddings response carried no data")
	}
	return parsed.Data[0].Embedding, nil
}

// post sends one JSON request, retrying retryable failures twice with
// jittered backoff.
func (c *ModelClient) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	if c.apiBase == "" {
		return nil, fmt.Errorf("model API base not configured")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal model request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff * time.Duration(1<<(attempt-1))
			delay += time.Duration(rand.Int63n(int64(c.backoff)))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			logger.DebugCF("providers", "retrying model call", map[string]interface{}{
				"path":    path,
				"attempt": attempt + 1,
			})
		}

		raw, err := c.doOnce(ctx, path, payload)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.Retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *ModelClient) doOnce(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &APIError{Kind: KindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, classifyStatus(resp.StatusCode, raw)
	}
	return raw, nil
}

func parseChatResponse(raw []byte) (*LLMResponse, error) {
	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content interface{} `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage *UsageInfo `json:"usage"`
	}
	if err := json.Unmarshal(raw, &apiResponse); err != nil {
		return nil, fmt.Errorf("parse chat response: %w", err)
	}
	if len(apiResponse.Choices) == 0 {
		return &LLMResponse{FinishReason: "stop"}, nil
	}
	choice := apiResponse.Choices[0]
	return &LLMResponse{
		Content:      flattenMessageContent(choice.Message.Content),
		FinishReason: choice.FinishReason,
		Usage:        apiResponse.Usage,
	}, nil
}

// flattenMessageContent handles both plain-string and structured
// content parts.
func flattenMessageContent(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				parts = append(parts, text)
				continue
			}
			if content, ok := m["content"].(string); ok {
				parts = append(parts, content)
			}
		}
		return strings.Join(parts, "")
	default:
		return ""
	}
}
