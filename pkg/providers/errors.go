package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds for API failures. Rate limits, timeouts, and server
// errors are retryable; auth and bad-request failures are not.
const (
	KindAuth       = "auth"
	KindRateLimit  = "rate_limit"
	KindTimeout    = "timeout"
	KindServer     = "server"
	KindBadRequest = "bad_request"
	KindNetwork    = "network"
)

// APIError is a classified model API failure.
type APIError struct {
	Kind    string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model API %s error: status=%d %s", e.Kind, e.Status, e.Message)
}

func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindTimeout, KindServer, KindNetwork:
		return true
	}
	return false
}

func classifyStatus(status int, body []byte) *APIError {
	msg := extractAPIError(body)
	kind := KindBadRequest
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
		msg = augmentAuthError(msg)
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = KindTimeout
	case status >= 500:
		kind = KindServer
	}
	return &APIError{Kind: kind, Status: status, Message: msg}
}

func extractAPIError(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "empty response body"
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Error.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
	}

	if len(trimmed) > 2000 {
		return trimmed[:2000] + "..."
	}
	return trimmed
}

func augmentAuthError(msg string) string {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "incorrect api key provided") || strings.Contains(lower, "invalid api key") {
		return msg + " Hint: set OPENAI_API_KEY to a Platform API credential."
	}
	return msg
}
