package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lyralabs/lyra/pkg/config"
	"github.com/lyralabs/lyra/pkg/research"
)

func testClient(url string) *ModelClient {
	cfg := config.DefaultConfig().Model
	cfg.APIKey = "test-key"
	cfg.APIBase = url
	c := NewModelClient(cfg)
	c.backoff = time.Millisecond
	return c
}

func chatReply(content string) string {
	payload := map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message":       map[string]interface{}{"content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func TestChatSendsModelAndAuth(t *testing.T) {
	var gotAuth, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel, _ = body["model"].(string)
		fmt.Fprint(w, chatReply("hello there"))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	require.NoError(t, err)
	require.Equal(t, "hello there", resp.Content)
	require.Equal(t, "Bearer test-key", gotAuth)
	require.Equal(t, config.DefaultConfig().Model.ChatModel, gotModel)
	require.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestRetriesServerErrorsThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"upstream hiccup"}}`)
			return
		}
		fmt.Fprint(w, chatReply("recovered"))
	}))
	defer srv.Close()

	resp, err := testClient(srv.URL).Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	require.NoError(t, err)
	require.Equal(t, "recovered", resp.Content)
	require.Equal(t, 3, calls)
}

func TestAuthErrorsAreNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided"}}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	require.Error(t, err)
	require.Equal(t, 1, calls)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	require.Equal(t, KindAuth, apiErr.Kind)
	require.False(t, apiErr.Retryable())
	require.Contains(t, apiErr.Message, "Hint:")
}

func TestEmbedParsesVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		fmt.Fprint(w, `{"data":[{"embedding":[0.1,0.2,0.3]}]}`)
	}))
	defer srv.Close()

	vec, err := testClient(srv.URL).Embed(context.Background(), "some text")
	require.NoError(t, err)
	require.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}

func TestSummarizeMiniUsesMiniModel(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel, _ = body["model"].(string)
		fmt.Fprint(w, chatReply("  a short summary  "))
	}))
	defer srv.Close()

	out, err := testClient(srv.URL).SummarizeMini(context.Background(), "long text", 150)
	require.NoError(t, err)
	require.Equal(t, "a short summary", out)
	require.Equal(t, config.DefaultConfig().Model.MiniModel, gotModel)
}

func TestAnalyzeResearchParsesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply(`{"insight":"I keep circling back to this","summary":"Two new findings.","quality":0.8}`))
	}))
	defer srv.Close()

	insight, summary, quality, err := testClient(srv.URL).AnalyzeResearch(
		context.Background(), "octopus cognition", "", &research.SearchResponse{Answer: "they dream"})
	require.NoError(t, err)
	require.Equal(t, "I keep circling back to this", insight)
	require.Equal(t, "Two new findings.", summary)
	require.InDelta(t, 0.8, quality, 1e-9)
}

func TestFlattenStructuredContent(t *testing.T) {
	resp, err := parseChatResponse([]byte(`{"choices":[{"message":{"content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]},"finish_reason":"stop"}]}`))
	require.NoError(t, err)
	require.Equal(t, "part one part two", resp.Content)
}
