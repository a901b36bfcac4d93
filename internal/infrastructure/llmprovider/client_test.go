package llmprovider_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentErrors "github.com/janhq/mention-agent/internal/domain/errors"
	"github.com/janhq/mention-agent/internal/domain/status"
	"github.com/janhq/mention-agent/internal/infrastructure/llmprovider"
)

func TestClient_CreateChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Len(t, req.Messages, 1)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: req.Model,
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: "<response>hi</response>"},
				FinishReason: openai.FinishReasonStop,
			}},
		})
	}))
	defer server.Close()

	client := llmprovider.NewClient(llmprovider.Config{
		BaseURL: server.URL + "/",
		APIKey:  "sk-test",
		Model:   "gpt-4o-mini",
	}, zerolog.Nop())

	resp, err := client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "<response>hi</response>", resp.Choices[0].Message.Content)
}

func TestClient_ErrorStatusIsClassified(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		severity status.ErrorSeverity
	}{
		{name: "throttled", status: http.StatusTooManyRequests, severity: status.ErrorSeverityRetryable},
		{name: "overloaded", status: http.StatusServiceUnavailable, severity: status.ErrorSeverityRetryable},
		{name: "bad request", status: http.StatusBadRequest, severity: status.ErrorSeverityFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"upstream said no","type":"invalid_request_error"}}`))
			}))
			defer server.Close()

			client := llmprovider.NewClient(llmprovider.Config{BaseURL: server.URL, Model: "m"}, zerolog.Nop())
			_, err := client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{})
			require.Error(t, err)

			var httpErr *agentErrors.HTTPStatusError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, "upstream said no", httpErr.Body)
			assert.Equal(t, tt.severity, agentErrors.NewClassifier().Classify(err))
		})
	}
}

func TestClient_RateLimited(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := llmprovider.NewClient(llmprovider.Config{
		BaseURL:        server.URL,
		Model:          "m",
		RateLimitRPS:   0.001,
		RateLimitBurst: 1,
	}, zerolog.Nop())

	_, err := client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_SendsNearZeroTemperature(t *testing.T) {
	bodies := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		bodies <- string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := llmprovider.NewClient(llmprovider.Config{BaseURL: server.URL, Model: "m"}, zerolog.Nop())
	_, err := client.CreateChatCompletion(context.Background(), openai.ChatCompletionRequest{
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "hello"}},
		Temperature: math.SmallestNonzeroFloat32,
	})
	require.NoError(t, err)

	body := <-bodies
	assert.Contains(t, body, `"temperature"`)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	temperature, ok := decoded["temperature"].(float64)
	require.True(t, ok)
	assert.Less(t, temperature, 1e-30)
}
