package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modbot-dev/modbot/automod/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier() *retry.Retrier {
	return &retry.Retrier{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Sleep:      func(ctx context.Context, d time.Duration) error { return nil },
	}
}

func TestOllamaProvider(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/api/generate", r.URL.Path)
		var body map[string]any
		assert.NoError(json.NewDecoder(r.Body).Decode(&body))
		assert.Equal("llama3", body["model"])
		assert.Equal(false, body["stream"])
		w.Write([]byte(`{"response": "{\"decision\": \"warn\"}"}`))
	}))
	defer srv.Close()

	p, err := New(Config{Provider: "ollama", OllamaHost: srv.URL, Retrier: fastRetrier()})
	require.NoError(t, err)
	assert.Equal("ollama", p.Name())
	out, err := p.Complete(ctx, "hello")
	assert.NoError(err)
	assert.Equal(`{"decision": "warn"}`, out)
}

func TestOpenAIProviderRateLimitRetry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("Bearer sk-test", r.Header.Get("Authorization"))
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "ignore"}}]}`))
	}))
	defer srv.Close()

	p, err := New(Config{Provider: "openai", OpenAIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini", Retrier: fastRetrier()})
	require.NoError(t, err)
	out, err := p.Complete(ctx, "hello")
	assert.NoError(err)
	assert.Equal("ignore", out)
	assert.Equal(int32(2), hits.Load())
}

func TestAnthropicProvider(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/v1/messages", r.URL.Path)
		assert.Equal("key", r.Header.Get("x-api-key"))
		w.Write([]byte(`{"content": [{"type": "text", "text": "line one"}, {"type": "text", "text": "line two"}]}`))
	}))
	defer srv.Close()

	p, err := New(Config{Provider: "Anthropic", AnthropicKey: "key", BaseURL: srv.URL, Retrier: fastRetrier()})
	require.NoError(t, err)
	out, err := p.Complete(ctx, "hello")
	assert.NoError(err)
	assert.Equal("line one\nline two", out)
}

func TestGeminiProvider(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/models/gemini-pro:generateContent", r.URL.Path)
		w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "delete"}]}}]}`))
	}))
	defer srv.Close()

	p, err := New(Config{Provider: "gemini", GeminiKey: "key", BaseURL: srv.URL, Model: "gemini-pro", Retrier: fastRetrier()})
	require.NoError(t, err)
	out, err := p.Complete(ctx, "hello")
	assert.NoError(err)
	assert.Equal("delete", out)
}

func TestProviderFailureNormalized(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p, err := New(Config{OllamaHost: srv.URL, Retrier: fastRetrier()})
	require.NoError(t, err)
	_, err = p.Complete(ctx, "hello")
	assert.True(errors.Is(err, retry.ErrGeneric))
	// 400 is not retryable
	assert.Equal(int32(1), hits.Load())
}

func TestFactoryValidation(t *testing.T) {
	assert := assert.New(t)

	_, err := New(Config{Provider: "openai"})
	assert.Error(err)
	_, err = New(Config{Provider: "cohere"})
	assert.Error(err)
	p, err := New(Config{})
	assert.NoError(err)
	assert.Equal("ollama", p.Name())
}
