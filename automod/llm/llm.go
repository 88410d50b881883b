package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/modbot-dev/modbot/automod/retry"
	"github.com/modbot-dev/modbot/pkg/robusthttp"
)

// Single-prompt text completion. Implementations retry through the shared retry wrapper and return *retry.ProviderError on failure.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"

	DefaultModel = "llama3"

	maxTokens   = 400
	temperature = 0.2
)

type Config struct {
	Provider string
	Model    string
	// defaults to http://localhost:11434
	OllamaHost   string
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
	// override API base URLs (for tests and compatible gateways)
	BaseURL string

	HTTPClient *http.Client
	Retrier    *retry.Retrier
}

// Constructs the configured provider. An unknown provider name, or a hosted provider without an API key, is a configuration error.
func New(cfg Config) (Provider, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = robusthttp.NewClient()
	}
	if cfg.Retrier == nil {
		cfg.Retrier = retry.DefaultRetrier()
	}
	base := httpProvider{
		model:   cfg.Model,
		client:  cfg.HTTPClient,
		retrier: cfg.Retrier,
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOllama:
		host := cfg.BaseURL
		if host == "" {
			host = cfg.OllamaHost
		}
		if host == "" {
			host = "http://localhost:11434"
		}
		base.baseURL = strings.TrimSuffix(host, "/")
		return &OllamaProvider{httpProvider: base}, nil
	case ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY required for openai provider")
		}
		base.baseURL = orDefault(cfg.BaseURL, "https://api.openai.com/v1")
		base.apiKey = cfg.OpenAIKey
		return &OpenAIProvider{httpProvider: base}, nil
	case ProviderAnthropic:
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY required for anthropic provider")
		}
		base.baseURL = orDefault(cfg.BaseURL, "https://api.anthropic.com")
		base.apiKey = cfg.AnthropicKey
		return &AnthropicProvider{httpProvider: base}, nil
	case ProviderGemini:
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY required for gemini provider")
		}
		base.baseURL = orDefault(cfg.BaseURL, "https://generativelanguage.googleapis.com/v1beta")
		base.apiKey = cfg.GeminiKey
		return &GeminiProvider{httpProvider: base}, nil
	default:
		return nil, fmt.Errorf("MODEL_PROVIDER must be one of ollama, openai, anthropic, gemini (got %q)", cfg.Provider)
	}
}

func orDefault(val, def string) string {
	if val == "" {
		return def
	}
	return strings.TrimSuffix(val, "/")
}

// Shared plumbing for the JSON-over-HTTP providers.
type httpProvider struct {
	model   string
	baseURL string
	apiKey  string
	client  *http.Client
	retrier *retry.Retrier
}

func (p *httpProvider) postJSON(ctx context.Context, url string, headers map[string]string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &retry.StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 300)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
