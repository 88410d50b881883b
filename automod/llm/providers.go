package llm

import (
	"context"
	"strings"

	"github.com/modbot-dev/modbot/automod/retry"
)

type OllamaProvider struct {
	httpProvider
}

func (p *OllamaProvider) Name() string { return ProviderOllama }

func (p *OllamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return retry.Call(ctx, p.retrier, ProviderOllama, func(ctx context.Context) (string, error) {
		body := map[string]any{
			"model":  p.model,
			"prompt": prompt,
			"stream": false,
		}
		var out struct {
			Response string `json:"response"`
			Output   string `json:"output"`
		}
		if err := p.postJSON(ctx, p.baseURL+"/api/generate", nil, body, &out); err != nil {
			return "", err
		}
		if out.Response != "" {
			return out.Response, nil
		}
		return out.Output, nil
	})
}

type OpenAIProvider struct {
	httpProvider
}

func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return retry.Call(ctx, p.retrier, ProviderOpenAI, func(ctx context.Context) (string, error) {
		body := map[string]any{
			"model": p.model,
			"messages": []map[string]string{
				{"role": "user", "content": prompt},
			},
			"temperature": temperature,
			"max_tokens":  maxTokens,
		}
		var out struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
		if err := p.postJSON(ctx, p.baseURL+"/chat/completions", headers, body, &out); err != nil {
			return "", err
		}
		if len(out.Choices) == 0 {
			return "", nil
		}
		return out.Choices[0].Message.Content, nil
	})
}

type AnthropicProvider struct {
	httpProvider
}

func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

func (p *AnthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return retry.Call(ctx, p.retrier, ProviderAnthropic, func(ctx context.Context) (string, error) {
		body := map[string]any{
			"model":       p.model,
			"max_tokens":  maxTokens,
			"temperature": temperature,
			"messages": []map[string]string{
				{"role": "user", "content": prompt},
			},
		}
		var out struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		}
		headers := map[string]string{
			"x-api-key":         p.apiKey,
			"anthropic-version": "2023-06-01",
		}
		if err := p.postJSON(ctx, p.baseURL+"/v1/messages", headers, body, &out); err != nil {
			return "", err
		}
		parts := []string{}
		for _, block := range out.Content {
			if block.Text != "" {
				parts = append(parts, block.Text)
			}
		}
		return strings.Join(parts, "\n"), nil
	})
}

type GeminiProvider struct {
	httpProvider
}

func (p *GeminiProvider) Name() string { return ProviderGemini }

func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return retry.Call(ctx, p.retrier, ProviderGemini, func(ctx context.Context) (string, error) {
		body := map[string]any{
			"contents": []map[string]any{
				{"role": "user", "parts": []map[string]string{{"text": prompt}}},
			},
			"generationConfig": map[string]any{
				"temperature":     temperature,
				"maxOutputTokens": maxTokens,
			},
		}
		var out struct {
			Candidates []struct {
				Content struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"content"`
			} `json:"candidates"`
		}
		headers := map[string]string{"x-goog-api-key": p.apiKey}
		if err := p.postJSON(ctx, p.baseURL+"/models/"+p.model+":generateContent", headers, body, &out); err != nil {
			return "", err
		}
		if len(out.Candidates) == 0 {
			return "", nil
		}
		parts := []string{}
		for _, part := range out.Candidates[0].Content.Parts {
			parts = append(parts, part.Text)
		}
		return strings.Join(parts, ""), nil
	})
}
