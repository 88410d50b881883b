package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/modbot-dev/modbot/automod/cachestore"
	"github.com/modbot-dev/modbot/automod/retry"
	"github.com/modbot-dev/modbot/pkg/robusthttp"
)

// Tool-calling decision endpoint.
type Service interface {
	Tools(ctx context.Context) ([]map[string]any, error)
	Process(ctx context.Context, req *ChatRequest) (json.RawMessage, error)
}

var ErrEmptyCatalog = errors.New("decision service returned an empty tool catalog")

const catalogCacheName = "decision-tools"

// HTTP client for the decision service: GET {base}/mcp/tools and POST {base}/mcp.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Retrier *retry.Retrier
	// optional; caches the tool catalog
	Cache  cachestore.CacheStore
	Logger *slog.Logger
}

var _ Service = (*Client)(nil)

func NewClient(baseURL string, retrier *retry.Retrier, cache cachestore.CacheStore, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    robusthttp.NewClient(robusthttp.WithLogger(logger)),
		Retrier: retrier,
		Cache:   cache,
		Logger:  logger,
	}
}

func (c *Client) Tools(ctx context.Context) ([]map[string]any, error) {
	if c.Cache != nil {
		var cached []map[string]any
		ok, err := cachestore.GetJSON(ctx, c.Cache, catalogCacheName, c.BaseURL, &cached)
		if err != nil {
			c.Logger.Warn("tool catalog cache read failed", "err", err)
		} else if ok && len(cached) > 0 {
			return cached, nil
		}
	}

	tools, err := retry.Call(ctx, c.Retrier, "decision-service", func(ctx context.Context) ([]map[string]any, error) {
		body, err := c.do(ctx, http.MethodGet, "/mcp/tools", nil)
		if err != nil {
			return nil, err
		}
		return parseCatalog(body)
	})
	if err != nil {
		return nil, err
	}
	if len(tools) == 0 {
		return nil, ErrEmptyCatalog
	}
	if c.Cache != nil {
		if err := cachestore.SetJSON(ctx, c.Cache, catalogCacheName, c.BaseURL, tools); err != nil {
			c.Logger.Warn("tool catalog cache write failed", "err", err)
		}
	}
	return tools, nil
}

// Accepts {"tools": [...]} or a bare list.
func parseCatalog(body []byte) ([]map[string]any, error) {
	var wrapper struct {
		Tools []map[string]any `json:"tools"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil {
		return wrapper.Tools, nil
	}
	var bare []map[string]any
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("parse tool catalog: %w", err)
	}
	return bare, nil
}

// Returns the raw reply. A reply carrying only an "error" field is returned as an error.
func (c *Client) Process(ctx context.Context, req *ChatRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return retry.Call(ctx, c.Retrier, "decision-service", func(ctx context.Context) (json.RawMessage, error) {
		body, err := c.do(ctx, http.MethodPost, "/mcp", payload)
		if err != nil {
			return nil, err
		}
		if msg := replyError(body); msg != "" {
			return nil, fmt.Errorf("decision service error: %s", msg)
		}
		return json.RawMessage(body), nil
	})
}

func replyError(body []byte) string {
	var shape struct {
		Error     any             `json:"error"`
		ToolCalls json.RawMessage `json:"tool_calls"`
	}
	if err := json.Unmarshal(body, &shape); err != nil || shape.Error == nil {
		return ""
	}
	if len(NormalizeToolCalls(decodeOrNil(shape.ToolCalls))) > 0 {
		return ""
	}
	msg := fmt.Sprint(shape.Error)
	if msg == "" || msg == "false" {
		return ""
	}
	return msg
}

func decodeOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	v, _ := decodeJSON(string(raw))
	return v
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
