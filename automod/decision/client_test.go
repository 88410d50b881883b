package decision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modbot-dev/modbot/automod/cachestore"
	"github.com/modbot-dev/modbot/automod/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetrier() *retry.Retrier {
	return &retry.Retrier{
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
		Sleep:      func(ctx context.Context, d time.Duration) error { return nil },
	}
}

func TestClientRoundTrip(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var toolHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp/tools", func(w http.ResponseWriter, r *http.Request) {
		toolHits.Add(1)
		w.Write([]byte(`{"tools": [{"name": "warn_user"}]}`))
	})
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		assert.NoError(json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(1, len(req.Tools.Tools))
		assert.Equal(2, len(req.Context.Messages))
		w.Write([]byte(`{"tool_calls": [{"name": "warn_user", "arguments": {"reason": "spam"}}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL+"/", testRetrier(), cachestore.NewMemCacheStore(10, time.Minute), nil)
	d := &Decider{Service: c}

	a := d.AskTools(ctx, "buy followers", 0.6)
	assert.NoError(a.Err)
	assert.Equal([]ToolCall{{Name: "warn_user", Arguments: map[string]any{"reason": "spam"}}}, a.ToolCalls)

	// catalog served from cache the second time
	a = d.AskTools(ctx, "buy followers", 0.6)
	assert.NoError(a.Err)
	assert.Equal(int32(1), toolHits.Load())
}

func TestClientFailures(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp/tools", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tools": []}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, testRetrier(), nil, nil)
	_, err := c.Tools(ctx)
	assert.True(errors.Is(err, ErrEmptyCatalog))

	errSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/mcp/tools" {
			w.Write([]byte(`[{"name": "ignore"}]`))
			return
		}
		w.Write([]byte(`{"tool_calls": [], "error": "LLM provider not initialized"}`))
	}))
	defer errSrv.Close()

	d := &Decider{Service: NewClient(errSrv.URL, testRetrier(), nil, nil)}
	a := d.AskTools(ctx, "x", 0.5)
	assert.Error(a.Err)
	assert.True(errors.Is(a.Err, retry.ErrGeneric))
}

type fakeProvider struct {
	reply string
	err   error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func TestDeciderLegacy(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	d := &Decider{Completions: &fakeProvider{reply: "I think we should warn the user"}}
	assert.True(d.Configured())
	a := d.AskLegacy(ctx, "hi", 0.6)
	assert.NoError(a.Err)
	assert.Equal(DecisionWarn, a.Decision.Decision)
	assert.Equal(PathLegacy, a.Path)

	d = &Decider{Completions: &fakeProvider{err: errors.New("boom")}}
	a = d.AskLegacy(ctx, "hi", 0.6)
	assert.Error(a.Err)
	assert.Equal("", a.Decision.Decision)

	var empty Decider
	assert.False(empty.Configured())
	assert.True(errors.Is(empty.AskTools(ctx, "", 0).Err, ErrNotConfigured))
}

func TestCatalogFromSpecs(t *testing.T) {
	assert := assert.New(t)

	specs := []ToolSpec{
		{Name: "timeout_member", Description: "Timeouts the user.", Params: []Param{
			{Name: "duration_minutes", Kind: reflect.Int, Required: true},
			{Name: "reason", Kind: reflect.String, Required: true},
			{Name: "notify", Kind: reflect.Bool},
			{Name: "weight", Kind: reflect.Float64},
		}},
		{Name: "ignore", Description: "No action taken."},
	}
	cat := CatalogFromSpecs(specs)
	require.Equal(t, 2, len(cat))

	params := cat[0]["parameters"].(map[string]any)
	assert.Equal("object", params["type"])
	props := params["properties"].(map[string]any)
	assert.Equal("integer", props["duration_minutes"].(map[string]any)["type"])
	assert.Equal("string", props["reason"].(map[string]any)["type"])
	assert.Equal("boolean", props["notify"].(map[string]any)["type"])
	assert.Equal("number", props["weight"].(map[string]any)["type"])
	assert.Equal([]string{"duration_minutes", "reason"}, params["required"])

	assert.Equal([]string{}, cat[1]["parameters"].(map[string]any)["required"])
}
