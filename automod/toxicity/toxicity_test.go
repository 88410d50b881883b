package toxicity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/modbot-dev/modbot/automod/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerspectiveParse(t *testing.T) {
	assert := assert.New(t)

	respBytes, err := os.ReadFile("testdata/perspective_resp_example.json")
	require.NoError(t, err)

	var respObj PerspectiveResp
	require.NoError(t, json.Unmarshal(respBytes, &respObj))
	assert.Equal(2, len(respObj.AttributeScores))
	assert.InDelta(0.83, respObj.Summarize(), 0.0001)

	delete(respObj.AttributeScores, "TOXICITY")
	assert.InDelta(0.61, respObj.Summarize(), 0.0001)
}

func TestPerspectiveScorer(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("k", r.URL.Query().Get("key"))
		var body map[string]any
		assert.NoError(json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(true, body["doNotStore"])
		attrs := body["requestedAttributes"].(map[string]any)
		assert.Contains(attrs, "TOXICITY")
		assert.Contains(attrs, "INSULT")
		w.Write([]byte(`{"attributeScores": {"TOXICITY": {"summaryScore": {"value": 0.42}}}}`))
	}))
	defer srv.Close()

	ps := NewPerspectiveScorer("k", ParseAttributes("toxicity, insult"))
	ps.Endpoint = srv.URL
	score, err := ps.Score(ctx, "hello there")
	assert.NoError(err)
	assert.InDelta(0.42, score, 0.0001)
}

func TestPerspectiveScorerError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ps := NewPerspectiveScorer("k", nil)
	ps.Endpoint = srv.URL
	ps.Retrier = &retry.Retrier{MaxRetries: 1, BaseDelay: time.Millisecond, Sleep: func(ctx context.Context, d time.Duration) error { return nil }}
	_, err := ps.Score(ctx, "hello")
	assert.ErrorIs(err, retry.ErrRateLimit)
}

func TestParseAttributes(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"TOXICITY"}, ParseAttributes(""))
	assert.Equal([]string{"TOXICITY", "SEVERE_TOXICITY"}, ParseAttributes("toxicity,,severe_toxicity "))
}

func TestFactory(t *testing.T) {
	assert := assert.New(t)

	_, ok := New(Config{}).(NeutralScorer)
	assert.True(ok)
	_, ok = New(Config{PerspectiveKey: "x"}).(*PerspectiveScorer)
	assert.True(ok)

	score, err := StaticScorer(1.7).Score(context.Background(), "")
	assert.NoError(err)
	assert.Equal(1.0, score)
}
