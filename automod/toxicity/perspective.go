package toxicity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/modbot-dev/modbot/automod/retry"
	"github.com/modbot-dev/modbot/pkg/robusthttp"

	"github.com/carlmjohnson/versioninfo"
)

const perspectiveEndpoint = "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze"

type PerspectiveScorer struct {
	Client     *http.Client
	ApiKey     string
	Attributes []string
	Endpoint   string
	Retrier    *retry.Retrier
}

// schema: https://developers.perspectiveapi.com/s/about-the-api-methods
type PerspectiveResp struct {
	AttributeScores map[string]PerspectiveResp_Attribute `json:"attributeScores"`
}

type PerspectiveResp_Attribute struct {
	SummaryScore PerspectiveResp_Score `json:"summaryScore"`
}

type PerspectiveResp_Score struct {
	Value float64 `json:"value"`
	Type  string  `json:"type"`
}

func NewPerspectiveScorer(key string, attrs []string) *PerspectiveScorer {
	return &PerspectiveScorer{
		Client:     robusthttp.NewClient(robusthttp.WithTimeout(10 * time.Second)),
		ApiKey:     key,
		Attributes: attrs,
		Endpoint:   perspectiveEndpoint,
		Retrier:    retry.DefaultRetrier(),
	}
}

// TOXICITY when the backend returned it, otherwise the highest requested attribute.
func (resp *PerspectiveResp) Summarize() float64 {
	if a, ok := resp.AttributeScores["TOXICITY"]; ok {
		return clamp(a.SummaryScore.Value)
	}
	best := 0.0
	for _, a := range resp.AttributeScores {
		if a.SummaryScore.Value > best {
			best = a.SummaryScore.Value
		}
	}
	return clamp(best)
}

func (ps *PerspectiveScorer) Score(ctx context.Context, text string) (float64, error) {
	return retry.Call(ctx, ps.Retrier, "perspective", func(ctx context.Context) (float64, error) {
		return ps.analyze(ctx, text)
	})
}

func (ps *PerspectiveScorer) analyze(ctx context.Context, text string) (float64, error) {
	requested := map[string]any{}
	for _, a := range ps.Attributes {
		requested[a] = map[string]any{}
	}
	body, err := json.Marshal(map[string]any{
		"comment":             map[string]string{"text": text},
		"languages":           []string{"en"},
		"requestedAttributes": requested,
		"doNotStore":          true,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", ps.Endpoint+"?key="+url.QueryEscape(ps.ApiKey), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	start := time.Now()
	defer func() {
		duration := time.Since(start)
		perspectiveAPIDuration.Observe(duration.Seconds())
	}()

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "modbot/"+versioninfo.Short())

	res, err := ps.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("perspective request failed: %w", err)
	}
	defer res.Body.Close()

	perspectiveAPICount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read perspective resp body: %w", err)
	}
	if res.StatusCode != 200 {
		return 0, &retry.StatusError{StatusCode: res.StatusCode, Body: string(respBytes)}
	}

	var respObj PerspectiveResp
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		return 0, fmt.Errorf("failed to parse perspective resp JSON: %w", err)
	}
	score := respObj.Summarize()
	slog.Debug("perspective-response", "score", score, "attributes", len(respObj.AttributeScores))
	return score, nil
}
