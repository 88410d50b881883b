package toxicity

import (
	"context"
	"log/slog"
	"strings"
)

// Scores a message for toxicity. The returned value is in [0,1].
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// Always returns 0.0. Used when no scoring backend is configured.
type NeutralScorer struct{}

func (NeutralScorer) Score(ctx context.Context, text string) (float64, error) {
	return 0.0, nil
}

// Fixed score, mostly for tests and dry runs.
type StaticScorer float64

func (s StaticScorer) Score(ctx context.Context, text string) (float64, error) {
	return clamp(float64(s)), nil
}

type Config struct {
	PerspectiveKey string
	// comma-separated attribute names; defaults to TOXICITY
	Attributes string
	Logger     *slog.Logger
}

// Picks a scorer from config: Perspective when an API key is present, otherwise the neutral scorer.
func New(cfg Config) Scorer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PerspectiveKey == "" {
		logger.Warn("no toxicity backend configured, all messages will score 0.0")
		return NeutralScorer{}
	}
	return NewPerspectiveScorer(cfg.PerspectiveKey, ParseAttributes(cfg.Attributes))
}

func ParseAttributes(raw string) []string {
	out := []string{}
	for _, a := range strings.Split(raw, ",") {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a != "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		out = append(out, "TOXICITY")
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
