package decision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/modbot-dev/modbot/automod/llm"
)

const (
	PathToolCall = "toolcall"
	PathLegacy   = "legacy"
)

var ErrNotConfigured = errors.New("no decision service or completion provider configured")

// Outcome of one decision attempt. Err is set when the attempt failed; ToolCalls and Decision are then empty.
type Attempt struct {
	Path      string
	Raw       string
	ToolCalls []ToolCall
	Decision  LegacyDecision
	Latency   time.Duration
	Err       error
}

// Asks the decision service for tool calls, or the completion provider for a single decision. Either may be nil.
type Decider struct {
	Service     Service
	Completions llm.Provider
	Logger      *slog.Logger
}

func (d *Decider) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Decider) Configured() bool {
	return d != nil && (d.Service != nil || d.Completions != nil)
}

// Primary path. Catalog failure, empty catalog and request failure all come back as an Attempt with Err set.
func (d *Decider) AskTools(ctx context.Context, content string, toxicity float64) *Attempt {
	start := time.Now()
	a := &Attempt{Path: PathToolCall, ToolCalls: []ToolCall{}}
	defer func() {
		a.Latency = time.Since(start)
	}()
	if d.Service == nil {
		a.Err = ErrNotConfigured
		return a
	}

	tools, err := d.Service.Tools(ctx)
	if err != nil {
		a.Err = err
		return a
	}
	reply, err := d.Service.Process(ctx, NewChatRequest(content, toxicity, tools))
	if err != nil {
		a.Err = err
		return a
	}
	a.Raw = string(reply)
	a.ToolCalls = NormalizeReply(reply)
	d.logger().Debug("decision service reply normalized", "calls", len(a.ToolCalls))
	return a
}

// Legacy single-decision path. An unparseable reply yields an empty Decision with no error.
func (d *Decider) AskLegacy(ctx context.Context, content string, toxicity float64) *Attempt {
	start := time.Now()
	a := &Attempt{Path: PathLegacy}
	defer func() {
		a.Latency = time.Since(start)
	}()
	if d.Completions == nil {
		a.Err = ErrNotConfigured
		return a
	}
	raw, err := d.Completions.Complete(ctx, LegacyPrompt(content, toxicity))
	if err != nil {
		a.Err = err
		return a
	}
	a.Raw = raw
	a.Decision = ParseLegacyDecision(raw)
	return a
}
