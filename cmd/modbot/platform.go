package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/modbot-dev/modbot/automod/engine"
)

// Platform which performs no chat mutations: every call is logged and reported as successful. Used when messages arrive over the HTTP ingest API rather than a live gateway connection.
//
// Channel and role lookups resolve any name to a synthetic ID, so escalation and appeal notices are logged rather than dropped.
type logPlatform struct {
	logger *slog.Logger
	selfID string
}

var _ engine.Platform = (*logPlatform)(nil)

func newLogPlatform(logger *slog.Logger, selfID string) *logPlatform {
	return &logPlatform{
		logger: logger.With("subsystem", "platform", "dry_run", true),
		selfID: selfID,
	}
}

func (p *logPlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	p.logger.Info("delete message", "channel", channelID, "message", messageID)
	return nil
}

func (p *logPlatform) SendDirectMessage(ctx context.Context, userID, text string) error {
	p.logger.Info("direct message", "user", userID, "text", text)
	return nil
}

func (p *logPlatform) SendChannelMessage(ctx context.Context, channelID, text string) error {
	p.logger.Info("channel message", "channel", channelID, "text", text)
	return nil
}

func (p *logPlatform) TimeoutMember(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	p.logger.Info("timeout member", "guild", guildID, "user", userID, "until", until.Format(time.RFC3339), "reason", reason)
	return nil
}

func (p *logPlatform) FindTextChannel(ctx context.Context, guildID, name string) (*engine.Channel, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "#")
	if name == "" {
		return nil, nil
	}
	return &engine.Channel{ID: guildID + "/" + name, Name: name}, nil
}

func (p *logPlatform) FindRole(ctx context.Context, guildID, name string) (*engine.Role, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	return &engine.Role{ID: guildID + "/" + strings.TrimSpace(name), Name: name}, nil
}

func (p *logPlatform) SelfID() string {
	return p.selfID
}
