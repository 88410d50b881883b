package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/modbot-dev/modbot/automod/actionlog"
	"github.com/modbot-dev/modbot/automod/cachestore"
	"github.com/modbot-dev/modbot/automod/policy"
	"github.com/modbot-dev/modbot/automod/toxicity"
)

// Policy used by EngineTestFixture.
const testPolicyYAML = `
rules:
  - name: borderline
    if: "0.5 <= toxicity < 0.8"
    actions: [ask_llm]
  - name: toxic
    if: "toxicity >= 0.8"
    actions: [delete_message, warn_user]
escalation:
  window_minutes: 60
  thresholds:
    warnings: "3 -> timeout_member(30); 5 -> escalate(repeat_offender)"
    timeouts: "2 -> escalate(human_mods)"
exempt_roles: [Moderator]
appeals:
  channel: appeals
  retention_days: 30
`

type TimeoutCall struct {
	GuildID string
	UserID  string
	Until   time.Time
	Reason  string
}

type PostedMessage struct {
	Target string
	Text   string
}

// In-memory Platform which records every side effect. Error fields make the corresponding call fail.
type MockPlatform struct {
	Self     string
	Channels map[string][]Channel
	Roles    map[string][]Role

	DeleteErr  error
	DMErr      error
	ChannelErr error
	TimeoutErr error

	lk           sync.Mutex
	Deleted      []string
	DMs          []PostedMessage
	ChannelPosts []PostedMessage
	Timeouts     []TimeoutCall
}

var _ Platform = (*MockPlatform)(nil)

func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		Self: "bot-1",
		Channels: map[string][]Channel{
			"guild-1": {{ID: "chan-appeals", Name: "appeals"}, {ID: "chan-mods", Name: "mod-alerts"}},
		},
		Roles: map[string][]Role{
			"guild-1": {{ID: "role-mods", Name: "Moderator"}},
		},
	}
}

func (p *MockPlatform) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	if p.DeleteErr != nil {
		return p.DeleteErr
	}
	p.Deleted = append(p.Deleted, messageID)
	return nil
}

func (p *MockPlatform) SendDirectMessage(ctx context.Context, userID, text string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	if p.DMErr != nil {
		return p.DMErr
	}
	p.DMs = append(p.DMs, PostedMessage{Target: userID, Text: text})
	return nil
}

func (p *MockPlatform) SendChannelMessage(ctx context.Context, channelID, text string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	if p.ChannelErr != nil {
		return p.ChannelErr
	}
	p.ChannelPosts = append(p.ChannelPosts, PostedMessage{Target: channelID, Text: text})
	return nil
}

func (p *MockPlatform) TimeoutMember(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	p.lk.Lock()
	defer p.lk.Unlock()
	if p.TimeoutErr != nil {
		return p.TimeoutErr
	}
	p.Timeouts = append(p.Timeouts, TimeoutCall{GuildID: guildID, UserID: userID, Until: until, Reason: reason})
	return nil
}

func (p *MockPlatform) FindTextChannel(ctx context.Context, guildID, name string) (*Channel, error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	for _, ch := range p.Channels[guildID] {
		if strings.EqualFold(ch.Name, name) {
			return &ch, nil
		}
	}
	return nil, nil
}

func (p *MockPlatform) FindRole(ctx context.Context, guildID, name string) (*Role, error) {
	p.lk.Lock()
	defer p.lk.Unlock()
	for _, r := range p.Roles[guildID] {
		if strings.EqualFold(r.Name, name) {
			return &r, nil
		}
	}
	return nil, nil
}

func (p *MockPlatform) SelfID() string {
	return p.Self
}

// Builds an engine over in-memory stores, a MockPlatform and a fixed toxicity score.
func EngineTestFixture(score float64) (*Engine, *MockPlatform, *actionlog.MemStore) {
	pol, err := policy.ParseYAML([]byte(testPolicyYAML))
	if err != nil {
		panic(fmt.Sprintf("test policy: %v", err))
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("MODBOT_TEST_LOG") != "" {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	platform := NewMockPlatform()
	store := actionlog.NewMemStore()
	eng := &Engine{
		Logger:   logger,
		Policy:   pol,
		Platform: platform,
		Actions:  store,
		History:  store,
		Scorer:   toxicity.StaticScorer(score),
		Cache:    cachestore.NewMemCacheStore(1000, time.Hour),
		Config: Config{
			AlertChannelName: "mod-alerts",
			AlertRoleName:    "Moderator",
		},
	}
	return eng, platform, store
}

// Message from an ordinary member of guild-1.
func TestMessage(id, content string) *Message {
	return &Message{
		ID:           id,
		GuildID:      "guild-1",
		GuildName:    "Test Guild",
		GuildOwnerID: "owner-1",
		ChannelID:    "chan-general",
		AuthorID:     "user-1",
		AuthorName:   "somebody",
		Content:      content,
	}
}
