package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// returned by Platform implementations when the target no longer exists
	ErrNotFound = errors.New("platform: not found")
	// returned by Platform implementations when the bot lacks permission
	ErrForbidden = errors.New("platform: forbidden")
)

// Inbound chat message, as delivered by the gateway.
type Message struct {
	ID           string   `json:"id"`
	GuildID      string   `json:"guild_id"`
	GuildName    string   `json:"guild_name"`
	GuildOwnerID string   `json:"guild_owner_id"`
	ChannelID    string   `json:"channel_id"`
	AuthorID     string   `json:"author_id"`
	AuthorName   string   `json:"author_name"`
	AuthorBot    bool     `json:"author_bot"`
	AuthorRoles  []string `json:"author_roles"`
	// guild-level "manage server" permission
	AuthorCanManageGuild bool   `json:"author_can_manage_guild"`
	Content              string `json:"content"`
}

type Channel struct {
	ID   string
	Name string
}

type Role struct {
	ID   string
	Name string
}

// Chat-platform mutations and lookups used by the action handlers.
//
// Lookup methods return nil (and no error) when nothing matches.
type Platform interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendDirectMessage(ctx context.Context, userID, text string) error
	SendChannelMessage(ctx context.Context, channelID, text string) error
	TimeoutMember(ctx context.Context, guildID, userID string, until time.Time, reason string) error
	FindTextChannel(ctx context.Context, guildID, name string) (*Channel, error)
	FindRole(ctx context.Context, guildID, name string) (*Role, error)
	// user ID of the bot itself
	SelfID() string
}

func UserMention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

func RoleMention(roleID string) string {
	return fmt.Sprintf("<@&%s>", roleID)
}
