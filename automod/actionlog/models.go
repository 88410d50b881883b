package actionlog

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// One persisted attempt to execute an action. Immutable once written.
type ActionRecord struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	CreatedAt     time.Time `gorm:"index" json:"ts"`
	GuildID       string    `gorm:"index" json:"guild_id"`
	ChannelID     string    `json:"channel_id"`
	ActorID       string    `json:"actor_id"`
	Action        string    `gorm:"index" json:"action"`
	TargetID      string    `gorm:"index" json:"target_id"`
	Reason        string    `json:"reason"`
	EvidenceJSON  string    `gorm:"column:evidence_json" json:"evidence_json,omitempty"`
	Status        Status    `gorm:"index;default:success" json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

func (ActionRecord) TableName() string {
	return "action_log"
}

// Decoded evidence, or nil if absent or malformed.
func (r *ActionRecord) Evidence() map[string]any {
	if r.EvidenceJSON == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(r.EvidenceJSON), &out); err != nil {
		return nil
	}
	return out
}

// Input to ActionLog.LogAction.
type Entry struct {
	GuildID       string
	ChannelID     string
	ActorID       string
	Action        string
	TargetID      string
	Reason        string
	Evidence      map[string]any
	Status        Status
	FailureReason string
}

func (e *Entry) record(now time.Time) (ActionRecord, error) {
	rec := ActionRecord{
		CreatedAt:     now,
		GuildID:       e.GuildID,
		ChannelID:     e.ChannelID,
		ActorID:       e.ActorID,
		Action:        e.Action,
		TargetID:      e.TargetID,
		Reason:        e.Reason,
		Status:        e.Status,
		FailureReason: e.FailureReason,
	}
	if rec.Status == "" {
		rec.Status = StatusSuccess
	}
	if rec.Status == StatusFailure && rec.FailureReason == "" {
		rec.FailureReason = "unspecified"
	}
	if len(e.Evidence) > 0 {
		b, err := json.Marshal(e.Evidence)
		if err != nil {
			return rec, err
		}
		rec.EvidenceJSON = string(b)
	}
	return rec, nil
}

type AppealStatus string

const (
	AppealOpen    AppealStatus = "open"
	AppealDecided AppealStatus = "decided"
)

type Appeal struct {
	ID          uint         `gorm:"primarykey" json:"id"`
	SubmittedAt time.Time    `gorm:"index" json:"ts_submitted"`
	UserID      string       `gorm:"index" json:"user_id"`
	ActionLogID *uint        `json:"action_log_id"`
	Reason      string       `json:"reason"`
	Status      AppealStatus `gorm:"index;default:open" json:"status"`
	Decision    string       `json:"decision,omitempty"`
	ModeratorID string       `json:"moderator_id,omitempty"`
	Resolution  string       `json:"resolution,omitempty"`
	DecidedAt   *time.Time   `json:"ts_decided,omitempty"`
}

func (Appeal) TableName() string {
	return "appeals"
}

// Appeal joined with the action it references (if any).
type AppealView struct {
	Appeal
	LinkedAction       string     `json:"linked_action,omitempty"`
	LinkedActionReason string     `json:"linked_action_reason,omitempty"`
	LinkedActionAt     *time.Time `json:"linked_action_ts,omitempty"`
}
