package engine

import (
	"context"
)

// Out-of-band notification of escalations (in addition to the in-guild alert channel post).
type Notifier interface {
	SendEscalation(ctx context.Context, msg *Message, label, reason string) error
}
