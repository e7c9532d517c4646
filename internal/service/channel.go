package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"duekeeper/internal/model"
)

// Notification is the already-decided content handed to a channel adapter.
type Notification struct {
	UserID  uint
	TaskID  uint
	Title   string
	Kind    model.ReminderKind
	DueDate time.Time
	FireAt  time.Time
}

// Channel is an outbound transport (Telegram, email, SMS, push).
// Send must honour ctx; the dispatcher also enforces its own timeout.
type Channel interface {
	Name() model.ChannelKind
	Send(ctx context.Context, address string, n Notification) error
}

// LogChannel writes notifications to the log instead of sending them.
// It stands in for a real transport in dry runs.
type LogChannel struct {
	kind model.ChannelKind
	log  zerolog.Logger
}

func NewLogChannel(kind model.ChannelKind, log zerolog.Logger) *LogChannel {
	return &LogChannel{kind: kind, log: log.With().Str("component", "channel").Str("channel", string(kind)).Logger()}
}

func (c *LogChannel) Name() model.ChannelKind { return c.kind }

func (c *LogChannel) Send(_ context.Context, address string, n Notification) error {
	c.log.Info().
		Str("to", address).
		Uint("task", n.TaskID).
		Str("kind", string(n.Kind)).
		Str("due", n.DueDate.Format(model.DateLayout)).
		Msg(n.Title)
	return nil
}
