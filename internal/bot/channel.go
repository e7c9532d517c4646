package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"duekeeper/internal/model"
	"duekeeper/internal/service"
)

// sender is the part of tgbotapi.BotAPI used for outbound messages.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Channel delivers reminders as Telegram messages. The address is the chat id.
type Channel struct {
	api sender
}

func NewChannel(api sender) *Channel {
	return &Channel{api: api}
}

func (c *Channel) Name() model.ChannelKind { return model.ChannelTelegram }

func (c *Channel) Send(ctx context.Context, address string, n service.Notification) error {
	chatID, err := strconv.ParseInt(address, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram address %q: %w", address, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, renderReminder(n))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnDone, fmt.Sprintf("%s%d", cbDonePrefix, n.TaskID)),
		),
	)
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func renderReminder(n service.Notification) string {
	title := html.EscapeString(strings.TrimSpace(n.Title))
	due := n.DueDate.Format(model.DateLayout)
	switch n.Kind {
	case model.ReminderOverdue:
		return fmt.Sprintf("%s <b>%s</b> is overdue (was due %s).", iconOverdue, title, due)
	case model.ReminderDueToday:
		return fmt.Sprintf("%s <b>%s</b> is due today.", iconDue, title)
	case model.ReminderDueSoon:
		return fmt.Sprintf("%s <b>%s</b> is due on %s.", iconDue, title, due)
	default:
		return fmt.Sprintf("%s Heads up: <b>%s</b> is due on %s.", iconDefault, title, due)
	}
}
