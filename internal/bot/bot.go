package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"duekeeper/internal/model"
	"duekeeper/internal/repository"
	"duekeeper/internal/service"
)

const (
	cbDonePrefix = "done:"
)

const (
	btnDone     = "✅ Done"
	iconDefault = "🟢"
	iconDue     = "⏳"
	iconOverdue = "⚠️"
)

// Bot aggregates Telegram API with services.
type Bot struct {
	api         *tgbotapi.BotAPI
	userRepo    *repository.UserRepository
	households  *repository.HouseholdRepository
	categorySvc *service.CategoryService
	taskSvc     *service.TaskService
	reminderSvc *service.ReminderService
	loc         *time.Location
	log         zerolog.Logger
}

func New(token string, userRepo *repository.UserRepository, households *repository.HouseholdRepository, categorySvc *service.CategoryService, taskSvc *service.TaskService, reminderSvc *service.ReminderService, loc *time.Location, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log = log.With().Str("component", "bot").Logger()
	log.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	return &Bot{
		api:         api,
		userRepo:    userRepo,
		households:  households,
		categorySvc: categorySvc,
		taskSvc:     taskSvc,
		reminderSvc: reminderSvc,
		loc:         loc,
		log:         log,
	}, nil
}

// Channel returns the outbound reminder channel backed by this bot's API.
func (b *Bot) Channel() *Channel {
	return NewChannel(b.api)
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Warn().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Warn().Err(err).Msg("handle message")
			}
		}
	}

	return ctx.Err()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "I only understand commands. Try /help.")
	}

	b.log.Info().Int64("from", msg.From.ID).Str("command", msg.Command()).Msg("command")
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.sendText(msg.Chat.ID, helpText)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "new":
		return b.handleNew(ctx, msg)
	case "done":
		return b.handleDone(ctx, msg)
	case "move":
		return b.handleMove(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "remind":
		return b.handleRemind(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "categories":
		return b.handleCategories(ctx, msg)
	case "household":
		return b.handleHousehold(ctx, msg)
	case "share":
		return b.handleShare(ctx, msg)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /tasks — list obligations\n" +
	"• /new title | schedule | YYYY-MM-DD [| category] — add one\n" +
	"   schedule: <code>once</code>, <code>every 6 months</code>, <code>yearly 04-15</code>\n" +
	"• /done &lt;id&gt; — mark the current occurrence done\n" +
	"• /move &lt;id&gt; YYYY-MM-DD — change the due date\n" +
	"• /delete &lt;id&gt; — remove an obligation\n" +
	"• /remind HH:MM days [overdue on|off] — reminder settings, /remind off to pause\n" +
	"• /report — digest of everything pending\n" +
	"• /categories — list categories\n" +
	"• /household new | join &lt;invite code&gt; | leave — share obligations with your household\n" +
	"• /share &lt;id&gt; — make an obligation visible to the household"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep track of renewals, checkups and filings and remind you before they are due.</b>\n\n%s",
		html.EscapeString(name), helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	now := time.Now()
	tasks, err := b.taskSvc.ListTasks(ctx, user, now)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load obligations: %s", html.EscapeString(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "Nothing tracked yet. Add one with /new.")
	}
	catNames, err := b.categorySvc.Names(ctx, user)
	if err != nil {
		return err
	}

	today := service.StartOfDay(now.In(user.Location(b.loc)))
	var builder strings.Builder
	builder.WriteString("📋 <b>Obligations</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		if task.IsCompleted() {
			builder.WriteString(fmt.Sprintf("✅ #%d %s <i>(done)</i>\n", task.ID, html.EscapeString(task.Title)))
			continue
		}
		builder.WriteString(service.FormatTask(task, catNames, today))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 24)), fmt.Sprintf("%s%d", cbDonePrefix, task.ID)),
		))
	}

	out := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	out.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err = b.api.Send(out)
	return err
}

func (b *Bot) handleNew(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	input, err := parseNewTask(msg.CommandArguments(), user.Location(b.loc))
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("%s\nExample: <code>/new Car insurance | yearly 03-01 | 2026-03-01 | insurance</code>", html.EscapeString(err.Error())))
	}
	task, err := b.taskSvc.CreateTask(ctx, user, input)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not save: %s", html.EscapeString(err.Error())))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🆕 #%d %s, due %s (%s).",
		task.ID, html.EscapeString(task.Title), task.DueDate.Format(model.DateLayout), task.Schedule))
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments(), "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give the obligation id: /done 12")
	}
	return b.completeTask(ctx, msg.Chat.ID, msg.From, taskID)
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.CompleteTask(ctx, user, taskID, time.Now())
	if err != nil {
		return b.replyTaskError(chatID, err)
	}
	if task.Schedule.Recurs() {
		return b.sendText(chatID, fmt.Sprintf("✅ %s done. Next occurrence starts after %s.",
			html.EscapeString(task.Title), task.DueDate.Format(model.DateLayout)))
	}
	return b.sendText(chatID, fmt.Sprintf("✅ %s done.", html.EscapeString(task.Title)))
}

func (b *Bot) handleMove(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /move 12 2026-05-01")
	}
	taskID, err := parseTaskID(fields[0], "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "The id must be a number.")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	due, err := service.ParseDueDate(fields[1], user.Location(b.loc))
	if err != nil {
		return b.sendText(msg.Chat.ID, html.EscapeString(err.Error()))
	}
	task, err := b.taskSvc.RescheduleTask(ctx, user, taskID, due)
	if err != nil {
		return b.replyTaskError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📆 %s is now due %s.", html.EscapeString(task.Title), task.DueDate.Format(model.DateLayout)))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments(), "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give the obligation id: /delete 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	if err := b.taskSvc.DeleteTask(ctx, user, taskID); err != nil {
		return b.replyTaskError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 #%d removed.", taskID))
}

func (b *Bot) handleRemind(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.sendText(msg.Chat.ID, describePrefs(user.Reminders))
	}
	prefs, err := parseRemind(args, user.Reminders)
	if err != nil {
		return b.sendText(msg.Chat.ID, html.EscapeString(err.Error()))
	}
	if err := b.userRepo.UpdateReminders(ctx, user, prefs); err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not save: %s", html.EscapeString(err.Error())))
	}
	return b.sendText(msg.Chat.ID, describePrefs(prefs))
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.reminderSvc.Digest(ctx, user, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the digest: %s", html.EscapeString(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleCategories(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	categories, err := b.categorySvc.List(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not load categories: %s", html.EscapeString(err.Error())))
	}
	if len(categories) == 0 {
		return b.sendText(msg.Chat.ID, "No categories yet. Add one as the last part of /new.")
	}
	var builder strings.Builder
	builder.WriteString("📂 <b>Categories</b>\n")
	for _, cat := range categories {
		builder.WriteString(fmt.Sprintf("• %s\n", html.EscapeString(strings.TrimSpace(cat.Name))))
	}
	return b.sendText(msg.Chat.ID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleHousehold(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	action, code, err := parseHousehold(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, b.householdStatus(ctx, user)+html.EscapeString(err.Error()))
	}

	switch action {
	case householdNew:
		household, err := b.households.Create(ctx, user)
		if err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not save: %s", html.EscapeString(err.Error())))
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🏠 Household created. Others join with <code>/household join %s</code>.", household.InviteCode))
	case householdJoin:
		if _, err := b.households.Join(ctx, user, code); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return b.sendText(msg.Chat.ID, "Unknown invite code.")
			}
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not join: %s", html.EscapeString(err.Error())))
		}
		return b.sendText(msg.Chat.ID, "🏠 You joined the household. Shared obligations now show up in /tasks.")
	default:
		if err := b.userRepo.SetHousehold(ctx, user, nil); err != nil {
			return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not save: %s", html.EscapeString(err.Error())))
		}
		return b.sendText(msg.Chat.ID, "🏠 You left the household. Shared obligations stay with their owners.")
	}
}

// householdStatus describes the user's household; the owner also sees the invite code.
func (b *Bot) householdStatus(ctx context.Context, user *model.User) string {
	if user.HouseholdID == nil {
		return ""
	}
	household, err := b.households.FindByID(ctx, *user.HouseholdID)
	if err != nil {
		return "🏠 You are in a household.\n"
	}
	if household.OwnerID == user.ID {
		return fmt.Sprintf("🏠 Your household invite code: <code>%s</code>\n", household.InviteCode)
	}
	return "🏠 You are in a household.\n"
}

func (b *Bot) handleShare(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments(), "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give the obligation id: /share 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.ShareTask(ctx, user, taskID)
	if err != nil {
		return b.replyTaskError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🏠 %s is shared with your household.", html.EscapeString(task.Title)))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}
	if !strings.HasPrefix(cb.Data, cbDonePrefix) {
		return nil
	}
	taskID, err := parseTaskID(cb.Data, cbDonePrefix)
	if err != nil {
		return nil
	}
	return b.completeTask(ctx, cb.Message.Chat.ID, cb.From, taskID)
}

// SendDigests sends the digest to every user reachable on Telegram.
func (b *Bot) SendDigests(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		if user.TelegramID == nil || !user.Channels.Telegram {
			continue
		}
		text, err := b.reminderSvc.Digest(ctx, &user, now)
		if err != nil {
			b.log.Warn().Err(err).Uint("user", user.ID).Msg("build digest")
			continue
		}
		if err := b.sendText(*user.TelegramID, text); err != nil {
			b.log.Warn().Err(err).Uint("user", user.ID).Msg("send digest")
		}
	}
	return nil
}

func (b *Bot) replyTaskError(chatID int64, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return b.sendText(chatID, "No such obligation.")
	}
	return b.sendText(chatID, fmt.Sprintf("Error: %s", html.EscapeString(err.Error())))
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.LastName, from.UserName)
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(msg)
	return err
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(data, prefix))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
