package model

import (
	"fmt"
	"strconv"
	"time"
)

// ChannelKind names an outbound notification channel.
type ChannelKind string

const (
	ChannelTelegram ChannelKind = "telegram"
	ChannelEmail    ChannelKind = "email"
	ChannelSMS      ChannelKind = "sms"
	ChannelPush     ChannelKind = "push"
)

// ReminderPreferences are owned by the user and read-only to the scheduler.
type ReminderPreferences struct {
	Enabled        bool
	Hour           int
	Minute         int
	DaysBefore     int
	OverdueEnabled bool
}

// DefaultReminderPreferences is what a freshly registered user gets.
func DefaultReminderPreferences() ReminderPreferences {
	return ReminderPreferences{
		Enabled:        true,
		Hour:           9,
		DaysBefore:     3,
		OverdueEnabled: true,
	}
}

func (p ReminderPreferences) Validate() error {
	if p.Hour < 0 || p.Hour > 23 {
		return fmt.Errorf("reminder hour %d out of range", p.Hour)
	}
	if p.Minute < 0 || p.Minute > 59 {
		return fmt.Errorf("reminder minute %d out of range", p.Minute)
	}
	if p.DaysBefore < 0 {
		return fmt.Errorf("days before must not be negative, got %d", p.DaysBefore)
	}
	return nil
}

// ChannelSet says which outbound channels the user turned on.
type ChannelSet struct {
	Telegram  bool
	Email     bool
	SMS       bool
	Push      bool
	PushToken string
}

// User stores profile, reminder settings and delivery addresses.
type User struct {
	ID                uint   `gorm:"primaryKey"`
	TelegramID        *int64 `gorm:"uniqueIndex"`
	HouseholdID       *uint  `gorm:"index"`
	FirstName         string
	LastName          string
	Username          string
	Email             string
	Phone             string
	Timezone          string
	RemindersEntitled bool
	Reminders         ReminderPreferences `gorm:"embedded;embeddedPrefix:reminder_"`
	Channels          ChannelSet          `gorm:"embedded;embeddedPrefix:channel_"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Location resolves the user's timezone, falling back when unset or unknown.
func (u User) Location(fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	if u.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// EnabledChannels lists channels that are switched on and have an address.
func (u User) EnabledChannels() []ChannelKind {
	var out []ChannelKind
	for _, ch := range []struct {
		kind ChannelKind
		on   bool
	}{
		{ChannelTelegram, u.Channels.Telegram},
		{ChannelEmail, u.Channels.Email},
		{ChannelSMS, u.Channels.SMS},
		{ChannelPush, u.Channels.Push},
	} {
		if ch.on && u.Address(ch.kind) != "" {
			out = append(out, ch.kind)
		}
	}
	return out
}

// Address returns the destination for kind, or "" if the user has none.
func (u User) Address(kind ChannelKind) string {
	switch kind {
	case ChannelTelegram:
		if u.TelegramID == nil {
			return ""
		}
		return strconv.FormatInt(*u.TelegramID, 10)
	case ChannelEmail:
		return u.Email
	case ChannelSMS:
		return u.Phone
	case ChannelPush:
		return u.Channels.PushToken
	default:
		return ""
	}
}
