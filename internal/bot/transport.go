package bot

import (
	"fmt"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Update is one inbound event from the transport. Offset is the
// transport-assigned sequence number; exactly one of Text or Callback
// is meaningful.
type Update struct {
	Offset   int64
	ChatID   string
	Text     string
	Callback *Callback
}

// Callback is an interactive button press awaiting acknowledgment.
type Callback struct {
	ID   string
	Data string
}

// Button is one inline-keyboard entry.
type Button struct {
	Label string
	Data  string
}

// Transport is the chat API surface the dispatcher depends on.
type Transport interface {
	GetUpdates(offset int64, timeout int) ([]Update, error)
	SendMessage(chatID, text string, keyboard [][]Button) error
	AnswerCallback(id, text string) error
}

// TelegramBot is the subset of the bot API client we use (allows
// mocking in tests).
type TelegramBot interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetSelf() tgbotapi.User
}

type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	return w.bot.GetUpdates(config)
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking).
type BotFactory func(token string) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token string) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// Telegram implements Transport over the Telegram bot API using
// explicit offset-managed long polling.
type Telegram struct {
	bot TelegramBot
}

func NewTelegram(token string) (*Telegram, error) {
	return NewTelegramWithFactory(token, defaultBotFactory)
}

// NewTelegramWithFactory creates a Telegram transport with a custom bot
// factory (for testing).
func NewTelegramWithFactory(token string, factory BotFactory) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	bot, err := factory(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	log.Printf("[bot] authorized as @%s", bot.GetSelf().UserName)
	return &Telegram{bot: bot}, nil
}

func (t *Telegram) GetUpdates(offset int64, timeout int) ([]Update, error) {
	raw, err := t.bot.GetUpdates(tgbotapi.UpdateConfig{
		Offset:         int(offset),
		Timeout:        timeout,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	if err != nil {
		return nil, fmt.Errorf("get updates: %w", err)
	}

	updates := make([]Update, 0, len(raw))
	for _, u := range raw {
		if converted, ok := convertUpdate(u); ok {
			updates = append(updates, converted)
		}
	}
	return updates, nil
}

// convertUpdate maps an API update onto our Update shape. Updates that
// carry neither a usable message nor a callback still surface their
// offset so the dispatcher never re-fetches them.
func convertUpdate(u tgbotapi.Update) (Update, bool) {
	out := Update{Offset: int64(u.UpdateID)}

	switch {
	case u.CallbackQuery != nil:
		cb := u.CallbackQuery
		if cb.Message != nil && cb.Message.Chat != nil {
			out.ChatID = strconv.FormatInt(cb.Message.Chat.ID, 10)
		}
		out.Callback = &Callback{ID: cb.ID, Data: cb.Data}
	case u.Message != nil && u.Message.Chat != nil:
		out.ChatID = strconv.FormatInt(u.Message.Chat.ID, 10)
		out.Text = u.Message.Text
	}

	return out, true
}

func (t *Telegram) SendMessage(chatID, text string, keyboard [][]Button) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	msg := tgbotapi.NewMessage(id, text)
	if keyboard != nil {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard))
		for _, row := range keyboard {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
			}
			rows = append(rows, buttons)
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (t *Telegram) AnswerCallback(id, text string) error {
	if _, err := t.bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}
