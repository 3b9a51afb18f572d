package notification

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	endpoint string // tgbotapi format: base/bot%s/%s
	client   *http.Client
}

// NewTelegramNotifier creates a Telegram notifier.
// botToken: Bot API token from @BotFather
// chatID: numeric chat/group ID or @channel username
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		endpoint: tgbotapi.APIEndpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ctxDoer binds outgoing bot requests to the caller's context.
type ctxDoer struct {
	ctx    context.Context
	client *http.Client
}

func (d ctxDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(d.ctx))
}

func (t *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	emoji := "ℹ️"
	switch msg.Level {
	case LevelWarning:
		emoji = "⚠️"
	case LevelCritical:
		emoji = "🚨"
	}

	text := fmt.Sprintf("%s *%s*\n\n%s", emoji,
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, msg.Title),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, msg.Text))

	var out tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(t.chatID, 10, 64); err == nil {
		out = tgbotapi.NewMessage(id, text)
	} else {
		out = tgbotapi.NewMessageToChannel(t.chatID, text)
	}
	out.ParseMode = tgbotapi.ModeMarkdownV2

	// constructed directly: NewBotAPI would call getMe on every send
	bot := &tgbotapi.BotAPI{Token: t.botToken, Client: ctxDoer{ctx: ctx, client: t.client}}
	bot.SetAPIEndpoint(t.endpoint)
	if _, err := bot.Send(out); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	return nil
}
