package messenger

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramClient talks to the Telegram Bot API.
type TelegramClient struct {
	bot *bot.Bot
}

// NewTelegramClient creates a client for the bot identified by token.
// baseURL is normally https://api.telegram.org. No request is made until the
// first Deliver or Ping.
func NewTelegramClient(baseURL, token string, httpClient *http.Client) (*TelegramClient, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot: empty token")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	b, err := bot.New(token,
		bot.WithServerURL(baseURL),
		bot.WithHTTPClient(httpClient.Timeout, httpClient),
		bot.WithSkipGetMe(),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramClient{bot: b}, nil
}

// Deliver sends text to the chat with the given id.
func (c *TelegramClient) Deliver(ctx context.Context, channelID, text string) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             chatID(channelID),
		Text:               text,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
	})
	if err != nil {
		return fmt.Errorf("sendMessage: %w", err)
	}
	return nil
}

// Ping verifies the token with getMe.
func (c *TelegramClient) Ping(ctx context.Context) error {
	if _, err := c.bot.GetMe(ctx); err != nil {
		return fmt.Errorf("getMe: %w", err)
	}
	return nil
}

// chatID sends numeric ids as numbers and anything else (@channel) verbatim.
func chatID(channelID string) any {
	if id, err := strconv.ParseInt(channelID, 10, 64); err == nil {
		return id
	}
	return channelID
}

// ChannelID returns the chat id of msg as the string form used throughout the service.
func ChannelID(msg *models.Message) string {
	return strconv.FormatInt(msg.Chat.ID, 10)
}
