package handler

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"github.com/subremind/backend/internal/domain"
	"github.com/subremind/backend/pkg/messenger"
)

// SecretTokenHeader carries the secret configured with setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

// TextHandler consumes one chat message and returns the reply.
type TextHandler interface {
	HandleText(ctx context.Context, channelID, text string) (domain.Prompt, error)
}

// Limiter throttles a chat.
type Limiter interface {
	Allow(key string) bool
}

// TelegramHandler receives bot updates and drives the account linking dialog.
type TelegramHandler struct {
	secret       string
	linking      TextHandler
	transport    messenger.Transport
	limiter      Limiter
	replyTimeout time.Duration
	log          logrus.FieldLogger
}

// NewTelegramHandler creates a TelegramHandler. An empty secret rejects every
// update; a nil limiter disables throttling.
func NewTelegramHandler(secret string, linking TextHandler, transport messenger.Transport, limiter Limiter, replyTimeout time.Duration, log logrus.FieldLogger) *TelegramHandler {
	return &TelegramHandler{
		secret:       secret,
		linking:      linking,
		transport:    transport,
		limiter:      limiter,
		replyTimeout: replyTimeout,
		log:          log.WithField("component", "telegram-webhook"),
	}
}

// Webhook handles POST /api/telegram/webhook.
//
// Anything past authentication answers 200 so Telegram does not redeliver.
func (h *TelegramHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" || !hmac.Equal([]byte(r.Header.Get(SecretTokenHeader)), []byte(h.secret)) {
		Error(w, domain.ErrUnauthorized("invalid webhook secret"))
		return
	}

	var update models.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		Error(w, domain.ErrBadRequest("invalid update"))
		return
	}

	msg := update.Message
	if msg == nil || msg.Text == "" {
		JSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	channelID := messenger.ChannelID(msg)
	logger := h.log.WithFields(logrus.Fields{"channel_id": channelID, "update_id": update.ID})

	if h.limiter != nil && !h.limiter.Allow(channelID) {
		logger.Warn("chat throttled")
		JSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	prompt, err := h.linking.HandleText(r.Context(), channelID, msg.Text)
	if err != nil {
		logger.WithError(err).Error("linking step failed")
	}

	ctx := r.Context()
	if h.replyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.replyTimeout)
		defer cancel()
	}
	if err := h.transport.Deliver(ctx, channelID, prompt.Text); err != nil {
		logger.WithError(err).Warn("failed to send reply")
	}

	JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
