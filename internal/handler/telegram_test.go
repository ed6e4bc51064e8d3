package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subremind/backend/internal/domain"
)

type fakeLinking struct {
	calls []string
	err   error
}

func (f *fakeLinking) HandleText(_ context.Context, channelID, text string) (domain.Prompt, error) {
	f.calls = append(f.calls, channelID+":"+text)
	return domain.Prompt{Kind: domain.PromptAskEmail, Text: "reply to " + text}, f.err
}

type fakeTransport struct {
	mu   sync.Mutex
	sent map[string][]string
	err  error
}

func (f *fakeTransport) Deliver(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.sent == nil {
		f.sent = make(map[string][]string)
	}
	f.sent[channelID] = append(f.sent[channelID], text)
	return nil
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

const update = `{"update_id": 9, "message": {"message_id": 1, "chat": {"id": 4242, "type": "private"}, "text": "/start"}}`

func postUpdate(h *TelegramHandler, body, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/telegram/webhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(SecretTokenHeader, secret)
	}
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)
	return rec
}

func TestWebhookRoutesTextAndReplies(t *testing.T) {
	linking := &fakeLinking{}
	transport := &fakeTransport{}
	h := NewTelegramHandler("s3", linking, transport, nil, 0, quietLogger())

	rec := postUpdate(h, update, "s3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"4242:/start"}, linking.calls)
	assert.Equal(t, []string{"reply to /start"}, transport.sent["4242"])
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	linking := &fakeLinking{}
	h := NewTelegramHandler("s3", linking, &fakeTransport{}, nil, 0, quietLogger())

	assert.Equal(t, http.StatusUnauthorized, postUpdate(h, update, "").Code)
	assert.Equal(t, http.StatusUnauthorized, postUpdate(h, update, "wrong").Code)
	assert.Empty(t, linking.calls)
}

func TestWebhookIgnoresNonText(t *testing.T) {
	linking := &fakeLinking{}
	h := NewTelegramHandler("s3", linking, &fakeTransport{}, nil, 0, quietLogger())

	rec := postUpdate(h, `{"update_id": 1}`, "s3")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, linking.calls)

	assert.Equal(t, http.StatusBadRequest, postUpdate(h, `{not json`, "s3").Code)
}

func TestWebhookStillRepliesOnLinkingError(t *testing.T) {
	linking := &fakeLinking{err: domain.PersistenceError("upsert", errors.New("down"))}
	transport := &fakeTransport{}
	h := NewTelegramHandler("s3", linking, transport, nil, 0, quietLogger())

	rec := postUpdate(h, update, "s3")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, transport.sent["4242"], 1)
}

func TestWebhookTransportFailureIsAcknowledged(t *testing.T) {
	h := NewTelegramHandler("s3", &fakeLinking{}, &fakeTransport{err: errors.New("blocked")}, nil, 0, quietLogger())
	assert.Equal(t, http.StatusOK, postUpdate(h, update, "s3").Code)
}

func TestWebhookThrottledChat(t *testing.T) {
	linking := &fakeLinking{}
	h := NewTelegramHandler("s3", linking, &fakeTransport{}, denyAll{}, 0, quietLogger())

	assert.Equal(t, http.StatusOK, postUpdate(h, update, "s3").Code)
	assert.Empty(t, linking.calls)
}

func TestWebhookWithoutSecretRejectsEverything(t *testing.T) {
	linking := &fakeLinking{}
	h := NewTelegramHandler("", linking, &fakeTransport{}, nil, 0, quietLogger())

	assert.Equal(t, http.StatusUnauthorized, postUpdate(h, update, "").Code)
	assert.Equal(t, http.StatusUnauthorized, postUpdate(h, update, "anything").Code)
	assert.Empty(t, linking.calls)
}
