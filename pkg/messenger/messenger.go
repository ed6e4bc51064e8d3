package messenger

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Transport delivers a plain text message to an external chat.
type Transport interface {
	// Deliver sends text to channelID once. Any error means the message was not delivered.
	Deliver(ctx context.Context, channelID, text string) error
}

// LogTransport writes messages to the log instead of sending them.
// Used when no bot token is configured.
type LogTransport struct {
	log logrus.FieldLogger
}

func NewLogTransport(log logrus.FieldLogger) *LogTransport {
	return &LogTransport{log: log}
}

func (t *LogTransport) Deliver(ctx context.Context, channelID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.log.WithField("channel_id", channelID).Infof("[Messenger] %s", text)
	return nil
}
