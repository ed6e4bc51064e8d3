package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/subremind/backend/internal/domain"
	"github.com/subremind/backend/pkg/messenger"
)

// PaymentDateLayout is how payment dates are printed in reminders.
const PaymentDateLayout = "02.01.2006"

// Dispatcher turns a Reminder into a message and hands it to the transport
// exactly once.
type Dispatcher struct {
	transport messenger.Transport
	timeout   time.Duration
	log       logrus.FieldLogger
	metrics   *Metrics
}

// NewDispatcher creates a Dispatcher. A non-positive timeout disables the deadline.
func NewDispatcher(transport messenger.Transport, timeout time.Duration, log logrus.FieldLogger, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		timeout:   timeout,
		log:       log.WithField("component", "dispatcher"),
		metrics:   metrics,
	}
}

// Send delivers r. Transport errors are reported in the result, never retried.
func (d *Dispatcher) Send(ctx context.Context, r domain.Reminder) domain.DeliveryResult {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	logger := d.log.WithFields(logrus.Fields{
		"subscription_id": r.SubscriptionID,
		"channel_id":      r.ExternalChannelID,
	})

	if err := d.transport.Deliver(ctx, r.ExternalChannelID, FormatReminder(r)); err != nil {
		result := domain.Failed(domain.TransportError(r.ExternalChannelID, err))
		logger.WithError(err).Warn("reminder not delivered")
		d.metrics.reminder(result.Status)
		return result
	}

	logger.Info("reminder delivered")
	d.metrics.reminder(domain.DeliveryDelivered)
	return domain.Delivered()
}

// FormatReminder renders the reminder text sent to the chat.
func FormatReminder(r domain.Reminder) string {
	var b strings.Builder
	b.WriteString("🔔 Subscription payment reminder\n\n")
	fmt.Fprintf(&b, "💳 Service: %s\n", r.ServiceName)
	fmt.Fprintf(&b, "💰 Amount: %s\n", r.Price.String())
	fmt.Fprintf(&b, "📅 Payment date: %s\n", r.ResolvedPaymentDate.Format(PaymentDateLayout))
	if r.ServiceLink != "" {
		fmt.Fprintf(&b, "🔗 Link: %s\n", r.ServiceLink)
	}
	b.WriteString("\nPayment is due tomorrow!")
	return b.String()
}
