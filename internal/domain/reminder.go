package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reminder is a payment notice produced by the lookahead sweep. It is not persisted.
type Reminder struct {
	ExternalChannelID   string
	SubscriptionID      string
	ServiceName         string
	Price               decimal.Decimal
	ResolvedPaymentDate time.Time
	ServiceLink         string
}

// DeliveryStatus is the outcome of a single send attempt.
type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeliveryResult reports what happened to one reminder.
type DeliveryResult struct {
	Status DeliveryStatus
	Cause  error
}

// Delivered reports a successful send.
func Delivered() DeliveryResult {
	return DeliveryResult{Status: DeliveryDelivered}
}

// Failed reports a send that did not reach the recipient.
func Failed(cause error) DeliveryResult {
	return DeliveryResult{Status: DeliveryFailed, Cause: cause}
}

// OK reports whether the reminder was delivered.
func (r DeliveryResult) OK() bool {
	return r.Status == DeliveryDelivered
}
