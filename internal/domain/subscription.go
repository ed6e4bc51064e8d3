package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Subscription is a recurring monthly payment owned by an account.
// PaymentDay is a raw day of month (1..31) and is interpreted against
// the month it is evaluated in.
type Subscription struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"accountId"`
	ServiceName string          `json:"serviceName"`
	Price       decimal.Decimal `json:"price"`
	PaymentDay  int             `json:"paymentDay"`
	ServiceLink string          `json:"serviceLink"`
	IsPrivate   bool            `json:"isPrivate"`
	IsPaid      bool            `json:"isPaid"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// SubscriptionRequest is the validated input for creating or updating a subscription.
type SubscriptionRequest struct {
	ServiceName string          `json:"serviceName" validate:"required,min=1,max=100"`
	Price       decimal.Decimal `json:"price"`
	PaymentDay  int             `json:"paymentDay" validate:"required,min=1,max=31"`
	ServiceLink string          `json:"serviceLink" validate:"omitempty,url"`
	IsPrivate   *bool           `json:"isPrivate"`
}

// NewSubscriptionID generates a new UUID for a subscription.
func NewSubscriptionID() string {
	return uuid.New().String()
}
