package service

import (
	"context"

	"github.com/subremind/backend/internal/domain"
)

// DueSubscriptionStore is what the sweeps need from persistence.
type DueSubscriptionStore interface {
	FindSubscriptionsDueOn(ctx context.Context, days ...int) ([]*domain.Subscription, error)
	SetPaidFlag(ctx context.Context, id string, value bool) error
}

// SubscriptionStore adds the CRUD operations used by the front end.
type SubscriptionStore interface {
	DueSubscriptionStore
	Create(ctx context.Context, sub *domain.Subscription) error
	Update(ctx context.Context, sub *domain.Subscription) (bool, error)
	Delete(ctx context.Context, id, accountID string) (bool, error)
	FindByID(ctx context.Context, id string) (*domain.Subscription, error)
	ListVisible(ctx context.Context, accountID string) ([]*domain.Subscription, error)
}

// IdentityStore reads and writes linked chats. Lookups return (nil, nil) on a miss.
type IdentityStore interface {
	FindLinkedIdentity(ctx context.Context, accountID string) (*domain.LinkedIdentity, error)
	UpsertLinkedIdentity(ctx context.Context, accountID, channelID string) error
}

// AccountFinder resolves accounts. Lookups return (nil, nil) on a miss.
type AccountFinder interface {
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
}

// AccountStore adds the account management operations.
type AccountStore interface {
	AccountFinder
	Create(ctx context.Context, a *domain.Account) error
	Exists(ctx context.Context, email string) (bool, error)
	ListAll(ctx context.Context) ([]*domain.Account, error)
	Delete(ctx context.Context, id string) error
}

// SweepJournal records finished sweeps.
type SweepJournal interface {
	Record(ctx context.Context, run *domain.SweepRun) error
}

// ReminderSender hands a reminder to the messaging transport.
type ReminderSender interface {
	Send(ctx context.Context, r domain.Reminder) domain.DeliveryResult
}

// LinkDirectory exposes the linked chat of an account to account management.
type LinkDirectory interface {
	FindLinkedIdentity(ctx context.Context, accountID string) (*domain.LinkedIdentity, error)
	DeleteLinkedIdentity(ctx context.Context, accountID string) error
}
