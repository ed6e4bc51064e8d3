package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/subremind/backend/internal/domain"
)

// SubscriptionService manages an account's subscriptions.
type SubscriptionService struct {
	repo     SubscriptionStore
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewSubscriptionService(repo SubscriptionStore, log logrus.FieldLogger) *SubscriptionService {
	return &SubscriptionService{
		repo:     repo,
		validate: validator.New(),
		log:      log.WithField("component", "subscriptions"),
	}
}

// List returns the account's own subscriptions plus every public one.
func (s *SubscriptionService) List(ctx context.Context, accountID string) ([]*domain.Subscription, error) {
	subs, err := s.repo.ListVisible(ctx, accountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list subscriptions", err)
	}
	if subs == nil {
		subs = []*domain.Subscription{}
	}
	return subs, nil
}

// Get returns a subscription the account owns or that is public.
func (s *SubscriptionService) Get(ctx context.Context, accountID, id string) (*domain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find subscription", err)
	}
	if sub == nil || (sub.AccountID != accountID && sub.IsPrivate) {
		return nil, domain.ErrNotFound("subscription not found")
	}
	return sub, nil
}

func (s *SubscriptionService) Create(ctx context.Context, accountID string, req *domain.SubscriptionRequest) (*domain.Subscription, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	now := time.Now()
	sub := &domain.Subscription{
		ID:          domain.NewSubscriptionID(),
		AccountID:   accountID,
		ServiceName: req.ServiceName,
		Price:       req.Price,
		PaymentDay:  req.PaymentDay,
		ServiceLink: req.ServiceLink,
		IsPrivate:   req.IsPrivate == nil || *req.IsPrivate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, domain.ErrInternal("failed to save subscription", err)
	}

	s.log.WithFields(logrus.Fields{"subscription_id": sub.ID, "account_id": accountID}).Info("subscription created")
	return sub, nil
}

// Update replaces the editable fields. The paid flag is left untouched.
func (s *SubscriptionService) Update(ctx context.Context, accountID, id string, req *domain.SubscriptionRequest) (*domain.Subscription, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	sub, err := s.owned(ctx, accountID, id)
	if err != nil {
		return nil, err
	}

	sub.ServiceName = req.ServiceName
	sub.Price = req.Price
	sub.PaymentDay = req.PaymentDay
	sub.ServiceLink = req.ServiceLink
	if req.IsPrivate != nil {
		sub.IsPrivate = *req.IsPrivate
	}
	sub.UpdatedAt = time.Now()

	ok, err := s.repo.Update(ctx, sub)
	if err != nil {
		return nil, domain.ErrInternal("failed to update subscription", err)
	}
	if !ok {
		return nil, domain.ErrNotFound("subscription not found")
	}
	return sub, nil
}

func (s *SubscriptionService) Delete(ctx context.Context, accountID, id string) error {
	ok, err := s.repo.Delete(ctx, id, accountID)
	if err != nil {
		return domain.ErrInternal("failed to delete subscription", err)
	}
	if !ok {
		return domain.ErrNotFound("subscription not found")
	}
	return nil
}

// MarkPaid sets is_paid for a subscription the account owns. It stays set
// until the reset sweep on the next payment day.
func (s *SubscriptionService) MarkPaid(ctx context.Context, accountID, id string) error {
	if _, err := s.owned(ctx, accountID, id); err != nil {
		return err
	}
	if err := s.repo.SetPaidFlag(ctx, id, true); err != nil {
		return domain.ErrInternal("failed to mark subscription paid", err)
	}
	s.log.WithFields(logrus.Fields{"subscription_id": id, "account_id": accountID}).Info("subscription marked paid")
	return nil
}

func (s *SubscriptionService) owned(ctx context.Context, accountID, id string) (*domain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrInternal("failed to find subscription", err)
	}
	if sub == nil || sub.AccountID != accountID {
		return nil, domain.ErrNotFound("subscription not found")
	}
	return sub, nil
}

func (s *SubscriptionService) check(req *domain.SubscriptionRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return domain.ErrValidation(formatValidationErrors(err))
	}
	if req.Price.IsNegative() {
		return domain.ErrValidation("price must not be negative")
	}
	return nil
}
