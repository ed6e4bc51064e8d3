package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/subremind/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// Chat commands understood by HandleText.
const (
	CommandStart  = "/start"
	CommandCancel = "/cancel"
	CommandStop   = "stop"
)

var promptText = map[domain.PromptKind]string{
	domain.PromptAskEmail: "👋 Hi! I remind you about subscription payments the day before they are due.\n" +
		"Sign in with your account to receive reminders.\n\nEnter your email:",
	domain.PromptEmailNotFound:   "❌ No account with that email. Please try again:",
	domain.PromptAskPassword:     "Enter your password:",
	domain.PromptWrongPassword:   "❌ Wrong password. Please try again:",
	domain.PromptLinked:          "✅ Signed in! You will now get a reminder the day before each payment.",
	domain.PromptTryLater:        "⚠️ Something went wrong. Please try again later.",
	domain.PromptCancelled:       "Linking cancelled. Send /start to begin again.",
	domain.PromptNothingToCancel: "Nothing to cancel.",
	domain.PromptNoSession:       "Send /start to link your account.",
}

func prompt(kind domain.PromptKind, state domain.LinkState) domain.Prompt {
	return domain.Prompt{Kind: kind, State: state, Text: promptText[kind]}
}

// LinkingService runs the email/password challenge that binds a chat to an account.
type LinkingService struct {
	accounts   AccountFinder
	identities IdentityStore
	sessions   *SessionStore
	log        logrus.FieldLogger
	metrics    *Metrics
	now        func() time.Time
}

// NewLinkingService creates a LinkingService.
func NewLinkingService(accounts AccountFinder, identities IdentityStore, sessions *SessionStore, log logrus.FieldLogger, metrics *Metrics) *LinkingService {
	return &LinkingService{
		accounts:   accounts,
		identities: identities,
		sessions:   sessions,
		log:        log.WithField("component", "linking"),
		metrics:    metrics,
		now:        time.Now,
	}
}

// HandleText routes a raw chat message to Begin, Cancel or Advance.
func (s *LinkingService) HandleText(ctx context.Context, channelID, text string) (domain.Prompt, error) {
	cmd := strings.ToLower(strings.TrimSpace(text))
	switch {
	case cmd == CommandStart || strings.HasPrefix(cmd, CommandStart+" "):
		return s.Begin(ctx, channelID), nil
	case cmd == CommandCancel || cmd == CommandStop:
		return s.Cancel(ctx, channelID), nil
	default:
		return s.Advance(ctx, channelID, text)
	}
}

// Begin starts a new session for the channel, replacing any existing one.
func (s *LinkingService) Begin(ctx context.Context, channelID string) domain.Prompt {
	unlock := s.sessions.Lock(channelID)
	defer unlock()

	s.store(domain.LinkingSession{ChannelID: channelID, State: domain.LinkStateAwaitingEmail})
	return prompt(domain.PromptAskEmail, domain.LinkStateAwaitingEmail)
}

// Cancel abandons the channel's session.
func (s *LinkingService) Cancel(ctx context.Context, channelID string) domain.Prompt {
	unlock := s.sessions.Lock(channelID)
	defer unlock()

	if !s.sessions.Delete(channelID) {
		return prompt(domain.PromptNothingToCancel, "")
	}
	s.log.WithField("channel_id", channelID).Debug("linking session cancelled")
	return prompt(domain.PromptCancelled, "")
}

// Advance feeds one line of user input into the channel's session. The
// returned error is set only for persistence failures; the prompt is always
// safe to send back.
func (s *LinkingService) Advance(ctx context.Context, channelID, input string) (domain.Prompt, error) {
	unlock := s.sessions.Lock(channelID)
	defer unlock()

	session, ok := s.sessions.Get(channelID)
	if !ok {
		return prompt(domain.PromptNoSession, ""), nil
	}

	switch session.State {
	case domain.LinkStateAwaitingEmail:
		return s.acceptEmail(ctx, session, strings.TrimSpace(input))
	case domain.LinkStateAwaitingPassword:
		return s.acceptPassword(ctx, session, input)
	default:
		s.sessions.Delete(channelID)
		return prompt(domain.PromptNoSession, ""), nil
	}
}

// Session returns the channel's current session, if any.
func (s *LinkingService) Session(channelID string) (domain.LinkingSession, bool) {
	return s.sessions.Get(channelID)
}

func (s *LinkingService) acceptEmail(ctx context.Context, session domain.LinkingSession, email string) (domain.Prompt, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		s.log.WithField("channel_id", session.ChannelID).WithError(err).Error("account lookup failed")
		return prompt(domain.PromptTryLater, session.State), err
	}
	if account == nil {
		s.store(session)
		return prompt(domain.PromptEmailNotFound, domain.LinkStateAwaitingEmail), nil
	}

	session.State = domain.LinkStateAwaitingPassword
	session.CandidateAccountID = account.ID
	session.CandidateEmail = account.Email
	s.store(session)
	return prompt(domain.PromptAskPassword, domain.LinkStateAwaitingPassword), nil
}

func (s *LinkingService) acceptPassword(ctx context.Context, session domain.LinkingSession, password string) (domain.Prompt, error) {
	logger := s.log.WithField("channel_id", session.ChannelID)

	account, err := s.accounts.FindByID(ctx, session.CandidateAccountID)
	if err != nil {
		logger.WithError(err).Error("account lookup failed")
		return prompt(domain.PromptTryLater, session.State), err
	}
	if account == nil {
		// Account removed mid-challenge: start over from the email step.
		session.State = domain.LinkStateAwaitingEmail
		session.CandidateAccountID = ""
		session.CandidateEmail = ""
		s.store(session)
		return prompt(domain.PromptEmailNotFound, domain.LinkStateAwaitingEmail), nil
	}

	if bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)) != nil {
		logger.Debug("wrong password")
		s.store(session)
		return prompt(domain.PromptWrongPassword, domain.LinkStateAwaitingPassword), nil
	}

	if err := s.identities.UpsertLinkedIdentity(ctx, account.ID, session.ChannelID); err != nil {
		logger.WithError(err).Error("failed to save linked identity")
		s.store(session)
		return prompt(domain.PromptTryLater, domain.LinkStateAwaitingPassword), err
	}

	s.sessions.Delete(session.ChannelID)
	s.metrics.linkTransition(domain.LinkStateCompleted)
	logger.WithField("account_id", account.ID).Info("chat linked to account")
	return prompt(domain.PromptLinked, domain.LinkStateCompleted), nil
}

func (s *LinkingService) store(session domain.LinkingSession) {
	prev, existed := s.sessions.Get(session.ChannelID)
	session.UpdatedAt = s.now()
	s.sessions.Put(session)
	if !existed || prev.State != session.State {
		s.metrics.linkTransition(session.State)
	}
}
