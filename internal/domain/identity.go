package domain

import "time"

// LinkedIdentity binds an account to the external chat that proved ownership
// of it. There is at most one per account.
type LinkedIdentity struct {
	AccountID         string    `json:"accountId"`
	ExternalChannelID string    `json:"externalChannelId"`
	LinkedAt          time.Time `json:"linkedAt"`
}

// LinkState is the position of a linking session in the email/password challenge.
type LinkState string

const (
	LinkStateAwaitingEmail    LinkState = "awaiting_email"
	LinkStateAwaitingPassword LinkState = "awaiting_password"
	LinkStateCompleted        LinkState = "completed"
)

// LinkingSession is the in-memory state of one chat's linking attempt.
type LinkingSession struct {
	ChannelID          string
	State              LinkState
	CandidateAccountID string
	CandidateEmail     string
	UpdatedAt          time.Time
}

// PromptKind identifies the reply emitted by a linking step.
type PromptKind string

const (
	PromptAskEmail        PromptKind = "ask_email"
	PromptEmailNotFound   PromptKind = "email_not_found"
	PromptAskPassword     PromptKind = "ask_password"
	PromptWrongPassword   PromptKind = "wrong_password"
	PromptLinked          PromptKind = "linked"
	PromptTryLater        PromptKind = "try_later"
	PromptCancelled       PromptKind = "cancelled"
	PromptNothingToCancel PromptKind = "nothing_to_cancel"
	PromptNoSession       PromptKind = "no_session"
)

// Prompt is the outcome of a linking step: the session state after the step
// and the text to send back to the chat.
type Prompt struct {
	Kind  PromptKind `json:"kind"`
	State LinkState  `json:"state,omitempty"`
	Text  string     `json:"text"`
}
