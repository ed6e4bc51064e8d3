package domain

import "time"

// Stats is the admin overview of the service.
type Stats struct {
	Accounts          int                   `json:"accounts"`
	LinkedAccounts    int                   `json:"linkedAccounts"`
	Subscriptions     int                   `json:"subscriptions"`
	PaidSubscriptions int                   `json:"paidSubscriptions"`
	PendingLinks      int                   `json:"pendingLinks"`
	NextRuns          map[Trigger]time.Time `json:"nextRuns"`
}
