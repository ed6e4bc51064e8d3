package domain

import "time"

// Trigger names a scheduled sweep.
type Trigger string

const (
	TriggerReset     Trigger = "reset"
	TriggerLookahead Trigger = "lookahead"
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	return t == TriggerReset || t == TriggerLookahead
}

// SweepSummary counts what a single trigger run did.
type SweepSummary struct {
	Trigger   Trigger   `json:"trigger"`
	Day       int       `json:"day"`
	StartedAt time.Time `json:"startedAt"`
	Duration  string    `json:"duration"`
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
}

// SweepRun is a journal row for a finished sweep.
type SweepRun struct {
	ID         int64     `json:"id"`
	Trigger    Trigger   `json:"trigger"`
	Day        int       `json:"day"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
}
