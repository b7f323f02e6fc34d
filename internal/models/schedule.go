package models

import "time"

// Frequency is how often a schedule runs.
type Frequency string

const (
	FreqHourly  Frequency = "hourly"
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
)

// Schedule represents a recurring URL scan schedule owned by an account.
type Schedule struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Frequency Frequency `json:"frequency"`

	// ScheduledTime is "HH:MM" (24h, UTC). Empty means the 09:00 default.
	ScheduledTime string `json:"scheduled_time,omitempty"`
	// ScheduledDay is the lowercase weekday name for weekly schedules.
	ScheduledDay string `json:"scheduled_day,omitempty"`
	// ScheduledDate is the day of month (1-31) for monthly schedules.
	ScheduledDate int `json:"scheduled_date,omitempty"`

	Enabled bool `json:"enabled"`

	// URLIDs are the target URL record ids, parsed from the stored rules blob.
	URLIDs []string `json:"url_ids"`
	// AccountIDs is the linked account field (single owner in practice).
	AccountIDs []string `json:"account_ids"`

	// LastScan is nil until the schedule has completed at least one run.
	LastScan *time.Time `json:"last_scan,omitempty"`
}

// AccountID returns the owning account id, or "" when no account is linked.
func (s *Schedule) AccountID() string {
	if len(s.AccountIDs) == 0 {
		return ""
	}
	return s.AccountIDs[0]
}
