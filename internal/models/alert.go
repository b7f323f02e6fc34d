package models

import "time"

// Alert is the persisted record of an unresolved detection for one
// URL x engine pair. At most one unacknowledged alert exists per
// (url, engine, account) at any time.
type Alert struct {
	ID            string     `json:"id"`
	URLIDs        []string   `json:"url_ids"`
	AccountIDs    []string   `json:"account_ids"`
	EngineName    string     `json:"engine_name"`
	FirstDetected time.Time  `json:"first_detected"`
	LastAlerted   *time.Time `json:"last_alerted,omitempty"`
	Acknowledged  bool       `json:"acknowledged"`
	AlertCount    int        `json:"alert_count"`
}

// URLID returns the linked URL record id, or "" when the link is missing.
func (a *Alert) URLID() string {
	if len(a.URLIDs) == 0 {
		return ""
	}
	return a.URLIDs[0]
}

// AccountID returns the linked account id, or "" when the link is missing.
func (a *Alert) AccountID() string {
	if len(a.AccountIDs) == 0 {
		return ""
	}
	return a.AccountIDs[0]
}
