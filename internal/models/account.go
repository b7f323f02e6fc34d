package models

// Account holds an owner's notification configuration. Read-only to the
// scheduling core.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// AlertEmails and TelegramChatIDs are parsed from the stored
	// comma/newline separated lists.
	AlertEmails     []string `json:"alert_emails"`
	TelegramChatIDs []string `json:"telegram_chat_ids"`
	// AlertFrequencyHours is the cooldown before re-notifying a still
	// unacknowledged alert. Zero means the deployment default.
	AlertFrequencyHours int `json:"alert_frequency_hours"`
}
