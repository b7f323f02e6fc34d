package models

// URL is a user-registered URL record.
type URL struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	AccountIDs []string `json:"account_ids"`
}
