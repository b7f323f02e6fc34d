package store

import (
	"context"

	"github.com/exiscale/urlhealth/internal/models"
)

// AccountRepo reads owner notification configuration. Read-only to the core.
type AccountRepo struct {
	Client *Client
}

func NewAccountRepo(c *Client) *AccountRepo {
	return &AccountRepo{Client: c}
}

// GetByID returns one account, or nil when it does not exist.
func (r *AccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	rec, err := r.Client.Get(ctx, TableAccounts, id)
	if err != nil || rec == nil {
		return nil, err
	}
	a := models.Account{
		ID:                  rec.ID,
		Name:                fieldStr(*rec, fldName),
		AlertEmails:         splitContacts(fieldStr(*rec, fldAlertEmails)),
		TelegramChatIDs:     splitContacts(fieldStr(*rec, fldTelegramChatIDs)),
		AlertFrequencyHours: fieldInt(*rec, fldAlertFreqHours),
	}
	return &a, nil
}
