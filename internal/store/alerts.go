package store

import (
	"context"
	"fmt"
	"time"

	"github.com/exiscale/urlhealth/internal/models"
)

// AlertRepo persists detection alerts.
type AlertRepo struct {
	Client *Client
}

func NewAlertRepo(c *Client) *AlertRepo {
	return &AlertRepo{Client: c}
}

// Find returns the alert for the exact (url, engine) pair scoped to the
// account, or nil when none exists. The engine name narrows the fetch
// store-side; linked-record membership cannot be expressed in the formula
// language, so url and account containment are checked client-side.
func (r *AlertRepo) Find(ctx context.Context, urlID, accountID, engine string) (*models.Alert, error) {
	filter := fmt.Sprintf("{%s} = '%s'", fldEngineName, escapeFormulaStr(engine))
	recs, err := r.Client.List(ctx, TableAlerts, filter)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		a := decodeAlert(rec)
		if contains(a.URLIDs, urlID) && contains(a.AccountIDs, accountID) {
			return &a, nil
		}
	}
	return nil, nil
}

// ListUnacknowledged returns every open alert, for the re-notification pass.
func (r *AlertRepo) ListUnacknowledged(ctx context.Context) ([]models.Alert, error) {
	recs, err := r.Client.List(ctx, TableAlerts, fmt.Sprintf("NOT({%s})", fldAcknowledged))
	if err != nil {
		return nil, err
	}
	out := make([]models.Alert, 0, len(recs))
	for _, rec := range recs {
		a := decodeAlert(rec)
		if !a.Acknowledged {
			out = append(out, a)
		}
	}
	return out, nil
}

// Create persists a new unacknowledged alert in one request.
func (r *AlertRepo) Create(ctx context.Context, a models.Alert) (*models.Alert, error) {
	fields := map[string]any{
		fldURL:           a.URLIDs,
		fldAccount:       a.AccountIDs,
		fldEngineName:    a.EngineName,
		fldFirstDetected: a.FirstDetected.UTC().Format(time.RFC3339),
		fldAcknowledged:  false,
		fldAlertCount:    a.AlertCount,
	}
	if a.LastAlerted != nil {
		fields[fldLastAlerted] = a.LastAlerted.UTC().Format(time.RFC3339)
	}
	rec, err := r.Client.Create(ctx, TableAlerts, fields)
	if err != nil {
		return nil, err
	}
	a.ID = rec.ID
	return &a, nil
}

// MarkNotified records a sent re-notification.
func (r *AlertRepo) MarkNotified(ctx context.Context, id string, at time.Time, count int) error {
	_, err := r.Client.Patch(ctx, TableAlerts, id, map[string]any{
		fldLastAlerted: at.UTC().Format(time.RFC3339),
		fldAlertCount:  count,
	})
	return err
}

// Acknowledge marks an alert handled. Only ever user-initiated; the core
// never clears the flag.
func (r *AlertRepo) Acknowledge(ctx context.Context, id string) error {
	_, err := r.Client.Patch(ctx, TableAlerts, id, map[string]any{
		fldAcknowledged: true,
	})
	return err
}

func decodeAlert(rec Record) models.Alert {
	a := models.Alert{
		ID:           rec.ID,
		URLIDs:       fieldIDList(rec, fldURL),
		AccountIDs:   fieldIDList(rec, fldAccount),
		EngineName:   fieldStr(rec, fldEngineName),
		Acknowledged: fieldBool(rec, fldAcknowledged),
		AlertCount:   fieldInt(rec, fldAlertCount),
		LastAlerted:  fieldTime(rec, fldLastAlerted),
	}
	if t := fieldTime(rec, fldFirstDetected); t != nil {
		a.FirstDetected = *t
	}
	return a
}
