// Package alert decides whether a detection should produce a notification.
// It enforces one alert entity per (url, engine, account) and a cooldown
// between re-notifications while the alert stays unacknowledged.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/exiscale/urlhealth/internal/models"
)

// Store is the slice of the alert collection the deduplicator needs.
// *store.AlertRepo satisfies it.
type Store interface {
	Find(ctx context.Context, urlID, accountID, engine string) (*models.Alert, error)
	Create(ctx context.Context, a models.Alert) (*models.Alert, error)
	MarkNotified(ctx context.Context, id string, at time.Time, count int) error
}

// Decision is the outcome for one detection.
type Decision struct {
	// Suppress means no notification goes out for this detection.
	Suppress bool
	// AlertID is the persisted alert entity, set whenever one exists.
	AlertID string
	// IsNew marks a first detection of this url x engine pair.
	IsNew bool
}

// Deduplicator applies the notification policy against persisted alerts.
type Deduplicator struct {
	Alerts Store
}

func New(alerts Store) *Deduplicator {
	return &Deduplicator{Alerts: alerts}
}

// ShouldNotify decides suppress / create-new / re-notify for one detected
// (url, engine) pair. cooldown is the account's re-notification interval.
//
// First detection creates the alert with notify-count 1 and last-alerted set
// (the caller sends the notification as part of the same pass). An
// acknowledged alert suppresses permanently; the core never re-opens it.
// Within the cooldown window the detection is suppressed. Past the window
// the alert's last-alerted and notify-count advance and the caller notifies
// again.
func (d *Deduplicator) ShouldNotify(ctx context.Context, urlID, accountID, engine string, cooldown time.Duration, now time.Time) (Decision, error) {
	existing, err := d.Alerts.Find(ctx, urlID, accountID, engine)
	if err != nil {
		return Decision{Suppress: true}, fmt.Errorf("lookup alert for %s: %w", engine, err)
	}

	if existing == nil {
		created, err := d.Alerts.Create(ctx, models.Alert{
			URLIDs:        []string{urlID},
			AccountIDs:    []string{accountID},
			EngineName:    engine,
			FirstDetected: now,
			LastAlerted:   &now,
			Acknowledged:  false,
			AlertCount:    1,
		})
		if err != nil {
			return Decision{Suppress: true}, fmt.Errorf("create alert for %s: %w", engine, err)
		}
		return Decision{AlertID: created.ID, IsNew: true}, nil
	}

	if existing.Acknowledged {
		return Decision{Suppress: true, AlertID: existing.ID}, nil
	}

	basis := existing.FirstDetected
	if existing.LastAlerted != nil {
		basis = *existing.LastAlerted
	}
	if cooldown > 0 && now.Sub(basis) < cooldown {
		return Decision{Suppress: true, AlertID: existing.ID}, nil
	}

	count := existing.AlertCount
	if count == 0 {
		// Records written before the counter field existed.
		count = 1
	}
	count++
	if err := d.Alerts.MarkNotified(ctx, existing.ID, now, count); err != nil {
		return Decision{Suppress: true, AlertID: existing.ID}, fmt.Errorf("update alert %s: %w", existing.ID, err)
	}
	return Decision{AlertID: existing.ID}, nil
}
