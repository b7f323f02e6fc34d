package alert

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/exiscale/urlhealth/internal/models"
)

// fakeStore keeps alerts in memory, keyed the way the real collection is
// queried: one entity per (url, account, engine).
type fakeStore struct {
	alerts  map[string]*models.Alert
	nextID  int
	findErr error
	created int
	updated int
}

func newFakeStore() *fakeStore {
	return &fakeStore{alerts: make(map[string]*models.Alert)}
}

func key(urlID, accountID, engine string) string {
	return urlID + "|" + accountID + "|" + engine
}

func (s *fakeStore) Find(_ context.Context, urlID, accountID, engine string) (*models.Alert, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	a, ok := s.alerts[key(urlID, accountID, engine)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) Create(_ context.Context, a models.Alert) (*models.Alert, error) {
	s.nextID++
	s.created++
	a.ID = fmt.Sprintf("rec%d", s.nextID)
	s.alerts[key(a.URLID(), a.AccountID(), a.EngineName)] = &a
	cp := a
	return &cp, nil
}

func (s *fakeStore) MarkNotified(_ context.Context, id string, at time.Time, count int) error {
	s.updated++
	for _, a := range s.alerts {
		if a.ID == id {
			a.LastAlerted = &at
			a.AlertCount = count
			return nil
		}
	}
	return fmt.Errorf("alert %s not found", id)
}

func TestShouldNotify_FirstDetectionCreatesAndNotifies(t *testing.T) {
	store := newFakeStore()
	d := New(store)
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	dec, err := d.ShouldNotify(context.Background(), "url1", "acct1", "Kaspersky", 6*time.Hour, now)
	if err != nil {
		t.Fatalf("ShouldNotify: %v", err)
	}
	if dec.Suppress || !dec.IsNew || dec.AlertID == "" {
		t.Errorf("first detection decision = %+v, want notify new with id", dec)
	}

	a := store.alerts[key("url1", "acct1", "Kaspersky")]
	if a == nil {
		t.Fatal("no alert persisted")
	}
	if a.AlertCount != 1 {
		t.Errorf("alert count = %d, want 1", a.AlertCount)
	}
	if a.LastAlerted == nil || !a.LastAlerted.Equal(now) {
		t.Errorf("last alerted = %v, want %s", a.LastAlerted, now)
	}
	if !a.FirstDetected.Equal(now) {
		t.Errorf("first detected = %s, want %s", a.FirstDetected, now)
	}
}

func TestShouldNotify_CooldownSuppresses(t *testing.T) {
	store := newFakeStore()
	d := New(store)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if _, err := d.ShouldNotify(ctx, "url1", "acct1", "Fortinet", 6*time.Hour, start); err != nil {
		t.Fatalf("first detection: %v", err)
	}

	// Re-detections inside the window stay quiet.
	dec, err := d.ShouldNotify(ctx, "url1", "acct1", "Fortinet", 6*time.Hour, start.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("re-detection: %v", err)
	}
	if !dec.Suppress {
		t.Error("detection 3h into a 6h cooldown was not suppressed")
	}
	if store.updated != 0 {
		t.Errorf("suppressed detection updated the alert %d times", store.updated)
	}

	// Past the window, the same detection notifies again.
	dec, err = d.ShouldNotify(ctx, "url1", "acct1", "Fortinet", 6*time.Hour, start.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("re-notify: %v", err)
	}
	if dec.Suppress || dec.IsNew {
		t.Errorf("post-cooldown decision = %+v, want repeat notify", dec)
	}
	a := store.alerts[key("url1", "acct1", "Fortinet")]
	if a.AlertCount != 2 {
		t.Errorf("alert count after re-notify = %d, want 2", a.AlertCount)
	}
	if store.created != 1 {
		t.Errorf("created %d alerts for one url x engine pair, want 1", store.created)
	}
}

func TestShouldNotify_AcknowledgedSuppressesForever(t *testing.T) {
	store := newFakeStore()
	d := New(store)
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	dec, err := d.ShouldNotify(ctx, "url1", "acct1", "ESET", time.Hour, start)
	if err != nil {
		t.Fatalf("first detection: %v", err)
	}
	store.alerts[key("url1", "acct1", "ESET")].Acknowledged = true

	// Even years past the cooldown an acknowledged alert stays silent.
	later, err := d.ShouldNotify(ctx, "url1", "acct1", "ESET", time.Hour, start.AddDate(1, 0, 0))
	if err != nil {
		t.Fatalf("post-ack detection: %v", err)
	}
	if !later.Suppress {
		t.Error("acknowledged alert produced a notification")
	}
	if later.AlertID != dec.AlertID {
		t.Errorf("ack suppression lost the alert id: got %q, want %q", later.AlertID, dec.AlertID)
	}
}

func TestShouldNotify_SeparateAccountsGetSeparateAlerts(t *testing.T) {
	store := newFakeStore()
	d := New(store)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	a1, err := d.ShouldNotify(ctx, "url1", "acct1", "Sophos", time.Hour, now)
	if err != nil {
		t.Fatalf("acct1: %v", err)
	}
	a2, err := d.ShouldNotify(ctx, "url1", "acct2", "Sophos", time.Hour, now)
	if err != nil {
		t.Fatalf("acct2: %v", err)
	}
	if !a1.IsNew || !a2.IsNew || a1.AlertID == a2.AlertID {
		t.Errorf("accounts share an alert entity: %+v vs %+v", a1, a2)
	}
}

func TestShouldNotify_ZeroCountNormalizedOnReNotify(t *testing.T) {
	store := newFakeStore()
	d := New(store)
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Record written before the counter existed: no count, no last-alerted.
	store.nextID++
	store.alerts[key("url1", "acct1", "OpenPhish")] = &models.Alert{
		ID:            "rec1",
		URLIDs:        []string{"url1"},
		AccountIDs:    []string{"acct1"},
		EngineName:    "OpenPhish",
		FirstDetected: first,
	}

	dec, err := d.ShouldNotify(context.Background(), "url1", "acct1", "OpenPhish", 6*time.Hour, first.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ShouldNotify: %v", err)
	}
	if dec.Suppress {
		t.Fatal("stale legacy alert was suppressed")
	}
	if got := store.alerts[key("url1", "acct1", "OpenPhish")].AlertCount; got != 2 {
		t.Errorf("alert count = %d, want 2 (normalized from 0 then incremented)", got)
	}
}

func TestShouldNotify_LookupErrorSuppresses(t *testing.T) {
	store := newFakeStore()
	store.findErr = errors.New("store unavailable")
	d := New(store)

	dec, err := d.ShouldNotify(context.Background(), "url1", "acct1", "Avast", time.Hour, time.Now())
	if err == nil {
		t.Fatal("expected an error from a failing lookup")
	}
	if !dec.Suppress {
		t.Error("failed lookup must fail closed and suppress")
	}
	if store.created != 0 {
		t.Error("failed lookup created an alert")
	}
}
