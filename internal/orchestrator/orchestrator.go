// Package orchestrator runs the scheduling core: one tick walks every
// schedule, scans whatever is due, persists results, and routes detections
// through dedup and notification.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/exiscale/urlhealth/internal/alert"
	"github.com/exiscale/urlhealth/internal/metrics"
	"github.com/exiscale/urlhealth/internal/models"
	"github.com/exiscale/urlhealth/internal/notify"
	"github.com/exiscale/urlhealth/internal/schedule"
	"github.com/exiscale/urlhealth/internal/vt"
)

// maxAlertEngines caps how many flagging engines of one scan can open
// alerts, so a mass detection does not flood the alert collection.
const maxAlertEngines = 5

// Scanner drives one URL scan. *vt.Client satisfies it.
type Scanner interface {
	Scan(ctx context.Context, url string) (*vt.ScanResult, error)
}

// ScheduleStore is the schedule collection surface the loop needs.
type ScheduleStore interface {
	ListEnabled(ctx context.Context) ([]models.Schedule, error)
	UpdateLastScan(ctx context.Context, id string, t time.Time) error
}

// URLStore resolves target URL records.
type URLStore interface {
	ListAll(ctx context.Context) (map[string]models.URL, error)
}

// ScanLogStore appends scan results.
type ScanLogStore interface {
	Create(ctx context.Context, l models.ScanLog) (*models.ScanLog, error)
}

// AlertStore lists open alerts for the re-notification pass.
type AlertStore interface {
	ListUnacknowledged(ctx context.Context) ([]models.Alert, error)
}

// AccountStore reads owner notification config.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// Deduper decides notify/suppress per detection. *alert.Deduplicator
// satisfies it.
type Deduper interface {
	ShouldNotify(ctx context.Context, urlID, accountID, engine string, cooldown time.Duration, now time.Time) (alert.Decision, error)
}

// Notifier fans an alert out to an account's channels.
type Notifier interface {
	Notify(ctx context.Context, acct models.Account, url string, engines []string) []notify.Outcome
}

// TickError records one failed unit of work within a tick.
type TickError struct {
	ScheduleID string `json:"schedule_id,omitempty"`
	URLID      string `json:"url_id,omitempty"`
	AlertID    string `json:"alert_id,omitempty"`
	Err        string `json:"error"`
}

// Summary is the terminal state of one tick.
type Summary struct {
	Checked int         `json:"checked"`
	Due     int         `json:"due"`
	Scanned int         `json:"scanned"`
	Alerts  int         `json:"alerts"`
	Errors  []TickError `json:"errors,omitempty"`
}

// Orchestrator owns the tick loop state. Schedules are processed
// sequentially and URLs within a schedule sequentially: the external scanner
// is a shared rate-limited resource and last-run bookkeeping has exactly one
// writer.
type Orchestrator struct {
	Schedules ScheduleStore
	URLs      URLStore
	ScanLogs  ScanLogStore
	Alerts    AlertStore
	Accounts  AccountStore
	Scanner   Scanner
	Dedup     Deduper
	Notifier  Notifier

	// DefaultCooldown applies to accounts without their own interval.
	DefaultCooldown time.Duration

	// pacer spaces URL scans out within a tick.
	pacer *rate.Limiter

	now func() time.Time

	// mu guarantees no two ticks overlap even if the driver misfires.
	mu sync.Mutex
}

// New builds an orchestrator. scanInterval is the minimum spacing between
// URL scans within a tick.
func New(schedules ScheduleStore, urls URLStore, scanLogs ScanLogStore, alerts AlertStore, accounts AccountStore, scanner Scanner, dedup Deduper, notifier Notifier, scanInterval, defaultCooldown time.Duration) *Orchestrator {
	if scanInterval <= 0 {
		scanInterval = time.Second
	}
	return &Orchestrator{
		Schedules:       schedules,
		URLs:            urls,
		ScanLogs:        scanLogs,
		Alerts:          alerts,
		Accounts:        accounts,
		Scanner:         scanner,
		Dedup:           dedup,
		Notifier:        notifier,
		DefaultCooldown: defaultCooldown,
		pacer:           rate.NewLimiter(rate.Every(scanInterval), 1),
		now:             time.Now,
	}
}

// Tick runs one full pass: due check, scans, persistence, alerting, and the
// standalone re-notification sweep. A failed schedule or URL never aborts
// the tick; failures aggregate into the summary. Context cancellation stops
// the tick between units of work.
func (o *Orchestrator) Tick(ctx context.Context) Summary {
	o.mu.Lock()
	defer o.mu.Unlock()

	tickStart := o.now().UTC()
	var sum Summary

	schedules, err := o.Schedules.ListEnabled(ctx)
	if err != nil {
		sum.Errors = append(sum.Errors, TickError{Err: fmt.Sprintf("list schedules: %v", err)})
		metrics.TicksTotal.WithLabelValues("failed").Inc()
		return sum
	}

	urlsByID, err := o.URLs.ListAll(ctx)
	if err != nil {
		sum.Errors = append(sum.Errors, TickError{Err: fmt.Sprintf("list urls: %v", err)})
		metrics.TicksTotal.WithLabelValues("failed").Inc()
		return sum
	}

	for _, s := range schedules {
		if ctx.Err() != nil {
			sum.Errors = append(sum.Errors, TickError{Err: "tick canceled"})
			break
		}
		sum.Checked++
		if !schedule.IsDue(s, tickStart) {
			continue
		}
		sum.Due++
		slog.Info("schedule due", "schedule_id", s.ID, "name", s.Name, "frequency", string(s.Frequency))
		o.runSchedule(ctx, s, urlsByID, tickStart, &sum)
	}

	if ctx.Err() == nil {
		o.renotifyPending(ctx, urlsByID, tickStart, &sum)
	}

	metrics.TicksTotal.WithLabelValues("completed").Inc()
	slog.Info("tick complete",
		"checked", sum.Checked, "due", sum.Due,
		"scanned", sum.Scanned, "alerts", sum.Alerts, "errors", len(sum.Errors))
	return sum
}

// runSchedule scans every target of one due schedule and advances last-run
// afterwards regardless of per-URL outcomes.
func (o *Orchestrator) runSchedule(ctx context.Context, s models.Schedule, urlsByID map[string]models.URL, tickStart time.Time, sum *Summary) {
	accountID := s.AccountID()
	if accountID == "" {
		sum.Errors = append(sum.Errors, TickError{ScheduleID: s.ID, Err: "no account linked to schedule"})
		return
	}
	acct, err := o.Accounts.GetByID(ctx, accountID)
	if err != nil || acct == nil {
		sum.Errors = append(sum.Errors, TickError{ScheduleID: s.ID, Err: fmt.Sprintf("load account %s: %v", accountID, err)})
		return
	}

	cooldown := o.DefaultCooldown
	if acct.AlertFrequencyHours > 0 {
		cooldown = time.Duration(acct.AlertFrequencyHours) * time.Hour
	}

	for _, urlID := range s.URLIDs {
		if ctx.Err() != nil {
			return
		}
		target, ok := urlsByID[urlID]
		if !ok {
			sum.Errors = append(sum.Errors, TickError{ScheduleID: s.ID, URLID: urlID, Err: "url record not found"})
			continue
		}
		o.scanOne(ctx, s, *acct, target, cooldown, sum)
	}

	// Last-run moves to tick start even after partial failures: a schedule
	// with failed URLs is not retried early.
	if err := o.Schedules.UpdateLastScan(ctx, s.ID, tickStart); err != nil {
		sum.Errors = append(sum.Errors, TickError{ScheduleID: s.ID, Err: fmt.Sprintf("update last_scan: %v", err)})
	}
}

// scanOne scans a single URL, persists the result, and routes detections.
func (o *Orchestrator) scanOne(ctx context.Context, s models.Schedule, acct models.Account, target models.URL, cooldown time.Duration, sum *Summary) {
	if err := o.pacer.Wait(ctx); err != nil {
		return
	}

	slog.Info("scanning", "url", target.URL, "url_id", target.ID, "schedule_id", s.ID)
	metrics.ScansRunning.Inc()
	result, err := o.Scanner.Scan(ctx, target.URL)
	metrics.ScansRunning.Dec()

	now := o.now().UTC()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		sum.Errors = append(sum.Errors, TickError{ScheduleID: s.ID, URLID: target.ID, Err: err.Error()})
		metrics.RecordScan(string(models.VerdictError))
		if errors.Is(err, vt.ErrTimeout) {
			// Timeouts still leave a scan record for observability.
			o.persistErrorLog(ctx, s, acct, target, now, err, sum)
		}
		return
	}

	sum.Scanned++
	metrics.RecordScan(string(result.Verdict))

	log := models.ScanLog{
		ScanID:           "scan_" + uuid.NewString(),
		URLIDs:           []string{target.ID},
		AccountIDs:       []string{acct.ID},
		Timestamp:        now,
		Verdict:          result.Verdict,
		Detections:       result.Detections,
		AdRiskScore:      result.AdRiskScore,
		MaliciousEngines: result.MaliciousEngines,
		ResultJSON:       string(result.Raw),
	}
	if _, err := o.ScanLogs.Create(ctx, log); err != nil {
		sum.Errors = append(sum.Errors, TickError{ScheduleID: s.ID, URLID: target.ID, Err: fmt.Sprintf("persist scan log: %v", err)})
	}

	if len(result.MaliciousEngines) == 0 {
		return
	}

	engines := result.MaliciousEngines
	if len(engines) > maxAlertEngines {
		engines = engines[:maxAlertEngines]
	}

	var toNotify []string
	for _, engine := range engines {
		decision, err := o.Dedup.ShouldNotify(ctx, target.ID, acct.ID, engine, cooldown, now)
		if err != nil {
			sum.Errors = append(sum.Errors, TickError{ScheduleID: s.ID, URLID: target.ID, Err: err.Error()})
			continue
		}
		if decision.Suppress {
			continue
		}
		toNotify = append(toNotify, engine)
		if decision.IsNew {
			metrics.AlertsSentTotal.WithLabelValues("new").Inc()
		} else {
			metrics.AlertsSentTotal.WithLabelValues("repeat").Inc()
		}
	}

	if len(toNotify) == 0 {
		return
	}
	sum.Alerts += len(toNotify)
	o.recordOutcomes(o.Notifier.Notify(ctx, acct, target.URL, toNotify))
}

// persistErrorLog appends an error-verdict scan record after a poll timeout.
func (o *Orchestrator) persistErrorLog(ctx context.Context, s models.Schedule, acct models.Account, target models.URL, now time.Time, scanErr error, sum *Summary) {
	log := models.ScanLog{
		ScanID:     "scan_" + uuid.NewString(),
		URLIDs:     []string{target.ID},
		AccountIDs: []string{acct.ID},
		Timestamp:  now,
		Verdict:    models.VerdictError,
		ResultJSON: fmt.Sprintf(`{"error":%q}`, scanErr.Error()),
	}
	if _, err := o.ScanLogs.Create(ctx, log); err != nil {
		sum.Errors = append(sum.Errors, TickError{ScheduleID: s.ID, URLID: target.ID, Err: fmt.Sprintf("persist error log: %v", err)})
	}
}

// renotifyPending re-sends any unacknowledged alert whose cooldown has
// elapsed, so detections keep nagging until someone acknowledges them even
// when the URL's next scheduled scan is far away.
func (o *Orchestrator) renotifyPending(ctx context.Context, urlsByID map[string]models.URL, now time.Time, sum *Summary) {
	open, err := o.Alerts.ListUnacknowledged(ctx)
	if err != nil {
		sum.Errors = append(sum.Errors, TickError{Err: fmt.Sprintf("list open alerts: %v", err)})
		return
	}

	accounts := make(map[string]*models.Account)
	for _, a := range open {
		if ctx.Err() != nil {
			return
		}
		urlID, accountID := a.URLID(), a.AccountID()
		if urlID == "" || accountID == "" {
			continue
		}
		target, ok := urlsByID[urlID]
		if !ok {
			continue
		}

		acct, ok := accounts[accountID]
		if !ok {
			var err error
			acct, err = o.Accounts.GetByID(ctx, accountID)
			if err != nil || acct == nil {
				sum.Errors = append(sum.Errors, TickError{AlertID: a.ID, Err: fmt.Sprintf("load account %s: %v", accountID, err)})
				continue
			}
			accounts[accountID] = acct
		}

		cooldown := o.DefaultCooldown
		if acct.AlertFrequencyHours > 0 {
			cooldown = time.Duration(acct.AlertFrequencyHours) * time.Hour
		}

		// The same dedup path enforces the cooldown, so a recently-notified
		// alert comes back suppressed here.
		decision, err := o.Dedup.ShouldNotify(ctx, urlID, accountID, a.EngineName, cooldown, now)
		if err != nil {
			sum.Errors = append(sum.Errors, TickError{AlertID: a.ID, Err: err.Error()})
			continue
		}
		if decision.Suppress {
			continue
		}
		sum.Alerts++
		metrics.AlertsSentTotal.WithLabelValues("repeat").Inc()
		o.recordOutcomes(o.Notifier.Notify(ctx, *acct, target.URL, []string{a.EngineName}))
	}
}

func (o *Orchestrator) recordOutcomes(outcomes []notify.Outcome) {
	for _, out := range outcomes {
		metrics.RecordNotification(out.Channel, out.OK())
	}
}
