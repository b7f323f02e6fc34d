package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/exiscale/urlhealth/internal/models"
)

// ScheduleRepo reads and updates scan schedules. The orchestrator only ever
// writes last_scan; everything else is owner-edited.
type ScheduleRepo struct {
	Client *Client
}

func NewScheduleRepo(c *Client) *ScheduleRepo {
	return &ScheduleRepo{Client: c}
}

// scheduleRules is the JSON blob stored in the rules field.
type scheduleRules struct {
	URLIDs []string `json:"urlIds"`
}

// List returns all schedules.
func (r *ScheduleRepo) List(ctx context.Context) ([]models.Schedule, error) {
	recs, err := r.Client.List(ctx, TableSchedules, "")
	if err != nil {
		return nil, err
	}
	out := make([]models.Schedule, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeSchedule(rec))
	}
	return out, nil
}

// ListEnabled returns enabled schedules only, filtered store-side.
func (r *ScheduleRepo) ListEnabled(ctx context.Context) ([]models.Schedule, error) {
	recs, err := r.Client.List(ctx, TableSchedules, "{enabled} = TRUE()")
	if err != nil {
		return nil, err
	}
	out := make([]models.Schedule, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeSchedule(rec))
	}
	return out, nil
}

// UpdateLastScan records a completed run. Called after all URLs of the run
// attempted, never before, so a crash mid-run leaves the schedule due again.
func (r *ScheduleRepo) UpdateLastScan(ctx context.Context, id string, t time.Time) error {
	_, err := r.Client.Patch(ctx, TableSchedules, id, map[string]any{
		fldLastScan: t.UTC().Format(time.RFC3339),
	})
	return err
}

func decodeSchedule(rec Record) models.Schedule {
	s := models.Schedule{
		ID:            rec.ID,
		Name:          fieldStr(rec, fldName),
		Frequency:     models.Frequency(fieldStr(rec, fldFrequency)),
		ScheduledTime: fieldStr(rec, fldScheduledTime),
		ScheduledDay:  fieldStr(rec, fldScheduledDay),
		ScheduledDate: fieldInt(rec, fldScheduledDate),
		Enabled:       fieldBool(rec, fldEnabled),
		AccountIDs:    fieldIDList(rec, fldAccount),
		LastScan:      fieldTime(rec, fldLastScan),
	}
	s.URLIDs = parseRules(rec.ID, fieldStr(rec, fldRules))
	return s
}

// parseRules extracts the target URL ids from the rules blob. A malformed
// blob is a data error: logged, treated as an empty target list, and the
// schedule still runs (and advances) normally.
func parseRules(scheduleID, raw string) []string {
	if raw == "" {
		return nil
	}
	var rules scheduleRules
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		// Older revisions stored a bare JSON array of ids.
		var ids []string
		if err2 := json.Unmarshal([]byte(raw), &ids); err2 == nil {
			return ids
		}
		slog.Warn("unparsable schedule rules", "schedule_id", scheduleID, "err", err)
		return nil
	}
	return rules.URLIDs
}
