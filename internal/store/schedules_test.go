package store

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/exiscale/urlhealth/internal/models"
)

func TestScheduleRepo_ListEnabledDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filterByFormula"); got != "{enabled} = TRUE()" {
			t.Errorf("filter = %q", got)
		}
		json.NewEncoder(w).Encode(listResponse{Records: []Record{{
			ID: "recSched1",
			Fields: map[string]any{
				"name":           "Nightly scan",
				"frequency":      "daily",
				"scheduled_time": "22:15",
				"enabled":        true,
				"rules":          `{"urlIds":["recUrl1","recUrl2"]}`,
				"account":        []any{"recAcct1"},
				"last_scan":      "2026-03-01T22:15:00Z",
			},
		}}})
	})

	items, err := NewScheduleRepo(c).ListEnabled(context.Background())
	if err != nil {
		t.Fatalf("ListEnabled: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d schedules, want 1", len(items))
	}

	s := items[0]
	if s.ID != "recSched1" || s.Name != "Nightly scan" {
		t.Errorf("identity = %q/%q", s.ID, s.Name)
	}
	if s.Frequency != models.FreqDaily || s.ScheduledTime != "22:15" || !s.Enabled {
		t.Errorf("schedule fields = %+v", s)
	}
	if len(s.URLIDs) != 2 || s.URLIDs[0] != "recUrl1" {
		t.Errorf("url ids = %v", s.URLIDs)
	}
	if s.AccountID() != "recAcct1" {
		t.Errorf("account = %q", s.AccountID())
	}
	if s.LastScan == nil || !s.LastScan.Equal(time.Date(2026, 3, 1, 22, 15, 0, 0, time.UTC)) {
		t.Errorf("last scan = %v", s.LastScan)
	}
}

func TestScheduleRepo_UpdateLastScan(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/appBase1/Schedules/recSched1" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if got := body.Fields["last_scan"]; got != "2026-03-02T09:00:00Z" {
			t.Errorf("last_scan = %v", got)
		}
		json.NewEncoder(w).Encode(Record{ID: "recSched1"})
	})

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if err := NewScheduleRepo(c).UpdateLastScan(context.Background(), "recSched1", at); err != nil {
		t.Fatalf("UpdateLastScan: %v", err)
	}
}

func TestParseRules(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"object form", `{"urlIds":["a","b"]}`, 2},
		{"legacy bare array", `["a","b","c"]`, 3},
		{"empty", "", 0},
		{"malformed is empty not fatal", `{"urlIds":`, 0},
		{"wrong type is empty", `{"urlIds":"a"}`, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseRules("recX", tc.raw); len(got) != tc.want {
				t.Errorf("parseRules(%q) = %v, want %d ids", tc.raw, got, tc.want)
			}
		})
	}
}
