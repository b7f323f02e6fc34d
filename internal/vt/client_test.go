package vt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/exiscale/urlhealth/internal/models"
)

// fakeScanner is an httptest stand-in for the scanner API. Handlers are
// swapped per test.
type fakeScanner struct {
	srv *httptest.Server

	cachedStatus  int
	cachedBody    any
	analyseStatus int
	submitCalls   atomic.Int32
	formSubmits   atomic.Int32
	pollsToFinish int32
	polls         atomic.Int32
	finalStats    map[string]int
	finalResults  map[string]engineResult
	lastAPIKey    atomic.Value
}

func newFakeScanner(t *testing.T) *fakeScanner {
	t.Helper()
	f := &fakeScanner{
		cachedStatus:  http.StatusNotFound,
		analyseStatus: http.StatusOK,
		pollsToFinish: 1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /urls/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.lastAPIKey.Store(r.Header.Get("x-apikey"))
		w.WriteHeader(f.cachedStatus)
		if f.cachedBody != nil {
			json.NewEncoder(w).Encode(f.cachedBody)
		}
	})
	mux.HandleFunc("POST /urls/{id}/analyse", func(w http.ResponseWriter, r *http.Request) {
		f.submitCalls.Add(1)
		if f.analyseStatus != http.StatusOK {
			w.WriteHeader(f.analyseStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"id": "an1"}})
	})
	mux.HandleFunc("POST /urls", func(w http.ResponseWriter, r *http.Request) {
		f.formSubmits.Add(1)
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("form submit content type = %q", ct)
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("url") == "" {
			t.Errorf("form submit missing url field: %v", r.PostForm)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"id": "an1"}})
	})
	mux.HandleFunc("GET /analyses/an1", func(w http.ResponseWriter, r *http.Request) {
		n := f.polls.Add(1)
		attrs := map[string]any{"status": "queued"}
		if n >= f.pollsToFinish {
			attrs = map[string]any{
				"status":  "completed",
				"stats":   f.finalStats,
				"results": f.finalResults,
				"date":    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC).Unix(),
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"attributes": attrs}})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// client returns a Client against the fake with sleeps stubbed out.
func (f *fakeScanner) client(opts Options) (*Client, *int) {
	opts.BaseURL = f.srv.URL
	if opts.APIKey == "" {
		opts.APIKey = "test-key"
	}
	c := NewClient(opts)
	sleeps := 0
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return ctx.Err()
	}
	c.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return c, &sleeps
}

func TestScan_SubmitPollComplete(t *testing.T) {
	f := newFakeScanner(t)
	f.pollsToFinish = 3
	f.finalStats = map[string]int{"malicious": 3, "suspicious": 1, "harmless": 60}
	f.finalResults = map[string]engineResult{
		"Fortinet":   {Category: "malicious", EngineName: "Fortinet", Result: "phishing"},
		"Kaspersky":  {Category: "malicious", EngineName: "Kaspersky", Result: "malware"},
		"CRDF":       {Category: "malicious", EngineName: "CRDF", Result: "malicious"},
		"Quttera":    {Category: "suspicious", EngineName: "Quttera", Result: "suspicious"},
		"Cloudflare": {Category: "harmless", EngineName: "Cloudflare", Result: "clean"},
	}

	c, sleeps := f.client(Options{})
	res, err := c.Scan(context.Background(), "example.com/landing")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if res.URL != "https://example.com/landing" {
		t.Errorf("url = %q, want scheme prepended", res.URL)
	}
	if res.Verdict != models.VerdictMalicious {
		t.Errorf("verdict = %q, want malicious (3 malicious engines)", res.Verdict)
	}
	if res.Detections != 4 {
		t.Errorf("detections = %d, want 4", res.Detections)
	}
	if res.TotalEngines != 64 {
		t.Errorf("total engines = %d, want 64", res.TotalEngines)
	}
	if want := []string{"CRDF", "Fortinet", "Kaspersky"}; fmt.Sprint(res.MaliciousEngines) != fmt.Sprint(want) {
		t.Errorf("malicious engines = %v, want %v sorted", res.MaliciousEngines, want)
	}
	// Fortinet 9 + Kaspersky 7 + CRDF 5 = 21, past the block threshold.
	if res.AdRiskScore != 21 || res.AdImpactRisk != RiskBlockRisk {
		t.Errorf("ad risk = %d/%s, want 21/%s", res.AdRiskScore, res.AdImpactRisk, RiskBlockRisk)
	}
	if *sleeps != 3 {
		t.Errorf("slept %d times before completion, want 3", *sleeps)
	}
	if got := f.submitCalls.Load(); got != 1 {
		t.Errorf("rescan submits = %d, want 1", got)
	}
	if len(res.Raw) == 0 {
		t.Error("raw response not retained")
	}
}

func TestScan_SuspiciousBelowMaliciousThreshold(t *testing.T) {
	f := newFakeScanner(t)
	f.finalStats = map[string]int{"malicious": 2, "suspicious": 0, "harmless": 70}
	f.finalResults = map[string]engineResult{
		"Fortinet": {Category: "malicious", EngineName: "Fortinet"},
		"CRDF":     {Category: "malicious", EngineName: "CRDF"},
	}

	c, _ := f.client(Options{})
	res, err := c.Scan(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Verdict != models.VerdictSuspicious {
		t.Errorf("verdict = %q, want suspicious (2 malicious engines is below the threshold)", res.Verdict)
	}
}

func TestScan_FreshCachedReportSkipsSubmit(t *testing.T) {
	f := newFakeScanner(t)
	f.cachedStatus = http.StatusOK
	f.cachedBody = map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				// One hour before the injected now.
				"last_analysis_date":  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC).Unix(),
				"last_analysis_stats": map[string]int{"harmless": 70},
				"last_analysis_results": map[string]engineResult{
					"Cloudflare": {Category: "harmless", EngineName: "Cloudflare"},
				},
			},
		},
	}

	c, sleeps := f.client(Options{})
	res, err := c.Scan(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Verdict != models.VerdictClean {
		t.Errorf("verdict = %q, want clean", res.Verdict)
	}
	if got := f.submitCalls.Load(); got != 0 {
		t.Errorf("fresh cached report still submitted %d times", got)
	}
	if *sleeps != 0 {
		t.Error("cached path slept")
	}
}

func TestScan_StaleCachedReportRescans(t *testing.T) {
	f := newFakeScanner(t)
	f.cachedStatus = http.StatusOK
	f.cachedBody = map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{
				// Two days old, past the 24h freshness window.
				"last_analysis_date":  time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC).Unix(),
				"last_analysis_stats": map[string]int{"harmless": 70},
			},
		},
	}
	f.finalStats = map[string]int{"harmless": 70}

	c, _ := f.client(Options{})
	if _, err := c.Scan(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := f.submitCalls.Load(); got != 1 {
		t.Errorf("stale cached report submitted %d times, want 1", got)
	}
}

func TestScan_UnknownURLFallsBackToFormSubmit(t *testing.T) {
	f := newFakeScanner(t)
	f.analyseStatus = http.StatusNotFound
	f.finalStats = map[string]int{"harmless": 70}

	c, _ := f.client(Options{})
	if _, err := c.Scan(context.Background(), "https://example.com/new"); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := f.formSubmits.Load(); got != 1 {
		t.Errorf("form submits = %d, want 1", got)
	}
}

func TestScan_SubmitFailure(t *testing.T) {
	f := newFakeScanner(t)
	f.analyseStatus = http.StatusTooManyRequests

	c, _ := f.client(Options{})
	_, err := c.Scan(context.Background(), "https://example.com")
	if !errors.Is(err, ErrSubmitFailed) {
		t.Errorf("err = %v, want ErrSubmitFailed", err)
	}
}

func TestScan_PollTimeout(t *testing.T) {
	f := newFakeScanner(t)
	f.pollsToFinish = 1000 // never completes

	c, sleeps := f.client(Options{MaxPollAttempts: 4})
	_, err := c.Scan(context.Background(), "https://example.com")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if *sleeps != 4 {
		t.Errorf("slept %d times, want 4 (one per attempt)", *sleeps)
	}
}

func TestScan_SendsAPIKey(t *testing.T) {
	f := newFakeScanner(t)
	f.finalStats = map[string]int{"harmless": 1}

	c, _ := f.client(Options{APIKey: "vt-secret"})
	if _, err := c.Scan(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got, _ := f.lastAPIKey.Load().(string); got != "vt-secret" {
		t.Errorf("x-apikey = %q, want vt-secret", got)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"example.com", "https://example.com"},
		{"http://example.com", "http://example.com"},
		{"https://example.com", "https://example.com"},
		{"ftp.example.com/file", "https://ftp.example.com/file"},
	}
	for _, tc := range tests {
		if got := NormalizeURL(tc.in); got != tc.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
