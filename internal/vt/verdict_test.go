package vt

import (
	"testing"
	"time"

	"github.com/exiscale/urlhealth/internal/models"
)

func TestBuildResult_CleanWhenNothingFlagged(t *testing.T) {
	res := buildResult("https://example.com", map[string]int{"harmless": 70, "undetected": 5},
		nil, time.Now(), nil, NewWeightTable(nil))

	if res.Verdict != models.VerdictClean {
		t.Errorf("verdict = %q, want clean", res.Verdict)
	}
	if res.Detections != 0 || res.TotalEngines != 75 {
		t.Errorf("detections/total = %d/%d, want 0/75", res.Detections, res.TotalEngines)
	}
	if res.HasAdImpact() {
		t.Error("clean result reports ad impact")
	}
	if res.VerdictExplanation == "" {
		t.Error("missing verdict explanation")
	}
}

// The malicious verdict requires at least three malicious engines; any other
// non-zero detection count is suspicious. This pins the chosen policy against
// the "any malicious engine" and "total detections >= 5" alternatives.
func TestBuildResult_VerdictThreshold(t *testing.T) {
	tests := []struct {
		malicious, suspicious int
		want                  models.Verdict
	}{
		{0, 0, models.VerdictClean},
		{0, 6, models.VerdictSuspicious}, // 6 total but no malicious engines
		{1, 0, models.VerdictSuspicious},
		{2, 2, models.VerdictSuspicious},
		{3, 0, models.VerdictMalicious},
		{4, 0, models.VerdictMalicious},
	}
	for _, tc := range tests {
		stats := map[string]int{"malicious": tc.malicious, "suspicious": tc.suspicious, "harmless": 60}
		res := buildResult("https://example.com", stats, nil, time.Now(), nil, NewWeightTable(nil))
		if res.Verdict != tc.want {
			t.Errorf("malicious=%d suspicious=%d: verdict = %q, want %q",
				tc.malicious, tc.suspicious, res.Verdict, tc.want)
		}
		if res.Detections != tc.malicious+tc.suspicious {
			t.Errorf("detections = %d, want %d", res.Detections, tc.malicious+tc.suspicious)
		}
	}
}

func TestBuildResult_OnlyMaliciousEnginesScoreAdRisk(t *testing.T) {
	results := map[string]engineResult{
		"Fortinet": {Category: "suspicious", EngineName: "Fortinet"},
		"CRDF":     {Category: "malicious", EngineName: "CRDF"},
	}
	res := buildResult("https://example.com", map[string]int{"malicious": 1, "suspicious": 1},
		results, time.Now(), nil, NewWeightTable(nil))

	// Fortinet only flagged suspicious, so CRDF's weight stands alone.
	if res.AdRiskScore != 5 {
		t.Errorf("ad risk score = %d, want 5", res.AdRiskScore)
	}
	if len(res.FlaggedByAdVendors) != 1 || res.FlaggedByAdVendors[0] != "CRDF" {
		t.Errorf("flagged vendors = %v, want [CRDF]", res.FlaggedByAdVendors)
	}
	if res.AdImpactRisk != RiskReview {
		t.Errorf("ad impact = %q, want %q", res.AdImpactRisk, RiskReview)
	}
	if !res.HasAdImpact() {
		t.Error("flagged result reports no ad impact")
	}
}
