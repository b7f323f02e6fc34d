package vt

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/exiscale/urlhealth/internal/models"
)

// maliciousThreshold is the verdict policy: a URL is malicious when at
// least this many engines categorize it malicious. Any other non-zero
// detection count is suspicious. Alternative policies seen in the wild
// (any malicious engine, or total detections >= 5) are deliberately not
// blended in.
const maliciousThreshold = 3

// ScanResult is the outcome of one completed scan.
type ScanResult struct {
	URL                string          `json:"url"`
	Verdict            models.Verdict  `json:"verdict"`
	VerdictExplanation string          `json:"verdict_explanation"`
	Detections         int             `json:"detections"`
	TotalEngines       int             `json:"total_engines"`
	MaliciousEngines   []string        `json:"malicious_engines"`
	SuspiciousEngines  []string        `json:"suspicious_engines"`
	FlaggedByAdVendors []string        `json:"flagged_by_ad_vendors"`
	AdRiskScore        int             `json:"ad_risk_score"`
	AdImpactRisk       string          `json:"ad_impact_risk"`
	ScanDate           time.Time       `json:"last_scan_date"`
	Raw                json.RawMessage `json:"full_response,omitempty"`
}

// HasAdImpact reports whether any ad-relevant vendor flagged the URL.
func (r *ScanResult) HasAdImpact() bool {
	return r.AdImpactRisk != RiskSafe
}

type engineResult struct {
	Category   string `json:"category"`
	EngineName string `json:"engine_name"`
	Result     string `json:"result"`
}

// buildResult classifies stats and per-engine results into a ScanResult.
func buildResult(u string, stats map[string]int, results map[string]engineResult, date time.Time, raw json.RawMessage, weights *WeightTable) *ScanResult {
	malicious := stats["malicious"]
	suspicious := stats["suspicious"]
	detections := malicious + suspicious

	total := 0
	for _, n := range stats {
		total += n
	}

	verdict := models.VerdictClean
	switch {
	case malicious >= maliciousThreshold:
		verdict = models.VerdictMalicious
	case detections > 0:
		verdict = models.VerdictSuspicious
	}

	var maliciousEngines, suspiciousEngines []string
	for engine, res := range results {
		switch res.Category {
		case "malicious":
			maliciousEngines = append(maliciousEngines, engine)
		case "suspicious":
			suspiciousEngines = append(suspiciousEngines, engine)
		}
	}
	sort.Strings(maliciousEngines)
	sort.Strings(suspiciousEngines)

	score := 0
	var flagged []string
	for _, engine := range maliciousEngines {
		if w, ok := weights.Match(engine); ok {
			score += w
			flagged = append(flagged, engine)
		}
	}

	return &ScanResult{
		URL:                u,
		Verdict:            verdict,
		VerdictExplanation: explainVerdict(verdict),
		Detections:         detections,
		TotalEngines:       total,
		MaliciousEngines:   maliciousEngines,
		SuspiciousEngines:  suspiciousEngines,
		FlaggedByAdVendors: flagged,
		AdRiskScore:        score,
		AdImpactRisk:       Tier(score),
		ScanDate:           date,
		Raw:                raw,
	}
}

func explainVerdict(v models.Verdict) string {
	switch v {
	case models.VerdictClean:
		return "No vendors flagged this URL."
	case models.VerdictSuspicious:
		return "A few vendors flagged this as suspicious."
	case models.VerdictMalicious:
		return "Multiple vendors detected malware or phishing behavior."
	default:
		return ""
	}
}
