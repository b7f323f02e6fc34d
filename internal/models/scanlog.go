package models

import "time"

// Verdict classifies a scan result.
type Verdict string

const (
	VerdictClean      Verdict = "clean"
	VerdictSuspicious Verdict = "suspicious"
	VerdictMalicious  Verdict = "malicious"
	VerdictError      Verdict = "error"
)

// ScanLog is one immutable scan result record. ScanLogs are append-only
// history per URL; nothing updates them after creation.
type ScanLog struct {
	ID          string    `json:"id"`
	ScanID      string    `json:"scan_id"`
	URLIDs      []string  `json:"url_ids"`
	AccountIDs  []string  `json:"account_ids"`
	Timestamp   time.Time `json:"scan_timestamp"`
	Verdict     Verdict   `json:"status"`
	Detections  int       `json:"detections"`
	AdRiskScore int       `json:"ad_risk_score"`
	// MaliciousEngines are the engine names that flagged the URL malicious.
	MaliciousEngines []string `json:"malicious_engines,omitempty"`
	// ResultJSON is the raw scanner payload, stored opaque.
	ResultJSON string `json:"result_json,omitempty"`
}
