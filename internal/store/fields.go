package store

import (
	"strings"
	"time"
)

// Collection names. The store addresses collections by name; older revisions
// of the base mixed names and opaque table ids, so the mapping is pinned
// here once and nowhere else.
const (
	TableAccounts     = "Accounts"
	TableURLs         = "URLs"
	TableSchedules    = "Schedules"
	TableScanLogs     = "ScanLogs"
	TableAlerts       = "DetectionAlerts"
	TableSystemConfig = "SystemConfig"
)

// Field names per collection.
const (
	fldName          = "name"
	fldEnabled       = "enabled"
	fldFrequency     = "frequency"
	fldScheduledTime = "scheduled_time"
	fldScheduledDay  = "scheduled_day"
	fldScheduledDate = "scheduled_date"
	fldRules         = "rules"
	fldLastScan      = "last_scan"
	fldAccount       = "account"

	fldURL = "url"

	fldScanID        = "scan_id"
	fldScannedBy     = "scaneed_by" // typo preserved from the live base schema
	fldScanTimestamp = "scan_timestamp"
	fldStatus        = "status"
	fldDetections    = "detections"
	fldAdRiskScore   = "ad_risk_score"
	fldResultJSON    = "result_json"

	fldEngineName    = "engine_name"
	fldFirstDetected = "first_detected"
	fldLastAlerted   = "last_alerted"
	fldAcknowledged  = "acknowledged"
	fldAlertCount    = "alert_count"

	fldAlertEmails     = "alert_emails"
	fldTelegramChatIDs = "telegram_chat_ids"
	fldAlertFreqHours  = "alert_frequency_hours"

	fldConfigKey   = "config_key"
	fldConfigValue = "config_value"
)

func fieldStr(r Record, name string) string {
	if v, ok := r.Fields[name].(string); ok {
		return v
	}
	return ""
}

func fieldBool(r Record, name string) bool {
	if v, ok := r.Fields[name].(bool); ok {
		return v
	}
	return false
}

func fieldInt(r Record, name string) int {
	// JSON numbers decode as float64.
	if v, ok := r.Fields[name].(float64); ok {
		return int(v)
	}
	return 0
}

// fieldIDList decodes a linked-record field: a list of record ids.
func fieldIDList(r Record, name string) []string {
	raw, ok := r.Fields[name].([]any)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids
}

func fieldTime(r Record, name string) *time.Time {
	s := fieldStr(r, name)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// contains reports list-containment of a record id in a linked field's ids.
func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// splitContacts parses a comma or newline separated contact list.
func splitContacts(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if v := strings.TrimSpace(f); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// escapeFormulaStr escapes a value for interpolation into a store formula
// string literal.
func escapeFormulaStr(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
