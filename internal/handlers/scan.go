package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/exiscale/urlhealth/internal/metrics"
	"github.com/exiscale/urlhealth/internal/models"
	"github.com/exiscale/urlhealth/internal/vt"
)

// Scanner drives one URL scan. *vt.Client satisfies it.
type Scanner interface {
	Scan(ctx context.Context, url string) (*vt.ScanResult, error)
}

// ScanLogStore appends scan results. *store.ScanLogRepo satisfies it.
type ScanLogStore interface {
	Create(ctx context.Context, l models.ScanLog) (*models.ScanLog, error)
}

// ScanHandler serves on-demand scans. These are pass-through wrappers around
// the scan client; the scheduling loop does not go through here.
type ScanHandler struct {
	Scanner  Scanner
	ScanLogs ScanLogStore
}

// maxBatchSize caps one batch request; each URL costs an external scan.
const maxBatchSize = 25

// StartScan scans a single URL immediately.
// Body: {"url": "...", "url_id": "...", "account_id": "..."}; the record ids
// are optional and only control whether the result is persisted.
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	var input struct {
		URL       string `json:"url"`
		URLID     string `json:"url_id"`
		AccountID string `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.URL == "" {
		JSONError(w, "invalid JSON or missing url", http.StatusBadRequest)
		return
	}

	result, err := h.Scanner.Scan(r.Context(), input.URL)
	if err != nil {
		slog.Warn("on-demand scan failed", "url", input.URL, "err", err)
		metrics.RecordScan(string(models.VerdictError))
		JSONError(w, "scan failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	metrics.RecordScan(string(result.Verdict))

	h.persist(r.Context(), input.URLID, input.AccountID, result)
	writeJSON(w, result)
}

// batchItem accepts either a bare URL string or {"url": "...", "url_id": "..."}.
type batchItem struct {
	URL   string `json:"url"`
	URLID string `json:"url_id"`
}

func (b *batchItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.URL = s
		return nil
	}
	type plain batchItem
	return json.Unmarshal(data, (*plain)(b))
}

// StartBatchScan scans a list of URLs sequentially and returns all results.
// Body: {"urls": [...], "account_id": "..."}.
func (h *ScanHandler) StartBatchScan(w http.ResponseWriter, r *http.Request) {
	var input struct {
		URLs      []batchItem `json:"urls"`
		AccountID string      `json:"account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || len(input.URLs) == 0 {
		JSONError(w, "invalid JSON or missing urls", http.StatusBadRequest)
		return
	}
	if len(input.URLs) > maxBatchSize {
		JSONError(w, "too many urls in one batch", http.StatusBadRequest)
		return
	}

	results := make([]*vt.ScanResult, 0, len(input.URLs))
	for _, item := range input.URLs {
		if item.URL == "" {
			continue
		}
		result, err := h.Scanner.Scan(r.Context(), item.URL)
		if err != nil {
			slog.Warn("batch scan item failed", "url", item.URL, "err", err)
			metrics.RecordScan(string(models.VerdictError))
			results = append(results, &vt.ScanResult{
				URL:                item.URL,
				Verdict:            models.VerdictError,
				VerdictExplanation: err.Error(),
			})
			continue
		}
		metrics.RecordScan(string(result.Verdict))
		h.persist(r.Context(), item.URLID, input.AccountID, result)
		results = append(results, result)
	}

	writeJSON(w, map[string]any{"results": results})
}

// persist saves one scan log when both record ids are present. Best-effort:
// an on-demand scan still returns its result if the write fails.
func (h *ScanHandler) persist(ctx context.Context, urlID, accountID string, result *vt.ScanResult) {
	if urlID == "" || accountID == "" {
		return
	}
	log := models.ScanLog{
		ScanID:           "scan_" + uuid.NewString(),
		URLIDs:           []string{urlID},
		AccountIDs:       []string{accountID},
		Timestamp:        time.Now().UTC(),
		Verdict:          result.Verdict,
		Detections:       result.Detections,
		AdRiskScore:      result.AdRiskScore,
		MaliciousEngines: result.MaliciousEngines,
		ResultJSON:       string(result.Raw),
	}
	if _, err := h.ScanLogs.Create(ctx, log); err != nil {
		slog.Warn("persist on-demand scan failed", "url_id", urlID, "err", err)
	}
}
