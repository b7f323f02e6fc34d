package store

import (
	"context"
	"time"

	"github.com/exiscale/urlhealth/internal/models"
)

// ScanLogRepo appends scan results. ScanLogs are append-only; there is no
// update or delete path.
type ScanLogRepo struct {
	Client *Client
}

func NewScanLogRepo(c *Client) *ScanLogRepo {
	return &ScanLogRepo{Client: c}
}

// Create persists one scan result as a single atomic store request.
func (r *ScanLogRepo) Create(ctx context.Context, l models.ScanLog) (*models.ScanLog, error) {
	fields := map[string]any{
		fldScanID:        l.ScanID,
		fldURL:           l.URLIDs,
		fldScanTimestamp: l.Timestamp.UTC().Format(time.RFC3339),
		fldStatus:        string(l.Verdict),
		fldDetections:    l.Detections,
		fldAdRiskScore:   l.AdRiskScore,
		fldResultJSON:    l.ResultJSON,
	}
	if len(l.AccountIDs) > 0 {
		fields[fldScannedBy] = l.AccountIDs
	}
	rec, err := r.Client.Create(ctx, TableScanLogs, fields)
	if err != nil {
		return nil, err
	}
	l.ID = rec.ID
	return &l, nil
}
