package store

import (
	"context"

	"github.com/exiscale/urlhealth/internal/models"
)

// URLRepo reads registered URL records.
type URLRepo struct {
	Client *Client
}

func NewURLRepo(c *Client) *URLRepo {
	return &URLRepo{Client: c}
}

// GetByID returns one URL record, or nil when it does not exist.
func (r *URLRepo) GetByID(ctx context.Context, id string) (*models.URL, error) {
	rec, err := r.Client.Get(ctx, TableURLs, id)
	if err != nil || rec == nil {
		return nil, err
	}
	u := decodeURL(*rec)
	return &u, nil
}

// ListAll returns every URL record keyed by id, for batch lookup during a
// tick (one request instead of one per target).
func (r *URLRepo) ListAll(ctx context.Context) (map[string]models.URL, error) {
	recs, err := r.Client.List(ctx, TableURLs, "")
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.URL, len(recs))
	for _, rec := range recs {
		out[rec.ID] = decodeURL(rec)
	}
	return out, nil
}

func decodeURL(rec Record) models.URL {
	return models.URL{
		ID:         rec.ID,
		URL:        fieldStr(rec, fldURL),
		AccountIDs: fieldIDList(rec, fldAccount),
	}
}
