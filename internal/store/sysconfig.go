package store

import "context"

// SystemConfigRepo loads the key/value SystemConfig collection. Loaded once
// at startup and merged into the immutable process config; never re-read
// while running.
type SystemConfigRepo struct {
	Client *Client
}

func NewSystemConfigRepo(c *Client) *SystemConfigRepo {
	return &SystemConfigRepo{Client: c}
}

// Load returns all config_key/config_value pairs.
func (r *SystemConfigRepo) Load(ctx context.Context) (map[string]string, error) {
	recs, err := r.Client.List(ctx, TableSystemConfig, "")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(recs))
	for _, rec := range recs {
		key := fieldStr(rec, fldConfigKey)
		if key == "" {
			continue
		}
		out[key] = fieldStr(rec, fldConfigValue)
	}
	return out, nil
}
