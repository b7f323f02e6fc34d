// Package store is the adapter for the external record store: a document
// store of named collections holding typed records addressed by opaque ids,
// reached over HTTP. All field addressing lives in fields.go so business
// logic never touches raw field names.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Record is one raw store record.
type Record struct {
	ID          string         `json:"id"`
	Fields      map[string]any `json:"fields"`
	CreatedTime time.Time      `json:"createdTime,omitempty"`
}

// APIError is a non-2xx response from the record store.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("record store: status %d: %s", e.Status, e.Body)
}

// Client talks to one base of the record store.
type Client struct {
	baseURL string
	baseID  string
	apiKey  string
	http    *http.Client
}

// NewClient returns a client for the given base. baseURL is the API root
// without a trailing slash (e.g. "https://api.airtable.com/v0").
func NewClient(baseURL, baseID, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		baseID:  baseID,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) tableURL(table, recordID string) string {
	u := c.baseURL + "/" + c.baseID + "/" + url.PathEscape(table)
	if recordID != "" {
		u += "/" + recordID
	}
	return u
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// List returns all records of a collection, following pagination. filter is
// an optional store-side formula; pass "" for no filter. Linked-record
// membership is not reliably expressible in the formula language, so callers
// needing it fetch with a coarse filter and post-filter client-side.
func (c *Client) List(ctx context.Context, table, filter string) ([]Record, error) {
	var all []Record
	offset := ""
	for {
		q := url.Values{}
		q.Set("pageSize", strconv.Itoa(100))
		if filter != "" {
			q.Set("filterByFormula", filter)
		}
		if offset != "" {
			q.Set("offset", offset)
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, c.tableURL(table, "")+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Records...)
		if page.Offset == "" {
			return all, nil
		}
		offset = page.Offset
	}
}

// Get fetches one record by id. Returns nil when the record does not exist.
func (c *Client) Get(ctx context.Context, table, recordID string) (*Record, error) {
	var rec Record
	err := c.do(ctx, http.MethodGet, c.tableURL(table, recordID), nil, &rec)
	if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts one record with the given fields and returns it with the id
// set. The write is a single request; the store never sees a partial record.
func (c *Client) Create(ctx context.Context, table string, fields map[string]any) (*Record, error) {
	var rec Record
	body := map[string]any{"fields": fields}
	if err := c.do(ctx, http.MethodPost, c.tableURL(table, ""), body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Patch updates the given fields of one record, leaving the rest untouched.
func (c *Client) Patch(ctx context.Context, table, recordID string, fields map[string]any) (*Record, error) {
	var rec Record
	body := map[string]any{"fields": fields}
	if err := c.do(ctx, http.MethodPatch, c.tableURL(table, recordID), body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("record store request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("record store read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("record store decode: %w", err)
		}
	}
	return nil
}
