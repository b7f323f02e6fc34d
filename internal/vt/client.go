// Package vt drives the external scanner's submit/poll/result protocol for
// one URL at a time and owns the timeout and verdict policy.
package vt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel scan failures. Neither is fatal to a scheduler tick: the
// orchestrator logs them per URL and moves on.
var (
	// ErrSubmitFailed means the URL could not be submitted for analysis.
	ErrSubmitFailed = errors.New("scan submit failed")
	// ErrTimeout means polling exhausted its attempts before the analysis
	// completed.
	ErrTimeout = errors.New("scan timed out")
)

// Options configures a Client. Zero values take the documented defaults.
type Options struct {
	BaseURL         string        // API root, default https://www.virustotal.com/api/v3
	APIKey          string
	PollInterval    time.Duration // delay between polls, default 5s
	MaxPollAttempts int           // poll loop bound, default 20
	CacheMaxAge     time.Duration // freshness window for cached reports, default 24h
	Weights         *WeightTable  // nil means the built-in table
}

// Client scans URLs against the external scanner.
type Client struct {
	baseURL         string
	apiKey          string
	http            *http.Client
	pollInterval    time.Duration
	maxPollAttempts int
	cacheMaxAge     time.Duration
	weights         *WeightTable

	// injectable for tests so the poll loop never sleeps for real
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.virustotal.com/api/v3"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.MaxPollAttempts <= 0 {
		opts.MaxPollAttempts = 20
	}
	if opts.CacheMaxAge <= 0 {
		opts.CacheMaxAge = 24 * time.Hour
	}
	if opts.Weights == nil {
		opts.Weights = NewWeightTable(nil)
	}
	return &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		apiKey:          opts.APIKey,
		http:            &http.Client{Timeout: 30 * time.Second},
		pollInterval:    opts.PollInterval,
		maxPollAttempts: opts.MaxPollAttempts,
		cacheMaxAge:     opts.CacheMaxAge,
		weights:         opts.Weights,
		now:             time.Now,
		sleep:           sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NormalizeURL prepends the default scheme when the input has none.
func NormalizeURL(u string) string {
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return "https://" + u
	}
	return u
}

// urlIdentifier is the scanner's id for a URL: unpadded URL-safe base64.
func urlIdentifier(u string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(u))
}

type analysisAttrs struct {
	Status  string                  `json:"status"`
	Stats   map[string]int          `json:"stats"`
	Results map[string]engineResult `json:"results"`
	Date    int64                   `json:"date"`
}

type urlObjectAttrs struct {
	LastAnalysisDate    int64                   `json:"last_analysis_date"`
	LastAnalysisStats   map[string]int          `json:"last_analysis_stats"`
	LastAnalysisResults map[string]engineResult `json:"last_analysis_results"`
}

// Scan runs the full protocol for one URL: normalize, prefer a fresh cached
// report, otherwise submit and poll until completion. A nil error means a
// completed ScanResult; errors wrap ErrSubmitFailed or ErrTimeout.
func (c *Client) Scan(ctx context.Context, rawURL string) (*ScanResult, error) {
	target := NormalizeURL(rawURL)
	id := urlIdentifier(target)

	if res := c.tryCached(ctx, target, id); res != nil {
		return res, nil
	}

	analysisID, err := c.submit(ctx, target, id)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
		attrs, raw, err := c.fetchAnalysis(ctx, analysisID)
		if err != nil {
			return nil, err
		}
		if attrs.Status == "completed" {
			date := time.Unix(attrs.Date, 0).UTC()
			if attrs.Date == 0 {
				date = c.now().UTC()
			}
			return buildResult(target, attrs.Stats, attrs.Results, date, raw, c.weights), nil
		}
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrTimeout, c.maxPollAttempts)
}

// tryCached returns a result built from the scanner's stored report when it
// is younger than the freshness window, else nil. Cache misses are silent;
// a fresh scan follows.
func (c *Client) tryCached(ctx context.Context, target, id string) *ScanResult {
	body, status, err := c.get(ctx, c.baseURL+"/urls/"+id)
	if err != nil || status != http.StatusOK {
		return nil
	}
	var resp struct {
		Data struct {
			Attributes urlObjectAttrs `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	attrs := resp.Data.Attributes
	if attrs.LastAnalysisDate == 0 {
		return nil
	}
	scanned := time.Unix(attrs.LastAnalysisDate, 0).UTC()
	if c.now().UTC().Sub(scanned) >= c.cacheMaxAge {
		return nil
	}
	return buildResult(target, attrs.LastAnalysisStats, attrs.LastAnalysisResults, scanned, body, c.weights)
}

// submit requests an analysis, preferring the rescan endpoint for URLs the
// scanner already knows and falling back to a first submission on 404.
func (c *Client) submit(ctx context.Context, target, id string) (string, error) {
	body, status, err := c.post(ctx, c.baseURL+"/urls/"+id+"/analyse", "", "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	if status == http.StatusNotFound {
		form := "url=" + url.QueryEscape(target)
		body, status, err = c.post(ctx, c.baseURL+"/urls", form, "application/x-www-form-urlencoded")
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
		}
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrSubmitFailed, status)
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Data.ID == "" {
		return "", fmt.Errorf("%w: no analysis id in response", ErrSubmitFailed)
	}
	return resp.Data.ID, nil
}

func (c *Client) fetchAnalysis(ctx context.Context, analysisID string) (*analysisAttrs, json.RawMessage, error) {
	body, status, err := c.get(ctx, c.baseURL+"/analyses/"+analysisID)
	if err != nil {
		return nil, nil, err
	}
	if status != http.StatusOK {
		return nil, nil, fmt.Errorf("analysis status %d", status)
	}
	var resp struct {
		Data struct {
			Attributes analysisAttrs `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &resp.Data.Attributes, body, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	return c.send(req)
}

func (c *Client) post(ctx context.Context, u, body, contentType string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.send(req)
}

func (c *Client) send(req *http.Request) ([]byte, int, error) {
	req.Header.Set("x-apikey", c.apiKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}
