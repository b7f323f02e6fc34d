package scan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/exiscale/urlhealth/cmd/cli/config"
	"github.com/exiscale/urlhealth/cmd/cli/output"
)

// scanResult mirrors the API scan response.
type scanResult struct {
	URL                string   `json:"url"`
	Verdict            string   `json:"verdict"`
	VerdictExplanation string   `json:"verdict_explanation"`
	Detections         int      `json:"detections"`
	TotalEngines       int      `json:"total_engines"`
	MaliciousEngines   []string `json:"malicious_engines"`
	AdRiskScore        int      `json:"ad_risk_score"`
	AdImpactRisk       string   `json:"ad_impact_risk"`
}

// Init registers the scan command tree on the root command.
func Init(rootCmd *cobra.Command) {
	scanCmd := scanCmd()
	scanCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(scanCmd)
}

func scanCmd() *cobra.Command {
	var rawJSON bool

	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan one URL now",
		Long: `Run an immediate scan of a single URL through the scheduler API.

Example:
  urlhealth scan https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := postJSON("/api/scan", map[string]string{"url": args[0]})
			if err != nil {
				return err
			}
			if rawJSON {
				fmt.Println(string(body))
				return nil
			}

			var res scanResult
			if err := json.Unmarshal(body, &res); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			renderResults([]scanResult{res})
			return nil
		},
	}

	cmd.Flags().BoolVarP(&rawJSON, "json", "j", false, "Output raw JSON instead of a table")

	return cmd
}

func batchCmd() *cobra.Command {
	var rawJSON bool

	cmd := &cobra.Command{
		Use:   "batch <url>...",
		Short: "Scan several URLs in one request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := postJSON("/api/scan-batch", map[string]any{"urls": args})
			if err != nil {
				return err
			}
			if rawJSON {
				fmt.Println(string(body))
				return nil
			}

			var res struct {
				Results []scanResult `json:"results"`
			}
			if err := json.Unmarshal(body, &res); err != nil {
				return fmt.Errorf("decoding response: %w", err)
			}
			renderResults(res.Results)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&rawJSON, "json", "j", false, "Output raw JSON instead of a table")

	return cmd
}

func renderResults(results []scanResult) {
	rows := make([][]interface{}, 0, len(results))
	for _, r := range results {
		rows = append(rows, []interface{}{
			r.URL,
			r.Verdict,
			fmt.Sprintf("%d/%d", r.Detections, r.TotalEngines),
			r.AdImpactRisk,
			strings.Join(r.MaliciousEngines, ", "),
		})
	}
	output.RenderTable([]string{"URL", "Verdict", "Detections", "Ad Risk", "Malicious Engines"}, rows)
}

func postJSON(path string, payload any) ([]byte, error) {
	token, err := config.ReadToken()
	if err != nil {
		return nil, fmt.Errorf("no API token found, run \"urlhealth token\" first")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", config.APIURL()+path, bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call API: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
