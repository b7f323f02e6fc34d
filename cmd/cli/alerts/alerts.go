package alerts

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/exiscale/urlhealth/cmd/cli/output"
	"github.com/exiscale/urlhealth/internal/config"
	"github.com/exiscale/urlhealth/internal/store"
)

// Init registers the alerts command tree on the root command.
func Init(rootCmd *cobra.Command) {
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Inspect and acknowledge detection alerts",
	}

	alertsCmd.AddCommand(listCmd(), ackCmd())

	rootCmd.AddCommand(alertsCmd)
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List unacknowledged detection alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := alertRepo()
			if err != nil {
				return err
			}

			items, err := repo.ListUnacknowledged(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing alerts: %w", err)
			}

			rows := make([][]interface{}, 0, len(items))
			for _, a := range items {
				lastAlerted := "-"
				if a.LastAlerted != nil {
					lastAlerted = a.LastAlerted.UTC().Format(time.RFC3339)
				}
				rows = append(rows, []interface{}{
					a.ID, a.URLID(), a.EngineName,
					a.FirstDetected.UTC().Format(time.RFC3339),
					lastAlerted, a.AlertCount,
				})
			}

			output.RenderTable(
				[]string{"ID", "URL Record", "Engine", "First Detected", "Last Alerted", "Notified"},
				rows,
			)
			return nil
		},
	}
}

func ackCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "ack",
		Short: "Acknowledge an alert so it stops notifying",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := alertRepo()
			if err != nil {
				return err
			}

			if err := repo.Acknowledge(cmd.Context(), id); err != nil {
				return fmt.Errorf("acknowledging alert %s: %w", id, err)
			}

			fmt.Println("Alert acknowledged.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&id, "id", "i", "", "Alert record ID (required)")
	cmd.MarkFlagRequired("id")

	return cmd
}

func alertRepo() (*store.AlertRepo, error) {
	cfg := config.Load()
	if cfg.StoreBaseID == "" || cfg.StoreAPIKey == "" {
		return nil, fmt.Errorf("record store not configured, set STORE_BASE_ID and STORE_API_KEY")
	}
	return store.NewAlertRepo(store.NewClient(cfg.StoreBaseURL, cfg.StoreBaseID, cfg.StoreAPIKey)), nil
}
