package schedules

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/exiscale/urlhealth/cmd/cli/output"
	"github.com/exiscale/urlhealth/internal/config"
	"github.com/exiscale/urlhealth/internal/schedule"
	"github.com/exiscale/urlhealth/internal/store"
)

// Init registers the schedules command tree on the root command.
func Init(rootCmd *cobra.Command) {
	schedulesCmd := &cobra.Command{
		Use:   "schedules",
		Short: "Inspect scan schedules",
	}

	schedulesCmd.AddCommand(listCmd())

	rootCmd.AddCommand(schedulesCmd)
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scan schedules from the record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := scheduleRepo()
			if err != nil {
				return err
			}

			items, err := repo.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing schedules: %w", err)
			}

			now := time.Now().UTC()
			rows := make([][]interface{}, 0, len(items))
			for _, s := range items {
				lastScan := "never"
				if s.LastScan != nil {
					lastScan = s.LastScan.UTC().Format(time.RFC3339)
				}
				nextRun := "-"
				if s.Enabled {
					nextRun = schedule.NextRun(s, now).Format(time.RFC3339)
				}
				rows = append(rows, []interface{}{
					s.ID, s.Name, string(s.Frequency), s.Enabled,
					len(s.URLIDs), lastScan, nextRun,
				})
			}

			output.RenderTable(
				[]string{"ID", "Name", "Frequency", "Enabled", "URLs", "Last Scan", "Next Run"},
				rows,
			)
			return nil
		},
	}
}

func scheduleRepo() (*store.ScheduleRepo, error) {
	cfg := config.Load()
	if cfg.StoreBaseID == "" || cfg.StoreAPIKey == "" {
		return nil, fmt.Errorf("record store not configured, set STORE_BASE_ID and STORE_API_KEY")
	}
	return store.NewScheduleRepo(store.NewClient(cfg.StoreBaseURL, cfg.StoreBaseID, cfg.StoreAPIKey)), nil
}
