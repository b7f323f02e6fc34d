package token

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/exiscale/urlhealth/cmd/cli/config"
)

// Init registers the token command on the root command.
func Init(rootCmd *cobra.Command) {
	var hours int

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token",
		Long: `Mint an HS256 JWT signed with JWT_SECRET and store it locally.
The scheduler API must be configured with the same secret.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}

			now := time.Now()
			t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": "urlhealth-cli",
				"iat": now.Unix(),
				"exp": now.Add(time.Duration(hours) * time.Hour).Unix(),
			})
			signed, err := t.SignedString([]byte(secret))
			if err != nil {
				return err
			}

			if err := config.SaveToken(signed); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			fmt.Println("Token minted and stored locally.")
			return nil
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 72, "Token lifetime in hours")

	rootCmd.AddCommand(cmd)
}
