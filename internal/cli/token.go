package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"trivia-quiz-service/internal/auth"
)

// NewTokenCmd mints a bearer token for the mutation endpoints.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 bearer token with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, "")
			if err != nil {
				return err
			}
			a, err := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			token, err := a.Mint(subject, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
