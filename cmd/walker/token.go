package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/waypointwalk/waypointwalk/internal/auth"
)

func tokenCmd() *cobra.Command {
	var (
		subject    string
		signingKey string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for catalog writes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if signingKey == "" {
				return errors.New("--signing-key or JWT_SIGNING_KEY is required")
			}

			jwtService := auth.NewJWTService(auth.JWTConfig{
				SigningKey: signingKey,
				TTL:        ttl,
			})
			token, expiresAt, err := jwtService.Issue(subject, auth.RoleOperator)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject")
	cmd.Flags().StringVar(&signingKey, "signing-key", os.Getenv("JWT_SIGNING_KEY"), "HS256 signing key")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
