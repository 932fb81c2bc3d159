package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/velibadvisor/velibadvisor/internal/auth"
)

func newTokenCmd(c *cli) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token for the admin endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.Auth.SigningKey == "" {
				return errors.New("no signing key configured (auth.signing_key or VELIB_AUTH__SIGNING_KEY)")
			}

			jwtCfg := c.cfg.Auth
			if ttl > 0 {
				jwtCfg.Expiry = ttl
			}
			token, expiresAt, err := auth.NewJWTService(jwtCfg).Issue(subject)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "operator the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from config)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
