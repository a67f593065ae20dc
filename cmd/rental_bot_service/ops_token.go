package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aradsms/rental_bot/internal/platform/config"
	httpadapter "github.com/aradsms/rental_bot/internal/rental_service/adapters/http"
)

func newOpsTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ops-token",
		Short: "Mint a bearer token for the ops HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(serviceName, opts.ConfigDir)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.OpsJWTSecret == "" {
				return errors.New("OPS_JWT_SECRET is not set; the ops API is unauthenticated")
			}
			token, err := httpadapter.IssueOpsToken([]byte(cfg.OpsJWTSecret), subject, ttl, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "operator name recorded in the token (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
