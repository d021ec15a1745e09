package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/clipper/clipper-server/internal/config"
	"github.com/clipper/clipper-server/internal/identity"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Sign a session token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return fmt.Errorf("failed to read .env: %w", err)
		}
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		verifier := identity.NewVerifier(cfg.SessionSecret(), cfg.SessionIssuer())
		token, err := verifier.Issue(args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
}
