package cmd

import (
	"fmt"
	"time"

	"github.com/socialnet/socket/config"
	"github.com/socialnet/socket/src/auth"
	"github.com/spf13/cobra"
)

// newTokenCmd issues a session token the way the REST API's login does,
// for local testing against an enforcing server.
func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <userId>",
		Short: "Issue a session token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path, nil)
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return fmt.Errorf("auth.secret is not configured")
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")

			token, err := auth.NewAuthenticator(cfg.Auth.Secret, newLogger(cfg.LogLevel)).Issue(args[0], ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().Duration("ttl", 30*24*time.Hour, "token lifetime")
	return cmd
}
