package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tenteen/tenteen/cmd/tenteen/modules"
	"github.com/tenteen/tenteen/internal/auth"
	"github.com/tenteen/tenteen/internal/boot"
)

var (
	tokenRole string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue an access token signed with the configured secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := modules.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		rc, err := boot.ProvideRuntimeConfig(cfg)
		if err != nil {
			return err
		}
		role := auth.Role(strings.ToLower(strings.TrimSpace(tokenRole)))
		if auth.ParseRole(tokenRole) != role {
			return fmt.Errorf("unknown role %q (use: user, reviewer, admin)", tokenRole)
		}
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = rc.JwtExpiresIn
		}
		tok, expiresAt, err := auth.GenerateToken(args[0], role, rc.JwtSecret, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, tok)
		fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleUser), "Role claim: user, reviewer or admin")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default auth.jwt_expires_in)")
}

func databaseURL() string {
	return os.Getenv("DATABASE_URL")
}
