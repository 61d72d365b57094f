package cmd

import (
	"fmt"
	"time"

	"github.com/kozaktomas/face-login/internal/config"
	"github.com/kozaktomas/face-login/internal/web/middleware"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a bearer token for a user",
	Long: `Mint a bearer token signed with AUTH_JWT_SECRET.

Use it to call the enrollment endpoints on behalf of a user that signed in
by other means, or with --admin to call the administration endpoints.

Examples:
  face-login token 42
  face-login token 1 --admin`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().Bool("admin", false, "Grant the admin role")
}

func runToken(cmd *cobra.Command, args []string) error {
	admin := mustGetBool(cmd, "admin")

	userID, err := parseUserID(args[0])
	if err != nil {
		return err
	}

	cfg := config.Load()
	tokens, err := middleware.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	token, expiresAt, err := tokens.Issue(userID, admin)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}

	fmt.Println(token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Local().Format(time.RFC3339))
	return nil
}
