package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	jwtpkg "wallpaper/vipcenter/pkg/jwt"
)

func newTokenCommand(rt *runtime) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for a user id",
		Long: `Mint a signed access token accepted by the HTTP API. Useful for
support work and for calling admin endpoints from scripts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			if rt.cfg.JWT.SigningKey == "" {
				return fmt.Errorf("jwt.signing_key is not configured")
			}

			manager := jwtpkg.NewManager(rt.cfg.JWT.SigningKey, rt.cfg.JWT.Issuer, rt.cfg.JWT.AccessTokenTTL)
			var token string
			if ttl > 0 {
				token, err = manager.GenerateAccessTokenWithTTL(id, ttl)
			} else {
				token, err = manager.GenerateAccessToken(id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id (uuid)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to jwt.access_token_ttl")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
