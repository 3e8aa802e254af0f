package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"wallpaper/vipcenter/internal/model"
)

func newCodesCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codes",
		Short: "Manage membership codes",
	}
	cmd.AddCommand(newCodesGenerateCommand(rt))
	return cmd
}

func newCodesGenerateCommand(rt *runtime) *cobra.Command {
	var (
		membershipType string
		count          int
		notes          string
		issuer         string
		asJSON         bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Issue a batch of membership codes",
		Long: `Issue a batch of membership codes and print one code per line.

Examples:
  vipctl codes generate --type monthly --count 20
  vipctl codes generate --type permanent --count 1 --notes "support ticket 311" --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			issuerID := uuid.Nil
			if issuer != "" {
				id, err := uuid.Parse(issuer)
				if err != nil {
					return fmt.Errorf("invalid --issuer: %w", err)
				}
				issuerID = id
			}

			a, err := rt.application()
			if err != nil {
				return err
			}
			result, err := a.Codes.GenerateCodes(cmd.Context(), model.MembershipType(membershipType), count, issuerID, notes)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, result)
			}
			for _, c := range result.Codes {
				fmt.Fprintln(out, c.Code)
			}
			if result.Failed > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d codes failed, batch %s\n", result.Failed, count, result.BatchID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&membershipType, "type", "t", "monthly", "membership type (monthly, permanent)")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of codes")
	cmd.Flags().StringVar(&notes, "notes", "", "note stored with every code")
	cmd.Flags().StringVar(&issuer, "issuer", "", "admin user id recorded as issuer")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the whole batch as JSON")
	return cmd
}
