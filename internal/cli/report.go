package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wallpaper/vipcenter/internal/model"
)

func newReportCommand(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show membership code and user statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.application()
			if err != nil {
				return err
			}
			stats, err := a.Sweeper.Report(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, stats)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODES\tSTATUS\tCOUNT")
			for _, b := range stats.Codes {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", b.MembershipType, b.Status, b.Count)
			}
			fmt.Fprintf(tw, "total\t\t%d\n", stats.TotalCodes)
			fmt.Fprintln(tw, strings.Repeat("-", 8)+"\t\t")
			fmt.Fprintln(tw, "USERS\t\tCOUNT")
			for _, typ := range []model.MembershipType{model.MembershipFree, model.MembershipMonthly, model.MembershipPermanent} {
				fmt.Fprintf(tw, "%s\t\t%d\n", typ, stats.Users[typ])
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
