package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep [expire|quotas|codes|all]",
		Short: "Run membership maintenance once",
		Long: `Run the scheduled maintenance tasks once and print the outcome as JSON.

  expire   downgrade monthly members past their expiry
  quotas   refill monthly quotas whose reset date has arrived
  codes    mark unused codes past their validity as expired
  all      every task above plus the statistics report (default)`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"expire", "quotas", "codes", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			task := "all"
			if len(args) == 1 {
				task = args[0]
			}

			a, err := rt.application()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch task {
			case "expire":
				report, err := a.Sweeper.ExpireMemberships(ctx)
				if err != nil {
					return err
				}
				return printJSON(out, report)
			case "quotas":
				report, err := a.Sweeper.ResetQuotas(ctx)
				if err != nil {
					return err
				}
				return printJSON(out, report)
			case "codes":
				n, err := a.Sweeper.ExpireCodes(ctx)
				if err != nil {
					return err
				}
				return printJSON(out, map[string]int64{"expired_codes": n})
			case "all":
				summary, err := a.Sweeper.RunAll(ctx)
				if summary != nil {
					if perr := printJSON(out, summary); perr != nil {
						return perr
					}
				}
				return err
			default:
				return fmt.Errorf("unknown sweep task %q", task)
			}
		},
	}
}
