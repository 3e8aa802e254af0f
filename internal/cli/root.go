// Package cli implements vipctl, the operator command line for the
// membership service.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wallpaper/vipcenter/internal/app"
	"wallpaper/vipcenter/internal/config"
	"wallpaper/vipcenter/pkg/logger"
)

// OpenFunc builds the application for commands that need storage.
type OpenFunc func(cfg *config.Config, logger *zap.Logger) (*app.App, error)

type runtime struct {
	cfgFile string
	verbose bool
	open    OpenFunc

	cfg       *config.Config
	logger    *zap.Logger
	flushLogs func()
	app       *app.App
}

// application opens storage on first use. Commands like token never do.
func (rt *runtime) application() (*app.App, error) {
	if rt.app != nil {
		return rt.app, nil
	}
	a, err := rt.open(rt.cfg, rt.logger)
	if err != nil {
		return nil, fmt.Errorf("open application: %w", err)
	}
	rt.app = a
	return a, nil
}

// NewRootCommand returns the vipctl command tree. A nil open uses app.New.
func NewRootCommand(open OpenFunc) *cobra.Command {
	if open == nil {
		open = app.New
	}
	rt := &runtime{open: open}

	var startedAt time.Time
	var runID uuid.UUID
	root := &cobra.Command{
		Use:           "vipctl",
		Short:         "vipctl - membership operations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rt.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !rt.verbose {
				cfg.Log.Level = "warn"
			}
			zlog, flushLogs, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			rt.cfg = cfg
			rt.flushLogs = flushLogs
			runID = uuid.New()
			startedAt = time.Now()
			rt.logger = zlog.With(zap.String("run_id", runID.String()))
			rt.logger.Info("command start", zap.String("command", cmd.CommandPath()))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			rt.logger.Info("command end",
				zap.String("command", cmd.CommandPath()),
				zap.Duration("duration", time.Since(startedAt)),
			)
			rt.flushLogs()
			if rt.app == nil {
				return nil
			}
			return rt.app.Close()
		},
	}
	root.PersistentFlags().StringVarP(&rt.cfgFile, "config", "c", "config.yaml", "config file path")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "log at the configured level instead of warn")

	root.AddCommand(
		newSweepCommand(rt),
		newReportCommand(rt),
		newCodesCommand(rt),
		newTokenCommand(rt),
	)
	return root
}

// Execute runs the command tree against ctx.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand(nil)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
