package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"plantit/internal/app"
	"plantit/internal/config"
	logx "plantit/pkg/logx"
)

// env is shared by every subcommand. The store is opened on first use and
// closed once the command returns.
type env struct {
	cfgPath  string
	logLevel string
	core     *app.Core
}

func (e *env) open() (*app.Core, error) {
	if e.core != nil {
		return e.core, nil
	}
	cfg, err := config.NewConfigManager(e.cfgPath).Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	core, err := app.OpenCore(cfg, logx.NewConsole(e.logLevel), nil)
	if err != nil {
		return nil, err
	}
	e.core = core
	return core, nil
}

func (e *env) close() error {
	if e.core == nil {
		return nil
	}
	err := e.core.Close()
	e.core = nil
	return err
}

func rootCommand(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "plantit",
		Short:         "Track plants, their care history and watering schedules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&e.cfgPath, "config", "c", os.Getenv("PLANTIT_CONFIG"), "Path to a JSON or YAML config file")
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "warn", "Log level for one-shot commands")

	root.AddCommand(
		serveCommand(e),
		importCommand(e),
		exportCommand(e),
		villageCommand(e),
		plantCommand(e),
		scheduleCommand(e),
	)
	return root
}

func execute(ctx context.Context, args []string, out io.Writer) error {
	e := &env{}
	defer func() { _ = e.close() }()

	root := rootCommand(e)
	root.SetArgs(args)
	root.SetOut(out)
	return root.ExecuteContext(ctx)
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func formatWhen(c *app.Core, t *time.Time) string {
	if t == nil {
		return "-"
	}
	return c.Calendar.In(*t).Format("2006-01-02 15:04")
}
