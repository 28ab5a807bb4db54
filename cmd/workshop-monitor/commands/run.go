package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"workshop-monitor/internal/browser"
	"workshop-monitor/internal/chrono"
	"workshop-monitor/internal/navigator"
	"workshop-monitor/internal/notify"
	"workshop-monitor/internal/pipeline"
	"workshop-monitor/internal/scheduler"
	"workshop-monitor/internal/statestore"
	internaltelemetry "workshop-monitor/internal/telemetry"
	"workshop-monitor/lib/restyutil"
	"workshop-monitor/lib/serviceutil"
	"workshop-monitor/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	runOnce         bool
	intervalMinutes int
)

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single check and exit (cron mode).")
	runCmd.Flags().IntVar(&intervalMinutes, "interval-minutes", 360, "Minutes to wait between the end of a check and the start of the next.")
	rootCmd.AddCommand(runCmd)
}

func setupTelemetry(ctx context.Context, cfg Config) telemetry.Telemetry {
	var (
		t   telemetry.Telemetry
		err error
	)
	if cfg.Telemetry != nil {
		t, err = telemetry.Setup(ctx, "workshop-monitor", *cfg.Telemetry)
	} else {
		t, err = telemetry.SetupFromEnv(ctx, "workshop-monitor")
	}
	if err != nil {
		slog.Warn("failed to setup telemetry, continuing without it", "err", err)
	}
	return t
}

// newOpener returns the browser selected by the config and a function to call at shutdown.
func newOpener(cfg Config) (browser.Opener, func(), error) {
	if cfg.Browser.Driver == DriverStatic {
		var output restyutil.InstrumentOutput
		if cfg.Browser.DumpDir != "" {
			out, err := restyutil.NewFilesystemOutput(filepath.Clean(cfg.Browser.DumpDir))
			if err != nil {
				return nil, nil, err
			}
			output = out
		}
		static, err := browser.NewStatic(browser.StaticOptions{
			Timeout: time.Duration(cfg.Form.TimeoutSeconds) * time.Second,
			Output:  output,
		})
		if err != nil {
			return nil, nil, err
		}
		return static, func() {}, nil
	}

	chrome := browser.NewChrome(cfg.chromeOptions())
	return chrome, func() {
		err := chrome.Cleanup()
		if err != nil {
			slog.Warn("failed to remove browser profiles", "err", err)
		}
	}, nil
}

var runCmd = &cobra.Command{
	Use:   "run [--once] [--interval-minutes <N>]",
	Short: "Checks the form for new workshops, once or on a fixed delay.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath, os.LookupEnv)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if cmd.Flags().Changed("interval-minutes") {
			cfg.IntervalMinutes = intervalMinutes
		}
		err = cfg.validate()
		if err != nil {
			serviceutil.Fatal("invalid config", err)
		}

		ctx := serviceutil.SignalContext()

		tel := setupTelemetry(ctx, cfg)
		defer func() {
			err := tel.Shutdown(context.Background())
			if err != nil {
				slog.Warn("failed to flush telemetry", "err", err)
			}
		}()

		opener, cleanup, err := newOpener(cfg)
		if err != nil {
			serviceutil.Fatal("failed to create browser", err)
		}
		defer cleanup()

		store, closeStore, err := statestore.Open(ctx, cfg.State)
		if err != nil {
			serviceutil.Fatal("failed to open state store", err)
		}
		defer closeStore()

		api := internaltelemetry.NewSlogAPI(slog.Default())
		nav := navigator.New(opener, cfg.Form.Url, cfg.navigatorOptions(), api)
		p := pipeline.New(
			nav,
			store,
			notify.NewSMTP(cfg.smtpConfig()),
			chrono.NewStandardTime(),
			api,
			pipeline.Options{Stores: cfg.Stores, FormUrl: cfg.Form.Url},
		)

		job := func(ctx context.Context) error {
			result, err := p.Run(ctx)
			if err != nil {
				return err
			}
			slog.Info(
				"run finished",
				"run_id", result.RunID,
				"new", len(result.NewTitles),
				"failed_stores", len(result.Failures),
			)
			return nil
		}

		sched := scheduler.New(scheduler.Options{
			Interval: time.Duration(cfg.IntervalMinutes) * time.Minute,
		})

		if runOnce {
			slog.Info("single run started", "stores", cfg.Stores)
			err = sched.Once(ctx, job)
		} else {
			slog.Info("starting monitor", "stores", cfg.Stores, "interval_minutes", cfg.IntervalMinutes)
			telemetry.InstrumentPerfStats(ctx, time.Second*30)
			err = sched.Loop(ctx, job)
		}
		if errors.Is(err, scheduler.ErrShutdownTimeout) {
			cleanup()
			serviceutil.Fatal("forcing exit", err)
		}
		if err != nil {
			slog.Error("run failed", "err", err)
		}
	},
}
