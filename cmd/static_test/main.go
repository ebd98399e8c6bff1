// Command static_test sweeps the second of two models through a grid around
// the first and checks that the engines agree on collision at every cell.
// It exits with status 1 when any cell failed.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OCAP2/collision-benchmark/internal/agreement"
	"github.com/OCAP2/collision-benchmark/internal/api"
	"github.com/OCAP2/collision-benchmark/internal/app"
	"github.com/OCAP2/collision-benchmark/internal/config"
	"github.com/OCAP2/collision-benchmark/internal/control"
	"github.com/OCAP2/collision-benchmark/internal/influx"
	"github.com/OCAP2/collision-benchmark/internal/logging"
	"github.com/OCAP2/collision-benchmark/internal/monitor"
	"github.com/OCAP2/collision-benchmark/internal/storage"
	"github.com/OCAP2/collision-benchmark/internal/viz"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

const toolName = "static_test"

// errFailures signals a completed sweep with failed cells.
var errFailures = errors.New("agreement failures")

var sweepFlags = map[string]string{
	"cell-size-factor": "sweep.cellSizeFactor",
	"min-agree":        "sweep.minAgree",
	"bb-tol":           "sweep.bbTol",
	"zero-depth-tol":   "sweep.zeroDepthTol",
	"interactive":      "sweep.interactive",
	"output-dir":       "sweep.outputDir",
	"output-subdir":    "sweep.outputSubdir",
	"storage":          "storage.type",
	"status-file":      "monitor.statusFile",
}

func main() {
	err := run()
	switch {
	case err == nil:
	case errors.Is(err, errFailures):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "%s: %v\n", toolName, err)
		os.Exit(2)
	}
}

func run() error {
	fs := pflag.NewFlagSet(toolName, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [engines...]\n\nFlags:\n%s", toolName, fs.FlagUsages())
	}
	configDir := app.AddCommonFlags(fs)
	shapes := fs.StringSliceP("shape", "s", nil, "unit shape to load (sphere, cylinder, cube)")
	models := fs.StringSliceP("model", "m", nil, "model resource to load")

	defaults := core.DefaultSweepParams()
	fs.Float64("cell-size-factor", defaults.CellSizeFactor, "grid cell size as a fraction of the grid extent")
	fs.Float64("min-agree", defaults.MinAgree, "minimum fraction of worlds that must agree")
	fs.Float64("bb-tol", defaults.BBTol, "tolerance for bounding boxes to match across worlds")
	fs.Float64("zero-depth-tol", defaults.ZeroDepthTol, "contacts shallower than this are not voted on")
	fs.BoolP("interactive", "i", false, "pause on every failure")
	fs.String("output-dir", "", "directory for world snapshots of failed cells, empty disables them")
	fs.String("output-subdir", "", "subdirectory of output-dir for this run")
	fs.String("storage", "memory", "failure storage (memory, sqlite, postgres, websocket)")
	fs.String("status-file", "", "file to write run progress to")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := app.Setup(ctx, toolName, *configDir, fs, sweepFlags)
	if err != nil {
		return err
	}
	defer env.Close(context.Background())
	logger := env.Logger

	params := config.GetSweepConfig()
	if err := agreement.ValidateParams(params); err != nil {
		return err
	}

	engines := fs.Args()
	if len(engines) == 0 {
		engines = viper.GetStringSlice("engines")
	}
	mgr, h, ld, err := env.Worlds(engines)
	if err != nil {
		return err
	}
	defer mgr.Close()

	names, err := app.LoadPair(mgr, *shapes, *models)
	if err != nil {
		return err
	}

	m, pub, err := env.Mirror(h, ld, mgr.Engines())
	if err != nil {
		return err
	}
	defer pub.Close()
	defer m.Close()
	if err := m.NotifyOriginalWorldChange(mgr.World(0)); err != nil {
		return err
	}

	backend, err := storage.NewBackend(config.GetStorageConfig(), logger.With("component", "storage"), env.ZeroLogger("database"))
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	run := core.NewRun(names[0], names[1], mgr.Engines(), mgr.WorldNames(), params)
	env.Session.SetRun(run)
	if err := backend.StartRun(run); err != nil {
		return fmt.Errorf("starting run: %w", err)
	}

	opts := []agreement.Option{
		agreement.WithRun(run),
		agreement.WithMirror(m),
		agreement.WithLogger(logger.With("component", "sweep")),
		agreement.WithReporter(agreement.MultiReporter{
			storage.Reporter{Backend: backend, Logger: logger},
			env.Session,
			viz.FailureReporter{Publisher: pub},
		}),
	}

	if icfg := config.GetInfluxConfig(); icfg.Enabled {
		im := influx.NewManager(env.ZeroLogger("influx"), icfg)
		if err := im.Connect(ctx); err != nil {
			logger.Error("Failed to connect to InfluxDB, cells are not recorded", "error", err)
		} else {
			defer im.Close()
			opts = append(opts, agreement.WithRecorder(im))
		}
	}

	if params.Interactive {
		snapshots := ""
		if params.OutputDir != "" {
			snapshots = filepath.Join(params.OutputDir, params.OutputSubdir)
		}
		console := control.NewConsole(os.Stdin, os.Stdout)
		ctl, err := control.New(control.Dependencies{
			Manager:       mgr,
			Mirror:        m,
			Console:       console,
			Session:       env.Session,
			Model1:        names[0],
			Model2:        names[1],
			SnapshotDir:   snapshots,
			Logger:        logger.With("component", "control"),
			CommandLogger: logging.NewDispatcherLogger(env.ZeroLogger("dispatcher")),
		})
		if err != nil {
			return err
		}
		opts = append(opts, agreement.WithPauser(ctl))
	}

	sweep, err := agreement.NewSweep(mgr, params, opts...)
	if err != nil {
		return err
	}

	mcfg := config.GetMonitorConfig()
	mon := monitor.NewService(monitor.Dependencies{
		Session:    env.Session,
		Progress:   sweep.Progress,
		Pending:    pendingFunc(backend),
		StatusFile: mcfg.StatusFile,
		Interval:   mcfg.Interval,
		Logger:     logger.With("component", "monitor"),
	})
	if err := mon.Start(); err != nil {
		logger.Error("Failed to start status monitor", "error", err)
	}

	summary, sweepErr := sweep.Run(ctx, names[0], names[1])
	if err := backend.EndRun(&summary); err != nil {
		logger.Error("Failed to end run", "error", err)
	}
	env.Session.SetSummary(&summary)
	mon.Stop()

	if sweepErr != nil {
		return sweepErr
	}

	upload(backend, env)

	if !summary.Passed() {
		logger.Warn("Agreement sweep failed", "failures", summary.Failures, "cells", summary.Cells)
		fmt.Printf("FAILED: %d of %d cells without agreement\n", summary.Failures, summary.Evaluated)
		return errFailures
	}
	fmt.Printf("PASSED: %d cells evaluated, %d skipped\n", summary.Evaluated, summary.Skipped)
	return nil
}

func pendingFunc(b storage.Backend) func() int {
	if p, ok := b.(interface{ Pending() int }); ok {
		return p.Pending
	}
	return nil
}

// upload sends the exported report to the results server when an API key is
// configured.
func upload(b storage.Backend, env *app.Env) {
	u, ok := b.(storage.Uploadable)
	key := viper.GetString("api.apiKey")
	if !ok || key == "" || u.ExportedFilePath() == "" {
		return
	}
	logger := env.Logger
	client := api.New(viper.GetString("api.serverUrl"), key)
	if err := client.Healthcheck(); err != nil {
		logger.Warn("Results server not reachable, skipping upload", "error", err)
		return
	}
	if err := client.Upload(u.ExportedFilePath(), u.ExportMetadata()); err != nil {
		logger.Error("Failed to upload report", "path", u.ExportedFilePath(), "error", err)
		return
	}
	logger.Info("Uploaded report", "path", u.ExportedFilePath())
}
