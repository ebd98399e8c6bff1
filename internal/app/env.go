// Package app sets up the process environment shared by the command
// binaries: configuration, logging, telemetry and the worlds.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OCAP2/collision-benchmark/internal/config"
	"github.com/OCAP2/collision-benchmark/internal/host"
	"github.com/OCAP2/collision-benchmark/internal/loader"
	"github.com/OCAP2/collision-benchmark/internal/logging"
	"github.com/OCAP2/collision-benchmark/internal/manager"
	"github.com/OCAP2/collision-benchmark/internal/mirror"
	intOtel "github.com/OCAP2/collision-benchmark/internal/otel"
	"github.com/OCAP2/collision-benchmark/internal/physics"
	"github.com/OCAP2/collision-benchmark/internal/sdf"
	"github.com/OCAP2/collision-benchmark/internal/session"
	"github.com/OCAP2/collision-benchmark/internal/viz"
	"github.com/OCAP2/collision-benchmark/pkg/streaming"
)

// CommonFlags are the flags every binary accepts, bound to these config keys.
var CommonFlags = map[string]string{
	"log-level":  "logLevel",
	"logs-dir":   "logsDir",
	"viz-url":    "viz.url",
	"verify":     "mirror.verify",
	"model-path": "modelPaths",
}

// AddCommonFlags registers CommonFlags on fs. The config directory flag is
// returned separately because it is read before the config is loaded.
func AddCommonFlags(fs *pflag.FlagSet) *string {
	configDir := fs.String("config-dir", ".", "directory holding "+config.FileName)
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("logs-dir", "./benchlogs", "directory for log files")
	fs.String("viz-url", "", "visualization server websocket URL, empty disables it")
	fs.Bool("verify", false, "verify every mirror sync against the original")
	fs.StringSlice("model-path", nil, "additional model search paths")
	return configDir
}

// Env is the runtime environment of one binary invocation.
type Env struct {
	Name    string
	Start   time.Time
	Slog    *logging.SlogManager
	Logger  *slog.Logger
	Session *session.Context
	OTel    *intOtel.Provider

	logFile *os.File
}

// Setup loads configuration from configDir, binds fs and opens the log file.
// A missing config file is not an error; defaults are used.
func Setup(ctx context.Context, name, configDir string, fs *pflag.FlagSet, bindings map[string]string) (*Env, error) {
	env := &Env{
		Name:    name,
		Start:   time.Now(),
		Slog:    logging.NewSlogManager(),
		Session: session.NewContext(),
	}

	env.Slog.Setup(logging.Options{Level: "info"})
	env.Logger = env.Slog.Logger()

	loadErr := config.Load(configDir)

	all := make(map[string]string, len(CommonFlags)+len(bindings))
	for k, v := range CommonFlags {
		all[k] = v
	}
	for k, v := range bindings {
		all[k] = v
	}
	if err := config.BindFlags(fs, all); err != nil {
		return nil, err
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating logs directory: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, name, env.Start)
	if _, err := os.Stat(logPath); err == nil {
		_ = os.Rename(logPath, logPath+".old")
	}
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	env.logFile = f

	otelCfg := config.GetOTelConfig()
	env.OTel, err = intOtel.New(ctx, intOtel.Config{OTelConfig: otelCfg, LogWriter: f})
	if err != nil {
		env.Logger.Error("Failed to initialize OTel provider", "error", err)
		env.OTel, _ = intOtel.New(ctx, intOtel.Config{})
	} else if otelCfg.Enabled {
		env.Logger.Info("OTel provider initialized", "file", logPath, "endpoint", otelCfg.Endpoint)
	}

	env.Slog.Setup(logging.Options{
		Level:    viper.GetString("logLevel"),
		File:     f,
		Console:  true,
		Provider: env.OTel.LoggerProvider(),
		Context:  logging.RunContext(env.Session.GetRun),
	})
	env.Logger = env.Slog.Logger()
	env.Logger.Info("Logging to file", "path", logPath)

	if loadErr != nil {
		env.Logger.Warn("Failed to load config, using defaults!", "error", loadErr)
	} else {
		env.Logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}
	return env, nil
}

// ZeroLogger returns the zerolog logger for a component, writing to the
// log file.
func (e *Env) ZeroLogger(component string) zerolog.Logger {
	var w io.Writer = os.Stderr
	if e.logFile != nil {
		w = e.logFile
	}
	return logging.NewZerolog(w, viper.GetString("logLevel"), component)
}

// Worlds creates one world per engine on a fresh host. Model resources are
// searched in the configured model paths.
func (e *Env) Worlds(engines []string) (*manager.Manager, *host.Host, *loader.Loader, error) {
	h := host.New()
	ld := loader.New(sdf.NewFinder(viper.GetStringSlice("modelPaths")...))
	worlds, err := physics.NewEngineWorlds(h, ld, engines)
	if err != nil {
		return nil, nil, nil, err
	}
	return manager.New(e.Logger.With("component", "manager"), worlds...), h, ld, nil
}

// Mirror creates the mirror world on h and connects it to the visualization
// server. Without a viz URL the publisher is a no-op.
func (e *Env) Mirror(h *host.Host, ld *loader.Loader, engines []string) (*mirror.World, viz.Publisher, error) {
	vcfg := config.GetVizConfig()
	pub, err := viz.New(viz.Config{URL: vcfg.URL, Secret: vcfg.Secret},
		streaming.HelloPayload{Engines: engines}, e.Logger.With("component", "viz"))
	if err != nil {
		return nil, nil, err
	}

	mw, err := physics.NewWorld(h, physics.DefaultEngine, "mirror", physics.WithLoader(ld))
	if err != nil {
		_ = pub.Close()
		return nil, nil, err
	}

	opts := []mirror.Option{
		mirror.WithLogger(e.Logger.With("component", "mirror")),
		mirror.WithObserver(viz.StateObserver(pub, e.Logger)),
	}
	if viper.GetBool("mirror.verify") {
		opts = append(opts, mirror.WithVerify(viper.GetFloat64("mirror.tolerance")))
	}
	return mirror.New(mw, opts...), pub, nil
}

// Close flushes telemetry and closes the log file.
func (e *Env) Close(ctx context.Context) {
	if e.OTel != nil {
		if err := e.OTel.Shutdown(ctx); err != nil {
			e.Logger.Error("OTel shutdown failed", "error", err)
		}
	}
	e.Logger.Info("Finished", "elapsed", time.Since(e.Start).Round(time.Millisecond))
	if e.logFile != nil {
		_ = e.logFile.Close()
	}
}
