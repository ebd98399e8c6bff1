// Command multiworld loads one world per file and shows each of them in the
// mirror in turn, running all worlds for the given number of iterations
// while it is shown.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OCAP2/collision-benchmark/internal/app"
	"github.com/OCAP2/collision-benchmark/internal/host"
	"github.com/OCAP2/collision-benchmark/internal/loader"
	"github.com/OCAP2/collision-benchmark/internal/manager"
	"github.com/OCAP2/collision-benchmark/internal/mirror"
	"github.com/OCAP2/collision-benchmark/internal/physics"
	"github.com/OCAP2/collision-benchmark/internal/sdf"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

const toolName = "multiworld"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", toolName, err)
		os.Exit(1)
	}
}

// worldfiles names the files "world_<i>" in argument order.
func worldfiles(paths []string) []core.Worldfile {
	files := make([]core.Worldfile, len(paths))
	for i, p := range paths {
		files[i] = core.Worldfile{Filename: p, Name: fmt.Sprintf("world_%d", i)}
	}
	return files
}

func run() error {
	fs := pflag.NewFlagSet(toolName, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <iterations> <world files...>\n\nFlags:\n%s", toolName, fs.FlagUsages())
	}
	configDir := app.AddCommonFlags(fs)
	engine := fs.StringP("engine", "e", "", "engine for every world, overrides the physics element of the files")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	args := fs.Args()
	if len(args) < 2 {
		fs.Usage()
		return errors.New("need an iteration count and at least one world file")
	}
	iterations, err := strconv.Atoi(args[0])
	if err != nil || iterations <= 0 {
		return fmt.Errorf("iterations must be a positive integer, got %q", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := app.Setup(ctx, toolName, *configDir, fs, nil)
	if err != nil {
		return err
	}
	defer env.Close(context.Background())

	h := host.New()
	ld := loader.New(sdf.NewFinder(viper.GetStringSlice("modelPaths")...))
	worlds, err := physics.LoadWorlds(h, ld, worldfiles(args[1:]), *engine)
	if err != nil {
		return err
	}
	mgr := manager.New(env.Logger.With("component", "manager"), worlds...)
	defer mgr.Close()
	env.Logger.Info("Loaded worlds", "worlds", mgr.WorldNames(), "engines", mgr.Engines())

	m, pub, err := env.Mirror(h, ld, mgr.Engines())
	if err != nil {
		return err
	}
	defer pub.Close()
	defer m.Close()

	err = mirror.MirrorEach(ctx, iterations, mgr, m)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
