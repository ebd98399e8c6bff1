// Command collide places two models so that their boxes touch and keeps all
// worlds running, mirrored to the visualization server, until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/OCAP2/collision-benchmark/internal/app"
	"github.com/OCAP2/collision-benchmark/internal/mirror"
	"github.com/OCAP2/collision-benchmark/internal/viz"
)

const toolName = "collide"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", toolName, err)
		os.Exit(1)
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
	iterations := fs.IntP("iterations", "n", 0, "iterations to run, 0 runs until interrupted")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := app.Setup(ctx, toolName, *configDir, fs, nil)
	if err != nil {
		return err
	}
	defer env.Close(context.Background())
	logger := env.Logger

	engines := fs.Args()
	if len(engines) == 0 {
		engines = viper.GetStringSlice("engines")
	}

	mgr, h, ld, err := env.Worlds(engines)
	if err != nil {
		return err
	}
	defer mgr.Close()

	m, pub, err := env.Mirror(h, ld, mgr.Engines())
	if err != nil {
		return err
	}
	defer pub.Close()
	defer m.Close()

	names, err := app.LoadPair(mgr, *shapes, *models)
	if err != nil {
		return err
	}
	aabb1, aabb2, err := app.PlaceTouching(mgr, names[0], names[1], viz.BarAxis)
	if err != nil {
		return err
	}
	logger.Info("Models placed", "model1", names[0], "aabb1", aabb1.String(), "model2", names[1], "aabb2", aabb2.String())

	if err := m.NotifyOriginalWorldChange(mgr.World(0)); err != nil {
		return err
	}

	bar := viz.NewCollisionBar(pub, aabb1, aabb2, mgl64.Vec3{}, logger.With("component", "bar"))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return bar.Run(gctx)
	})
	g.Go(func() error {
		// the bar only stops on cancel
		defer cancel()
		done, err := mirror.RunWorlds(gctx, *iterations, mgr, m)
		logger.Info("Stopped running worlds", "iterations", done)
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
