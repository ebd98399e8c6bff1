// Package mirror republishes the state of one world into a display-only world.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/OCAP2/collision-benchmark/internal/manager"
	"github.com/OCAP2/collision-benchmark/internal/physics"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

var (
	// ErrUnbound is returned by Sync before an original world was set.
	ErrUnbound = errors.New("mirror is not bound to a world")
	// ErrIncompatibleWorld is returned when the original's state cannot be
	// applied to the mirror.
	ErrIncompatibleWorld = fmt.Errorf("%w: incompatible world", core.ErrSetupInconsistency)
)

// Observer receives the mirrored state after every sync.
type Observer func(state core.WorldState)

// World mirrors an original world. It owns the mirror world; the original is
// only referenced. Physics of the mirror world is disabled for its lifetime.
type World struct {
	mirror   physics.World
	original physics.World

	verify    bool
	verifyTol float64
	observers []Observer
	logger    *slog.Logger
}

// Option configures a mirror.
type Option func(*World)

// WithVerify reads the mirror state back after every sync and fails with
// ErrStateMismatch when it differs from the original beyond tol. Velocities
// are not compared.
func WithVerify(tol float64) Option {
	return func(m *World) {
		m.verify = true
		m.verifyTol = tol
	}
}

// WithObserver adds a state observer.
func WithObserver(o Observer) Option {
	return func(m *World) {
		m.observers = append(m.observers, o)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *World) {
		m.logger = l
	}
}

// New creates an unbound mirror around a world it takes ownership of.
func New(mirror physics.World, opts ...Option) *World {
	m := &World{
		mirror: mirror,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	mirror.SetDynamicsEnabled(false)
	return m
}

// Mirror returns the display world.
func (m *World) Mirror() physics.World {
	return m.mirror
}

// Original returns the tracked world or nil.
func (m *World) Original() physics.World {
	return m.original
}

// Bound reports whether an original world is set.
func (m *World) Bound() bool {
	return m.original != nil
}

// NotifyOriginalWorldChange binds or rebinds the mirror. The previous
// binding is kept when w is rejected.
func (m *World) NotifyOriginalWorldChange(w physics.World) error {
	if w == nil {
		return fmt.Errorf("%w: nil world", ErrIncompatibleWorld)
	}
	if w.StateKind() != m.mirror.StateKind() {
		return fmt.Errorf("%w: %q states cannot be applied to %q", ErrIncompatibleWorld, w.StateKind(), m.mirror.StateKind())
	}
	if m.original != w {
		m.logger.Info("Mirror bound", "original", w.Name(), "engine", w.Engine(), "mirror", m.mirror.Name())
	}
	m.original = w
	return nil
}

// Sync copies the current state of the original into the mirror, clock
// included, then steps the mirror once.
func (m *World) Sync() error {
	if m.original == nil {
		return ErrUnbound
	}
	state := m.original.GetWorldState()
	for _, id := range m.mirror.ModelIDs() {
		if _, ok := state.Models[id]; !ok {
			state.Deletions = append(state.Deletions, id)
		}
	}
	if err := m.mirror.SetWorldState(state, true); err != nil {
		return fmt.Errorf("mirror %q: %w", m.original.Name(), err)
	}
	if m.verify {
		readBack := m.mirror.GetWorldState()
		if diff := state.Diff(readBack, m.verifyTol, false); diff != "" {
			return fmt.Errorf("%w: mirror of %q: %s", core.ErrStateMismatch, m.original.Name(), diff)
		}
	}
	m.mirror.Step(1)

	if len(m.observers) > 0 {
		mirrored := m.mirror.GetWorldState()
		for _, o := range m.observers {
			o(mirrored)
		}
	}
	return nil
}

// Close releases the mirror world.
func (m *World) Close() error {
	return m.mirror.Close()
}

// RunWorlds steps every world of mgr once and then syncs the mirror, for the
// given number of iterations. A non-positive count runs until ctx is done.
// It returns the number of completed iterations.
func RunWorlds(ctx context.Context, iterations int, mgr *manager.Manager, m *World) (int, error) {
	done := 0
	for iterations <= 0 || done < iterations {
		select {
		case <-ctx.Done():
			return done, ctx.Err()
		default:
		}
		mgr.Update(1)
		if m != nil && m.Bound() {
			if err := m.Sync(); err != nil {
				return done, err
			}
		}
		done++
	}
	return done, nil
}

// MirrorEach binds the mirror to each world of mgr in turn and runs
// iterations steps while it is bound.
func MirrorEach(ctx context.Context, iterations int, mgr *manager.Manager, m *World) error {
	if iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	for _, w := range mgr.Worlds() {
		if err := m.NotifyOriginalWorldChange(w); err != nil {
			return err
		}
		if _, err := RunWorlds(ctx, iterations, mgr, m); err != nil {
			return err
		}
	}
	return nil
}
