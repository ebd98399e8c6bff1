// Package control holds a sweep on a failed cell while the operator inspects
// the worlds from the console.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/OCAP2/collision-benchmark/internal/agreement"
	"github.com/OCAP2/collision-benchmark/internal/dispatcher"
	"github.com/OCAP2/collision-benchmark/internal/manager"
	"github.com/OCAP2/collision-benchmark/internal/mirror"
	"github.com/OCAP2/collision-benchmark/internal/session"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// DefaultUpdateInterval is the cadence at which paused worlds keep being
// updated.
const DefaultUpdateInterval = 20 * time.Millisecond

var errNoMirror = errors.New("no mirror world")

// Dependencies holds everything the controller drives.
type Dependencies struct {
	Manager *manager.Manager
	// Mirror is optional. When set it is synced after every update.
	Mirror  *mirror.World
	Console *Console
	// Session is optional and only read by the status command.
	Session *session.Context

	Model1, Model2 string
	SnapshotDir    string
	Interval       time.Duration

	Logger *slog.Logger
	// CommandLogger receives per-command logs. Defaults to Logger.
	CommandLogger dispatcher.Logger
}

// Controller implements agreement.Pauser. All of its methods must be called
// from the goroutine that owns the worlds.
type Controller struct {
	deps Dependencies
	disp *dispatcher.Dispatcher

	paused  bool
	current *core.Failure
	saves   int
}

var _ agreement.Pauser = (*Controller)(nil)

// New creates a controller and registers the console commands.
func New(deps Dependencies) (*Controller, error) {
	if deps.Manager == nil || deps.Console == nil {
		return nil, errors.New("control: manager and console are required")
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultUpdateInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.CommandLogger == nil {
		deps.CommandLogger = deps.Logger
	}

	d, err := dispatcher.New(deps.CommandLogger)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	c := &Controller{deps: deps, disp: d}
	c.register()
	return c, nil
}

func (c *Controller) register() {
	c.disp.Register("step", c.handleStep, dispatcher.Logged(), dispatcher.Usage("[n]  advance all worlds n iterations (default 1)"), dispatcher.Alias("s"))
	c.disp.Register("pause", c.handlePause, dispatcher.Logged(), dispatcher.Usage("stop advancing worlds between steps"))
	c.disp.Register("resume", c.handleResume, dispatcher.Logged(), dispatcher.Usage("advance worlds continuously again"))
	c.disp.Register("mirror", c.handleMirror, dispatcher.Logged(), dispatcher.Usage("<i>  show world i in the mirror"), dispatcher.Alias("m"))
	c.disp.Register("save", c.handleSave, dispatcher.Logged(), dispatcher.Usage("write all worlds to the snapshot directory"))
	c.disp.Register("status", c.handleStatus, dispatcher.Usage("show run progress and world states"))
	c.disp.Register("contacts", c.handleContacts, dispatcher.Usage("list contacts between the two models per world"), dispatcher.Alias("c"))
	c.disp.Register("help", func(dispatcher.Event) (any, error) { return c.disp.Help(), nil }, dispatcher.Alias("?"))
}

// Pause prints the failure and waits for the operator.
func (c *Controller) Pause(ctx context.Context, f *core.Failure) error {
	c.current = f
	defer func() { c.current = nil }()

	con := c.deps.Console
	con.Printf("FAIL %d: minimum agreement not reached at (%.4f, %.4f, %.4f). Agreement: %.3f, %.3f\n",
		f.Number, f.Cell.Position.X(), f.Cell.Position.Y(), f.Cell.Position.Z(), f.Positive, f.Negative)
	con.Printf("  colliding: %s\n", strings.Join(f.Colliding(), ", "))
	con.Printf("  not colliding: %s\n", strings.Join(f.NotColliding(), ", "))
	if len(f.SnapshotFiles) > 0 {
		con.Printf("  snapshots: %s\n", strings.Join(f.SnapshotFiles, ", "))
	}
	return c.UpdateUntilEnter(ctx)
}

// UpdateUntilEnter keeps updating all worlds until the operator enters an
// empty line or the input ends. Other lines are run as commands in between
// updates. Worlds paused by the operator run again once it returns.
func (c *Controller) UpdateUntilEnter(ctx context.Context) error {
	con := c.deps.Console
	con.Println("Press [Enter] to continue, type 'help' for commands.")
	defer c.resume()

	ticker := time.NewTicker(c.deps.Interval)
	defer ticker.Stop()

	lines := con.Lines().Receive()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			e, ok := dispatcher.ParseLine(line)
			if !ok {
				return nil
			}
			c.run(e)
		case <-ticker.C:
			if err := c.update(1); err != nil {
				return err
			}
		}
	}
}

func (c *Controller) run(e dispatcher.Event) {
	result, err := c.disp.Dispatch(e)
	if err != nil {
		c.deps.Console.Printf("error: %v\n", err)
		return
	}
	switch v := result.(type) {
	case nil:
	case string:
		c.deps.Console.Println(v)
	case []string:
		for _, line := range v {
			c.deps.Console.Println(line)
		}
	default:
		c.deps.Console.Println(v)
	}
}

func (c *Controller) update(n int) error {
	c.deps.Manager.Update(n)
	if m := c.deps.Mirror; m != nil && m.Bound() {
		return m.Sync()
	}
	return nil
}

func (c *Controller) handleStep(e dispatcher.Event) (any, error) {
	n := 1
	if len(e.Args) > 0 {
		v, err := strconv.Atoi(e.Args[0])
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("step count must be a positive integer, got %q", e.Args[0])
		}
		n = v
	}

	mgr := c.deps.Manager
	if c.paused {
		mgr.SetPaused(false)
		defer mgr.SetPaused(true)
	}
	if err := c.update(n); err != nil {
		return nil, err
	}
	return fmt.Sprintf("stepped %d worlds %d iterations", mgr.NumWorlds(), n), nil
}

func (c *Controller) handlePause(dispatcher.Event) (any, error) {
	c.paused = true
	c.deps.Manager.SetPaused(true)
	return "worlds paused", nil
}

func (c *Controller) handleResume(dispatcher.Event) (any, error) {
	c.resume()
	return "worlds running", nil
}

func (c *Controller) resume() {
	if c.paused {
		c.paused = false
		c.deps.Manager.SetPaused(false)
	}
}

func (c *Controller) handleMirror(e dispatcher.Event) (any, error) {
	if c.deps.Mirror == nil {
		return nil, errNoMirror
	}
	if len(e.Args) != 1 {
		return nil, errors.New("usage: mirror <i>")
	}
	i, err := strconv.Atoi(e.Args[0])
	if err != nil {
		return nil, fmt.Errorf("world index must be an integer, got %q", e.Args[0])
	}
	w := c.deps.Manager.World(i)
	if w == nil {
		return nil, fmt.Errorf("no world %d, have %d", i, c.deps.Manager.NumWorlds())
	}
	if err := c.deps.Mirror.NotifyOriginalWorldChange(w); err != nil {
		return nil, err
	}
	if err := c.deps.Mirror.Sync(); err != nil {
		return nil, err
	}
	return fmt.Sprintf("mirroring %s (%s)", w.Name(), w.Engine()), nil
}

func (c *Controller) handleSave(dispatcher.Event) (any, error) {
	c.saves++
	dir := c.deps.SnapshotDir
	if dir == "" {
		dir = "."
	}
	prefix := fmt.Sprintf("STest_pause_%d_", c.saves)
	if c.current != nil {
		prefix = fmt.Sprintf("%spause_%d_", agreement.SnapshotPrefix(c.current.Number), c.saves)
	}
	paths, failed := c.deps.Manager.SaveAllWorlds(dir, prefix, agreement.SnapshotExt)
	if failed > 0 {
		return paths, fmt.Errorf("%d of %d worlds could not be saved", failed, c.deps.Manager.NumWorlds())
	}
	return paths, nil
}

func (c *Controller) handleStatus(dispatcher.Event) (any, error) {
	var out []string
	if s := c.deps.Session; s != nil {
		if run := s.GetRun(); run != nil {
			out = append(out, fmt.Sprintf("run %s: %s vs %s on %s",
				run.ID, run.Model1, run.Model2, strings.Join(run.Engines, ", ")))
		}
		if last := s.LastFailure(); last != nil {
			out = append(out, fmt.Sprintf("last failure: #%d at cell %d", last.Number, last.Cell.Index))
		}
	}
	state := "running"
	if c.paused {
		state = "paused"
	}
	out = append(out, fmt.Sprintf("%d worlds %s", c.deps.Manager.NumWorlds(), state))
	for i, w := range c.deps.Manager.Worlds() {
		line := fmt.Sprintf("  [%d] %s (%s)", i, w.Name(), w.Engine())
		if m := c.deps.Mirror; m != nil && m.Original() == w {
			line += " mirrored"
		}
		out = append(out, line)
	}
	return out, nil
}

func (c *Controller) handleContacts(dispatcher.Event) (any, error) {
	mgr := c.deps.Manager
	var out []string
	for i, w := range mgr.Worlds() {
		contacts := mgr.ContactInfo(c.deps.Model1, c.deps.Model2, i)
		if len(contacts) == 0 {
			out = append(out, fmt.Sprintf("%s: no contact", w.Name()))
			continue
		}
		for _, ci := range contacts {
			out = append(out, fmt.Sprintf("%s: %s", w.Name(), ci))
		}
	}
	return out, nil
}
