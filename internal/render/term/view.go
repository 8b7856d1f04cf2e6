package term

import (
	"context"
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/zeusync/kinetic/internal/core/events/bus"
	"github.com/zeusync/kinetic/internal/core/observability/log"
	"github.com/zeusync/kinetic/internal/core/systems/physics"
	"github.com/zeusync/kinetic/internal/runner"
)

// DefaultPush is the force applied to the selected body per arrow key press.
const DefaultPush = 2000.0

// Simulation is what the view reads frames from and pushes bodies through.
type Simulation interface {
	Snapshot() runner.Frame
	ApplyForce(ctx context.Context, i int, f physics.Vector2) error
	Bus() bus.EventBus
}

var (
	styleBounds   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleBody     = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleSelected = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy)
)

// View draws frames onto a terminal screen. Arrow keys push the selected
// body, Tab cycles the selection, q or Esc quits.
type View struct {
	screen   tcell.Screen
	sim      Simulation
	log      log.Log
	push     float64
	selected int
}

type Option func(*View)

func WithPush(f float64) Option { return func(v *View) { v.push = f } }

// New wraps an initialised screen. The caller owns screen and calls Fini.
func New(screen tcell.Screen, sim Simulation, logger log.Log, opts ...Option) *View {
	if logger == nil {
		logger = log.NewNop()
	}
	v := &View{
		screen: screen,
		sim:    sim,
		log:    logger.With(log.String("component", "view")),
		push:   DefaultPush,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *View) Selected() int { return v.selected }

// Run redraws on every published frame until ctx is cancelled or the user
// quits. Quitting returns nil.
func (v *View) Run(ctx context.Context) error {
	frames := make(chan runner.Frame, 1)
	sub, err := v.sim.Bus().Subscribe(runner.EventFrame, func(e bus.Event) error {
		f, ok := e.Data().(runner.Frame)
		if !ok {
			return nil
		}
		// keep only the newest frame
		select {
		case <-frames:
		default:
		}
		frames <- f
		return nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = v.sim.Bus().Unsubscribe(sub) }()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	v.Draw(v.sim.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-frames:
			v.Draw(f)
		case ev := <-events:
			if !v.HandleEvent(ctx, ev) {
				return nil
			}
		}
	}
}

// HandleEvent reacts to one terminal event and reports whether to keep going.
func (v *View) HandleEvent(ctx context.Context, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.screen.Sync()
	case *tcell.EventKey:
		return v.handleKey(ctx, ev.Key(), ev.Rune())
	}
	return true
}

func (v *View) handleKey(ctx context.Context, key tcell.Key, r rune) bool {
	var dir physics.Vector2
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyTab:
		if n := len(v.sim.Snapshot().Bodies); n > 0 {
			v.selected = (v.selected + 1) % n
		}
		return true
	case tcell.KeyLeft:
		dir = physics.Vec2(-1, 0)
	case tcell.KeyRight:
		dir = physics.Vec2(1, 0)
	case tcell.KeyUp:
		dir = physics.Vec2(0, 1)
	case tcell.KeyDown:
		dir = physics.Vec2(0, -1)
	case tcell.KeyRune:
		return r != 'q'
	default:
		return true
	}

	if screenDown(v.sim.Snapshot().Gravity) {
		dir.Y = -dir.Y
	}
	if err := v.sim.ApplyForce(ctx, v.selected, dir.Scale(v.push)); err != nil {
		v.log.Warn("push failed", log.Int("body", v.selected), log.Error(err))
	}
	return true
}

// Draw renders f, scaled to fit the screen with one status row at the bottom.
func (v *View) Draw(f runner.Frame) {
	v.screen.Clear()
	w, h := v.screen.Size()
	if w < 3 || h < 3 {
		v.screen.Show()
		return
	}

	vp := newViewport(f, w, h-1)
	if f.Bounds != nil {
		v.drawBox(vp, *f.Bounds)
	}
	for i, b := range f.Bodies {
		style := styleBody
		if i == v.selected {
			style = styleSelected
		}
		v.drawBody(vp, b, style)
	}
	v.drawStatus(f, w, h-1)
	v.screen.Show()
}

func (v *View) drawBox(vp viewport, b physics.Bounds) {
	x0, y0 := vp.cell(b.Min)
	x1, y1 := vp.cell(b.Max)
	x0, x1 = min(x0, x1), max(x0, x1)
	y0, y1 = min(y0, y1), max(y0, y1)
	for x := x0; x <= x1; x++ {
		v.screen.SetContent(x, y0, tcell.RuneHLine, nil, styleBounds)
		v.screen.SetContent(x, y1, tcell.RuneHLine, nil, styleBounds)
	}
	for y := y0; y <= y1; y++ {
		v.screen.SetContent(x0, y, tcell.RuneVLine, nil, styleBounds)
		v.screen.SetContent(x1, y, tcell.RuneVLine, nil, styleBounds)
	}
	v.screen.SetContent(x0, y0, tcell.RuneULCorner, nil, styleBounds)
	v.screen.SetContent(x1, y0, tcell.RuneURCorner, nil, styleBounds)
	v.screen.SetContent(x0, y1, tcell.RuneLLCorner, nil, styleBounds)
	v.screen.SetContent(x1, y1, tcell.RuneLRCorner, nil, styleBounds)
}

func (v *View) drawBody(vp viewport, b physics.Body, style tcell.Style) {
	box := b.AABB()
	x0, y0 := vp.cell(box.Min)
	x1, y1 := vp.cell(box.Max)
	x0, x1 = min(x0, x1), max(x0, x1)
	y0, y1 = min(y0, y1), max(y0, y1)

	drawn := false
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if b.Shape.Kind() == physics.ShapeCircle {
				p := vp.world(x, y)
				if p.Sub(b.Position).Magnitude() > b.Shape.Radius() {
					continue
				}
			}
			v.screen.SetContent(x, y, '█', nil, style)
			drawn = true
		}
	}
	if !drawn {
		cx, cy := vp.cell(b.Position)
		v.screen.SetContent(cx, cy, '●', nil, style)
	}
}

func (v *View) drawStatus(f runner.Frame, w, row int) {
	status := fmt.Sprintf(" seq %d  t %.2fs  dt %.4f  bodies %d  body %d  hash %016x ",
		f.Seq, f.Time, f.DT, len(f.Bodies), v.selected, f.Hash)
	x := 0
	for _, r := range status {
		if x >= w {
			break
		}
		v.screen.SetContent(x, row, r, nil, styleStatus)
		x++
	}
	for ; x < w; x++ {
		v.screen.SetContent(x, row, ' ', nil, styleStatus)
	}
}

// screenDown reports whether world y grows down the screen. Scenes with
// gravity pointing at +y are laid out in screen space.
func screenDown(gravity physics.Vector2) bool { return gravity.Y > 0 }

// viewport maps a world rectangle onto a w x h cell grid.
type viewport struct {
	origin physics.Vector2
	scale  physics.Vector2
	w, h   int
	down   bool
}

func newViewport(f runner.Frame, w, h int) viewport {
	lo, hi := extent(f)
	size := hi.Sub(lo)
	vp := viewport{origin: lo, w: w, h: h, down: screenDown(f.Gravity)}
	vp.scale = physics.Vec2(float64(w-1)/math.Max(size.X, 1), float64(h-1)/math.Max(size.Y, 1))
	return vp
}

// extent is the bounds when present, otherwise the box around every body.
func extent(f runner.Frame) (physics.Vector2, physics.Vector2) {
	if f.Bounds != nil {
		return f.Bounds.Min, f.Bounds.Max
	}
	if len(f.Bodies) == 0 {
		return physics.Zero, physics.Vec2(1, 1)
	}
	box := f.Bodies[0].AABB()
	lo, hi := box.Min, box.Max
	for _, b := range f.Bodies[1:] {
		box = b.AABB()
		lo = physics.Vec2(min(lo.X, box.Min.X), min(lo.Y, box.Min.Y))
		hi = physics.Vec2(max(hi.X, box.Max.X), max(hi.Y, box.Max.Y))
	}
	return lo, hi
}

func (vp viewport) cell(p physics.Vector2) (int, int) {
	d := p.Sub(vp.origin)
	x := int(math.Round(d.X * vp.scale.X))
	y := int(math.Round(d.Y * vp.scale.Y))
	if !vp.down {
		y = vp.h - 1 - y
	}
	return clamp(x, 0, vp.w-1), clamp(y, 0, vp.h-1)
}

// world is the world-space centre of cell (x, y).
func (vp viewport) world(x, y int) physics.Vector2 {
	if !vp.down {
		y = vp.h - 1 - y
	}
	return physics.Vec2(float64(x)/vp.scale.X, float64(y)/vp.scale.Y).Add(vp.origin)
}

func clamp(v, lo, hi int) int { return max(lo, min(v, hi)) }
