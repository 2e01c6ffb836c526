// Package turtle runs untrusted, user-submitted drawing programs and turns
// them into plotter paths. Programs are Lua source with a small
// turtle-graphics API; the interpreter is sandboxed to the base and math
// libraries and capped by an operation/point budget so a hostile script
// cannot wedge the machine.
package turtle

import (
	"context"
	"math"

	lua "github.com/Shopify/go-lua"

	"github.com/inkworks/plotbot/internal/path"
)

// ExecError reports that a submitted program failed to run. The message is
// shown verbatim to the requester.
type ExecError struct {
	Msg string
}

func (e *ExecError) Error() string {
	return "execution failed: " + e.Msg
}

// Executor compiles and runs drawing programs. The zero value is not usable;
// use NewExecutor.
type Executor struct {
	maxOps    int
	maxPoints int
}

// Budget defaults. A full-board drawing is a few thousand points; these caps
// leave generous headroom while bounding hostile scripts.
const (
	defaultMaxOps    = 1_000_000
	defaultMaxPoints = 50_000
)

// NewExecutor returns an Executor with the given budgets. Zero or negative
// values select the defaults.
func NewExecutor(maxOps, maxPoints int) *Executor {
	if maxOps <= 0 {
		maxOps = defaultMaxOps
	}
	if maxPoints <= 0 {
		maxPoints = defaultMaxPoints
	}
	return &Executor{maxOps: maxOps, maxPoints: maxPoints}
}

// recorder accumulates strokes as the script steers the pen.
type recorder struct {
	ctx       context.Context
	maxOps    int
	maxPoints int

	ops    int
	points int

	set     path.PathSet
	current path.Stroke

	x, y    float64
	heading float64 // degrees, 0 = +x, counter-clockwise
	penDown bool
}

func (r *recorder) turtle(name string) {
	r.flushStroke()
	r.set = append(r.set, path.Turtle{Name: name})
	r.x, r.y, r.heading, r.penDown = 0, 0, 0, true
}

func (r *recorder) flushStroke() {
	if len(r.current) == 0 {
		return
	}
	if len(r.set) == 0 {
		r.set = append(r.set, path.Turtle{Name: "main"})
	}
	t := &r.set[len(r.set)-1]
	t.Strokes = append(t.Strokes, r.current)
	r.current = nil
}

// moveTo moves the pen head, recording the segment if the pen is down.
func (r *recorder) moveTo(l *lua.State, x, y float64) {
	if r.penDown {
		if len(r.current) == 0 {
			r.record(l, r.x, r.y)
		}
		r.record(l, x, y)
	}
	r.x, r.y = x, y
}

func (r *recorder) record(l *lua.State, x, y float64) {
	r.points++
	if r.points > r.maxPoints {
		lua.Errorf(l, "drawing exceeds %d points", r.maxPoints)
	}
	r.current = append(r.current, path.Point{x, y})
}

// step is called on entry to every exposed function to charge the op budget
// and notice cancellation.
func (r *recorder) step(l *lua.State) {
	if err := r.ctx.Err(); err != nil {
		lua.Errorf(l, "execution cancelled")
	}
	r.ops++
	if r.ops > r.maxOps {
		lua.Errorf(l, "program exceeded %d operations", r.maxOps)
	}
}

func (r *recorder) register(l *lua.State) {
	l.Register("turtle", func(l *lua.State) int {
		r.step(l)
		r.turtle(lua.CheckString(l, 1))
		return 0
	})
	l.Register("up", func(l *lua.State) int {
		r.step(l)
		r.flushStroke()
		r.penDown = false
		return 0
	})
	l.Register("down", func(l *lua.State) int {
		r.step(l)
		r.penDown = true
		return 0
	})
	l.Register("moveto", func(l *lua.State) int {
		r.step(l)
		x := lua.CheckNumber(l, 1)
		y := lua.CheckNumber(l, 2)
		r.moveTo(l, x, y)
		return 0
	})
	l.Register("forward", func(l *lua.State) int {
		r.step(l)
		d := lua.CheckNumber(l, 1)
		rad := r.heading * math.Pi / 180
		r.moveTo(l, r.x+d*math.Cos(rad), r.y+d*math.Sin(rad))
		return 0
	})
	l.Register("turn", func(l *lua.State) int {
		r.step(l)
		r.heading += lua.CheckNumber(l, 1)
		return 0
	})
	l.Register("heading", func(l *lua.State) int {
		r.step(l)
		r.heading = lua.CheckNumber(l, 1)
		return 0
	})
	l.Register("position", func(l *lua.State) int {
		r.step(l)
		l.PushNumber(r.x)
		l.PushNumber(r.y)
		return 2
	})
}

// Execute runs source and returns the recorded paths. Any script fault,
// budget overrun, or cancellation is returned as *ExecError; the hardware is
// never touched from here.
func (e *Executor) Execute(ctx context.Context, source string) (path.PathSet, error) {
	l := lua.NewState()
	lua.Require(l, "_G", lua.BaseOpen, true)
	l.Pop(1)
	lua.Require(l, "math", lua.MathOpen, true)
	l.Pop(1)

	rec := &recorder{
		ctx:       ctx,
		maxOps:    e.maxOps,
		maxPoints: e.maxPoints,
		penDown:   true, // pen starts down so the simplest scripts draw
	}
	rec.register(l)

	if err := lua.DoString(l, source); err != nil {
		return nil, &ExecError{Msg: err.Error()}
	}
	rec.flushStroke()

	if err := rec.set.Validate(); err != nil {
		return nil, &ExecError{Msg: err.Error()}
	}
	return rec.set, nil
}
