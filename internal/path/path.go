// Package path defines the geometry produced by the drawing-code executor
// and consumed by the plotter: an ordered set of turtles, each owning a set
// of poly-line strokes. It also provides the coordinate normalizer that
// rescales a path set into the machine's safe physical range.
package path

import "fmt"

// Point is one pen position. All points in a PathSet share the same arity;
// the plotter in this repo is two-axis, but nothing below assumes that.
type Point []float64

// Stroke is a poly-line: an ordered sequence of points drawn without lifting
// the pen.
type Stroke []Point

// Turtle is a named drawing pass producing one or more strokes.
type Turtle struct {
	Name    string
	Strokes []Stroke
}

// PathSet is everything one submitted program drew, in draw order.
type PathSet []Turtle

// Validate checks the uniform-arity invariant: every point across the whole
// set carries the same number of axis values.
func (ps PathSet) Validate() error {
	arity := -1
	for _, t := range ps {
		for _, s := range t.Strokes {
			for _, p := range s {
				if arity == -1 {
					arity = len(p)
					continue
				}
				if len(p) != arity {
					return fmt.Errorf("turtle %q: point arity %d does not match %d", t.Name, len(p), arity)
				}
			}
		}
	}
	return nil
}

// Points returns the total number of points in the set.
func (ps PathSet) Points() int {
	n := 0
	for _, t := range ps {
		for _, s := range t.Strokes {
			n += len(s)
		}
	}
	return n
}

// Clone returns a deep copy with the same shape and values.
func (ps PathSet) Clone() PathSet {
	out := make(PathSet, len(ps))
	for i, t := range ps {
		ct := Turtle{Name: t.Name, Strokes: make([]Stroke, len(t.Strokes))}
		for j, s := range t.Strokes {
			cs := make(Stroke, len(s))
			for k, p := range s {
				cp := make(Point, len(p))
				copy(cp, p)
				cs[k] = cp
			}
			ct.Strokes[j] = cs
		}
		out[i] = ct
	}
	return out
}
