package path

import "fmt"

// Range is the safe physical output bound of the machine. The same bound
// applies to every axis; the normalizer computes one combined min/max across
// all axes so that rescaling preserves aspect ratio instead of stretching
// each axis independently.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Validate rejects inverted or zero-width ranges.
func (r Range) Validate() error {
	if r.Max <= r.Min {
		return fmt.Errorf("invalid device range [%v, %v]: max must exceed min", r.Min, r.Max)
	}
	return nil
}

// Mid returns the midpoint of the range.
func (r Range) Mid() float64 {
	return (r.Min + r.Max) / 2
}

// Normalize rescales ps so every axis value lies within r. The device bounds
// participate in the observed min/max, so a path already inside the range is
// returned unchanged (no floating-point drift on valid paths). Otherwise a
// single affine map, shared by all axes, carries [observedMin, observedMax]
// onto [r.Min, r.Max]. The output has the same turtle/stroke/point counts as
// the input; the input is never mutated.
func Normalize(ps PathSet, r Range) PathSet {
	observedMin, observedMax := r.Min, r.Max
	for _, t := range ps {
		for _, s := range t.Strokes {
			for _, p := range s {
				for _, v := range p {
					if v < observedMin {
						observedMin = v
					}
					if v > observedMax {
						observedMax = v
					}
				}
			}
		}
	}

	if observedMin == r.Min && observedMax == r.Max {
		return ps
	}

	// A degenerate spread can only happen when the device range itself is
	// degenerate; map everything to the midpoint rather than divide by zero.
	scale := func(v float64) float64 {
		if observedMax == observedMin {
			return r.Mid()
		}
		return r.Min + (r.Max-r.Min)*(v-observedMin)/(observedMax-observedMin)
	}

	out := ps.Clone()
	for _, t := range out {
		for _, s := range t.Strokes {
			for _, p := range s {
				for i, v := range p {
					p[i] = scale(v)
				}
			}
		}
	}
	return out
}
