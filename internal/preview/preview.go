// Package preview renders a still image of a normalized path set so the
// requester can see the plotted geometry alongside the camera footage.
package preview

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/inkworks/plotbot/internal/path"
)

// Renderer draws path sets to PNG files.
type Renderer struct {
	// Size is the output edge length; the canvas is square because the
	// device range is shared across axes. Defaults to 12cm.
	Size vg.Length
}

func (r *Renderer) size() vg.Length {
	if r.Size > 0 {
		return r.Size
	}
	return 12 * vg.Centimeter
}

// Render writes a PNG of ps to outPath with the axes fixed to the device
// range, one line per stroke. Only the first two axes are drawn.
func (r *Renderer) Render(ps path.PathSet, rng path.Range, outPath string) error {
	p := plot.New()
	p.Title.Text = "plotted path"
	p.X.Min, p.X.Max = rng.Min, rng.Max
	p.Y.Min, p.Y.Max = rng.Min, rng.Max
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	for _, t := range ps {
		for _, s := range t.Strokes {
			xys := make(plotter.XYs, 0, len(s))
			for _, pt := range s {
				if len(pt) < 2 {
					return fmt.Errorf("stroke point has %d axes, need at least 2", len(pt))
				}
				xys = append(xys, plotter.XY{X: pt[0], Y: pt[1]})
			}
			line, err := plotter.NewLine(xys)
			if err != nil {
				return fmt.Errorf("build stroke line: %w", err)
			}
			line.Color = color.RGBA{R: 20, G: 20, B: 160, A: 255}
			p.Add(line)
		}
	}

	if err := p.Save(r.size(), r.size(), outPath); err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	return nil
}
