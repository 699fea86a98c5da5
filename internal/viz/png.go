package viz

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/railsim/internal/sim"
)

// SavePNG charts the named fields against time and writes the image to path. The
// format follows the file extension.
func SavePNG(path, title string, samples []sim.Sample, names []string) error {
	if len(samples) == 0 {
		return errors.New("no samples to plot")
	}
	if len(names) == 0 {
		names = []string{"pwr_out", "pwr_out_req"}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Add(plotter.NewGrid())

	times := Times(samples)
	for i, name := range names {
		f, err := FieldByName(name)
		if err != nil {
			return err
		}
		ys := f.Series(samples)
		xys := make(plotter.XYs, len(samples))
		for j := range xys {
			xys[j].X = times[j]
			xys[j].Y = ys[j]
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "field %s", name)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(f.Label(), line)
	}
	if len(names) == 1 {
		f, _ := FieldByName(names[0])
		p.Y.Label.Text = f.Label()
	}
	p.Legend.Top = true

	return errors.Wrap(p.Save(10*vg.Inch, 5*vg.Inch, path), "save plot")
}
