package report

import (
	"fmt"
	"image/color"
	"path/filepath"

	"github.com/carbocation/pfx"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/jasonma1333/BMS2901Project/config"
	"github.com/jasonma1333/BMS2901Project/frame"
	"github.com/jasonma1333/BMS2901Project/model"
)

// orPoints adapts the exposure odds ratios to the plotter interfaces,
// with the confidence interval as horizontal error bars.
type orPoints struct {
	or, lo, hi []float64
}

func (p orPoints) Len() int                    { return len(p.or) }
func (p orPoints) XY(i int) (float64, float64) { return p.or[i], float64(i) }
func (p orPoints) XError(i int) (float64, float64) {
	return p.or[i] - p.lo[i], p.hi[i] - p.or[i]
}

// ForestPlot draws the exposure term's odds ratio and 95% CI for every
// fitted model, one row per model, with a reference line at OR=1.
func (e *Exporter) ForestPlot(fits []*model.Fit) error {
	pts := orPoints{}
	var names []string
	prefix := config.ExposureVar + "="
	for _, f := range fits {
		if f == nil || f.Status != model.Fitted {
			continue
		}
		for _, t := range f.Terms {
			if t.Name == config.ExposureVar || (len(t.Name) > len(prefix) && t.Name[:len(prefix)] == prefix) {
				pts.or = append(pts.or, t.OR)
				pts.lo = append(pts.lo, t.ORLower)
				pts.hi = append(pts.hi, t.ORUpper)
				names = append(names, f.Spec.Name)
				break
			}
		}
	}
	if pts.Len() == 0 {
		return fmt.Errorf("forest plot: no fitted model carries an exposure term")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s and %s: odds ratios", config.ExposureVar, config.OutcomeVar)
	p.X.Label.Text = "Odds ratio (95% CI)"
	p.NominalY(names...)

	bars, err := plotter.NewXErrorBars(struct {
		plotter.XYer
		plotter.XErrorer
	}{pts, pts})
	if err != nil {
		return pfx.Err(err)
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return pfx.Err(err)
	}
	scatter.GlyphStyle.Radius = vg.Points(3)

	ref, err := plotter.NewLine(plotter.XYs{
		{X: 1, Y: -0.5}, {X: 1, Y: float64(pts.Len()) - 0.5},
	})
	if err != nil {
		return pfx.Err(err)
	}
	ref.LineStyle.Color = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	ref.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}

	p.Add(ref, bars, scatter, plotter.NewGrid())

	return pfx.Err(p.Save(6*vg.Inch, 4*vg.Inch, filepath.Join(e.Dir, "forest_or.png")))
}

// AgeHistogram draws the cohort age distribution, one histogram per
// exposure group.
func (e *Exporter) AgeHistogram(cohort *frame.Table) error {
	age := cohort.Col(config.AgeVar)
	ex := cohort.Col(config.ExposureVar)
	if age == nil || age.Kind != frame.Numeric {
		return fmt.Errorf("age histogram: no numeric %s column", config.AgeVar)
	}

	p := plot.New()
	p.Title.Text = "Age distribution by exposure group"
	p.X.Label.Text = "Age (years)"
	p.Y.Label.Text = "Count"

	fills := []color.Color{
		color.RGBA{R: 70, G: 130, B: 180, A: 160},
		color.RGBA{R: 220, G: 90, B: 70, A: 160},
	}

	groups := []string{""}
	if ex != nil && ex.IsFactor() {
		groups = ex.ObservedLevels()
	}
	for k, g := range groups {
		var vals plotter.Values
		for i := 0; i < cohort.NumRow(); i++ {
			if !age.Floats[i].Valid {
				continue
			}
			if g != "" && (!ex.Strings[i].Valid || ex.Strings[i].String != g) {
				continue
			}
			vals = append(vals, age.Floats[i].Float64)
		}
		if len(vals) == 0 {
			continue
		}
		h, err := plotter.NewHist(vals, 16)
		if err != nil {
			return pfx.Err(err)
		}
		h.FillColor = fills[k%len(fills)]
		p.Add(h)
		if g != "" {
			p.Legend.Add(fmt.Sprintf("%s=%s", config.ExposureVar, g), h)
		}
	}

	return pfx.Err(p.Save(6*vg.Inch, 4*vg.Inch, filepath.Join(e.Dir, "age_distribution.png")))
}
