package cluster

import (
	"fmt"
	"image/color"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// matrixGrid exposes a dense matrix as a heat map grid with row 0 drawn at
// the top.
type matrixGrid struct{ m *mat.Dense }

func (g matrixGrid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g matrixGrid) Z(c, r int) float64 {
	rows, _ := g.m.Dims()
	return g.m.At(rows-1-r, c)
}

func (g matrixGrid) X(c int) float64 { return float64(c) }
func (g matrixGrid) Y(r int) float64 { return float64(r) }

// SaveConfusionPNG renders a label×cluster confusion matrix with per-cell
// counts.
func SaveConfusionPNG(cm *mat.Dense, path, title string) error {
	rows, cols := cm.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("empty confusion matrix")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "cluster"
	p.Y.Label.Text = "label"

	hm := plotter.NewHeatMap(matrixGrid{cm}, palette.Heat(16, 1))
	if hm.Max == hm.Min {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	var xys plotter.XYs
	var texts []string
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			xys = append(xys, plotter.XY{X: float64(c), Y: float64(rows - 1 - r)})
			texts = append(texts, strconv.Itoa(int(cm.At(r, c))))
		}
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
	if err != nil {
		return err
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = draw.XCenter
		labels.TextStyle[i].YAlign = draw.YCenter
		labels.TextStyle[i].Color = color.Black
	}
	p.Add(labels)

	ticks := func(n int, flip bool) []plot.Tick {
		ts := make([]plot.Tick, n)
		for i := range ts {
			v := i
			if flip {
				v = n - 1 - i
			}
			ts[i] = plot.Tick{Value: float64(i), Label: strconv.Itoa(v)}
		}
		return ts
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks(cols, false))
	p.Y.Tick.Marker = plot.ConstantTicks(ticks(rows, true))

	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}

// SaveEmbeddingPNG scatters the first two principal components of x, one
// series per cluster.
func SaveEmbeddingPNG(x *mat.Dense, labels []int, path, title string) error {
	n, d := x.Dims()
	if n != len(labels) {
		return fmt.Errorf("%d rows vs %d labels", n, len(labels))
	}
	if d < 2 || n < 2 {
		return fmt.Errorf("need at least 2 samples of width 2, got %dx%d", n, d)
	}
	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return fmt.Errorf("principal component analysis failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	var proj mat.Dense
	proj.Mul(x, vecs.Slice(0, d, 0, 2))

	k := maxLabel(labels) + 1
	series := make([]plotter.XYs, k)
	for i, l := range labels {
		if l < 0 {
			continue
		}
		series[l] = append(series[l], plotter.XY{X: proj.At(i, 0), Y: proj.At(i, 1)})
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "PC1"
	p.Y.Label.Text = "PC2"
	for c, pts := range series {
		if len(pts) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Radius = vg.Length(1)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Color = plotutil.Color(c)
		p.Add(scatter)
	}
	return p.Save(8*vg.Inch, 8*vg.Inch, path)
}
