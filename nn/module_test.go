package nn

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// dummy layer: adds a constant
type addLayer struct {
	c        float64
	p        *Param
	training bool
}

func (l *addLayer) Forward(x *mat.Dense) (*mat.Dense, error) {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return v + l.c }, x)
	return &out, nil
}
func (l *addLayer) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	return gradOut, nil
}
func (l *addLayer) Params() []*Param {
	if l.p == nil {
		return nil
	}
	return []*Param{l.p}
}
func (l *addLayer) SetTraining(training bool) { l.training = training }

// dummy layer: error on forward
type errLayer struct{}

func (l *errLayer) Forward(x *mat.Dense) (*mat.Dense, error) {
	return nil, errors.New("fail")
}
func (l *errLayer) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	return nil, ErrNoCache
}
func (l *errLayer) Params() []*Param { return nil }

func TestSequentialPlain(t *testing.T) {
	a := mat.NewDense(1, 1, []float64{1})
	seq := &Sequential{Layers: []Module{&addLayer{c: 2}, &addLayer{c: 3}}}
	out, err := seq.Forward(a)
	if err != nil {
		t.Fatal(err)
	}
	if out.At(0, 0) != 6 {
		t.Fatalf("expected 6, got %f", out.At(0, 0))
	}
	g, err := seq.Backward(mat.NewDense(1, 1, []float64{0.5}))
	if err != nil {
		t.Fatal(err)
	}
	if g.At(0, 0) != 0.5 {
		t.Fatalf("expected gradient 0.5, got %f", g.At(0, 0))
	}
}

func TestSequentialErrors(t *testing.T) {
	seq := &Sequential{Layers: []Module{&addLayer{c: 0}, &errLayer{}}}
	if _, err := seq.Forward(mat.NewDense(1, 1, nil)); err == nil {
		t.Errorf("expected forward error")
	}
	if _, err := seq.Backward(mat.NewDense(1, 1, nil)); !errors.Is(err, ErrNoCache) {
		t.Errorf("expected ErrNoCache, got %v", err)
	}
}

func TestSequentialParamsAndMode(t *testing.T) {
	a := &addLayer{p: NewParam("a", 1, 1)}
	b := &addLayer{p: NewParam("b", 2, 2)}
	seq := &Sequential{Layers: []Module{a, &errLayer{}, b}}
	ps := seq.Params()
	if len(ps) != 2 || ps[0].Name != "a" || ps[1].Name != "b" {
		t.Fatalf("unexpected params %v", ps)
	}
	seq.SetTraining(true)
	if !a.training || !b.training {
		t.Errorf("SetTraining did not reach every layer")
	}
}

func TestTrainableSkipsFrozen(t *testing.T) {
	ps := []*Param{NewParam("a", 1, 1), NewParam("b", 1, 1)}
	SetFrozen(ps[:1], true)
	tr := Trainable(ps)
	if len(tr) != 1 || tr[0].Name != "b" {
		t.Fatalf("Trainable = %v", tr)
	}
}

func TestMSELoss(t *testing.T) {
	pred := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	target := mat.NewDense(2, 2, []float64{1, 0, 3, 0})
	l, err := MSELoss{}.Forward(pred, target)
	if err != nil {
		t.Fatal(err)
	}
	if want := (4.0 + 16.0) / 4; math.Abs(l-want) > 1e-12 {
		t.Errorf("mse = %f, want %f", l, want)
	}
	g, err := MSELoss{}.Backward(pred, target)
	if err != nil {
		t.Fatal(err)
	}
	if g.At(0, 1) != 1 || g.At(1, 1) != 2 || g.At(0, 0) != 0 {
		t.Errorf("grad = %v", mat.Formatted(g))
	}
	if _, err := (MSELoss{}).Forward(pred, mat.NewDense(1, 2, nil)); err == nil {
		t.Errorf("expected shape error")
	}
}

// numericGrad checks an analytic loss gradient against central differences.
func numericGrad(t *testing.T, loss Loss, pred, target *mat.Dense) {
	t.Helper()
	g, err := loss.Backward(pred, target)
	if err != nil {
		t.Fatal(err)
	}
	const h = 1e-6
	r, c := pred.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := pred.At(i, j)
			pred.Set(i, j, v+h)
			up, _ := loss.Forward(pred, target)
			pred.Set(i, j, v-h)
			down, _ := loss.Forward(pred, target)
			pred.Set(i, j, v)
			if num := (up - down) / (2 * h); math.Abs(num-g.At(i, j)) > 1e-5 {
				t.Errorf("%s grad[%d][%d] = %g, numeric %g", loss, i, j, g.At(i, j), num)
			}
		}
	}
}

func TestLossGradients(t *testing.T) {
	pred := mat.NewDense(2, 3, []float64{0.2, 0.7, 0.5, 0.9, 0.1, 0.4})
	target := mat.NewDense(2, 3, []float64{0, 1, 1, 1, 0, 0})
	for _, name := range []string{"mse", "bce"} {
		loss, err := NewLoss(name)
		if err != nil {
			t.Fatal(err)
		}
		numericGrad(t, loss, pred, target)
	}
	if _, err := NewLoss("hinge"); err == nil {
		t.Errorf("expected unsupported loss error")
	}
}

func TestSGDMomentum(t *testing.T) {
	p := NewParam("w", 1, 1)
	p.Value.Set(0, 0, 1)
	opt, err := NewOptimizer("sgd", []*Param{p}, 0.1, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	p.Grad.Set(0, 0, 1)
	opt.Step() // v=1, w=0.9
	opt.Step() // v=1.9, w=0.71
	if got := p.Value.At(0, 0); math.Abs(got-0.71) > 1e-12 {
		t.Errorf("w = %f, want 0.71", got)
	}
	opt.ZeroGrad()
	if p.Grad.At(0, 0) != 0 {
		t.Errorf("ZeroGrad left %f", p.Grad.At(0, 0))
	}
}

func TestOptimizerSkipsFrozen(t *testing.T) {
	for _, name := range []string{"sgd", "adam"} {
		live, frozen := NewParam("live", 1, 1), NewParam("frozen", 1, 1)
		frozen.Frozen = true
		opt, err := NewOptimizer(name, []*Param{live, frozen}, 0.1, 0.9)
		if err != nil {
			t.Fatal(err)
		}
		live.Grad.Set(0, 0, 1)
		frozen.Grad.Set(0, 0, 1)
		if err := opt.Step(); err != nil {
			t.Fatal(err)
		}
		if live.Value.At(0, 0) >= 0 {
			t.Errorf("%s: live param not updated", name)
		}
		if frozen.Value.At(0, 0) != 0 {
			t.Errorf("%s: frozen param moved to %f", name, frozen.Value.At(0, 0))
		}
	}
}

func TestAdamFirstStep(t *testing.T) {
	p := NewParam("w", 1, 2)
	p.Grad.Set(0, 0, 3)
	p.Grad.Set(0, 1, -0.01)
	opt := NewAdam([]*Param{p}, 0.01)
	opt.Step()
	// the first bias-corrected Adam step has magnitude lr regardless of |g|
	if math.Abs(p.Value.At(0, 0)+0.01) > 1e-6 || math.Abs(p.Value.At(0, 1)-0.01) > 1e-6 {
		t.Errorf("after one step w = %v", p.Value.RawRowView(0))
	}
}

func TestOptimizerValidation(t *testing.T) {
	if _, err := NewOptimizer("sgd", nil, 0, 0); err == nil {
		t.Errorf("expected error for zero learning rate")
	}
	if _, err := NewOptimizer("rmsprop", nil, 0.1, 0); err == nil {
		t.Errorf("expected error for unknown optimizer")
	}
}

func TestStepLR(t *testing.T) {
	opt := NewSGD(nil, 1, 0)
	sched := &StepLR{Opt: opt, StepSize: 2, Gamma: 0.1}
	want := []float64{1, 0.1, 0.1, 0.01}
	for i, w := range want {
		sched.Step()
		if math.Abs(opt.LearningRate()-w) > 1e-12 {
			t.Fatalf("after epoch %d lr = %g, want %g", i+1, opt.LearningRate(), w)
		}
	}
	var nilSched *StepLR
	nilSched.Step()
	(&StepLR{Opt: opt}).Step()
	if math.Abs(opt.LearningRate()-0.01) > 1e-12 {
		t.Errorf("disabled scheduler changed lr")
	}
}

func TestBCEClampedPredictionsHaveNoGradient(t *testing.T) {
	pred := mat.NewDense(1, 4, []float64{1.5, -0.5, 1, 0.3})
	target := mat.NewDense(1, 4, []float64{1, 0, 0, 1})
	l, err := BCELoss{}.Forward(pred, target)
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(l) || math.IsInf(l, 0) {
		t.Fatalf("loss %g is not finite", l)
	}
	g, err := BCELoss{}.Backward(pred, target)
	if err != nil {
		t.Fatal(err)
	}
	for j := 0; j < 3; j++ {
		if g.At(0, j) != 0 {
			t.Errorf("grad[%d] = %g for clamped prediction %g, want 0", j, g.At(0, j), pred.At(0, j))
		}
	}
	// in range, the gradient pulls p towards the target
	if g.At(0, 3) >= 0 {
		t.Errorf("grad[3] = %g, want negative", g.At(0, 3))
	}
}
