package layers

import (
	"fmt"
	"math"

	"sdae_lib/nn"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Linear is a fully-connected layer y = x·Wᵀ + b.
//
// A tied Linear shares W with another layer and computes y = x·W + b, which
// makes it the transpose of its source. Only the source owns (and reports)
// the shared weight, so an optimizer updates it once.
type Linear struct {
	W, B *nn.Param

	transposed bool
	lastInput  *mat.Dense
}

// NewLinear(inDim→outDim) allocates zero W (outDim×inDim) and B (1×outDim).
func NewLinear(inDim, outDim int) *Linear {
	return &Linear{
		W: nn.NewParam("weight", outDim, inDim),
		B: nn.NewParam("bias", 1, outDim),
	}
}

// NewTiedLinear returns the transpose of src sharing its weight.
func NewTiedLinear(src *Linear) *Linear {
	return &Linear{
		W:          src.W,
		B:          nn.NewParam("bias", 1, src.InDim()),
		transposed: true,
	}
}

// InDim is the input width.
func (l *Linear) InDim() int {
	r, c := l.W.Value.Dims()
	if l.transposed {
		return r
	}
	return c
}

// OutDim is the output width.
func (l *Linear) OutDim() int {
	r, c := l.W.Value.Dims()
	if l.transposed {
		return c
	}
	return r
}

// Tied reports whether the weight is borrowed from another layer.
func (l *Linear) Tied() bool { return l.transposed }

// Init applies Xavier-uniform initialisation scaled by gain and zeroes the
// bias. Tied layers only reset their bias.
func (l *Linear) Init(gain float64, src rand.Source) {
	l.B.Value.Zero()
	if l.transposed {
		return
	}
	r, c := l.W.Value.Dims()
	a := gain * math.Sqrt(6.0/float64(r+c))
	dist := distuv.Uniform{Min: -a, Max: a, Src: src}
	raw := l.W.Value.RawMatrix()
	for i := 0; i < r; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+c]
		for j := range row {
			row[j] = dist.Rand()
		}
	}
}

// Forward computes y = x·Wᵀ + b for a batch (one sample per row).
func (l *Linear) Forward(x *mat.Dense) (*mat.Dense, error) {
	n, in := x.Dims()
	if in != l.InDim() {
		return nil, fmt.Errorf("%s: input width %d, want %d", l.Tag(), in, l.InDim())
	}
	l.lastInput = x
	y := mat.NewDense(n, l.OutDim(), nil)
	if l.transposed {
		y.Mul(x, l.W.Value)
	} else {
		y.Mul(x, l.W.Value.T())
	}
	b := l.B.Value.RawRowView(0)
	for i := 0; i < n; i++ {
		floats.Add(y.RawRowView(i), b)
	}
	return y, nil
}

// Backward accumulates dL/dW, dL/db and returns dL/dx.
func (l *Linear) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	x := l.lastInput
	if x == nil {
		return nil, fmt.Errorf("%s: %w", l.Tag(), nn.ErrNoCache)
	}
	n, out := gradOut.Dims()
	if xn, _ := x.Dims(); xn != n || out != l.OutDim() {
		return nil, fmt.Errorf("%s: gradient shape %dx%d does not match forward batch", l.Tag(), n, out)
	}

	var gradW mat.Dense
	if l.transposed {
		gradW.Mul(x.T(), gradOut)
	} else {
		gradW.Mul(gradOut.T(), x)
	}
	l.W.AccumulateGrad(&gradW)

	gb := l.B.Grad.RawRowView(0)
	for i := 0; i < n; i++ {
		floats.Add(gb, gradOut.RawRowView(i))
	}

	gradIn := mat.NewDense(n, l.InDim(), nil)
	if l.transposed {
		gradIn.Mul(gradOut, l.W.Value.T())
	} else {
		gradIn.Mul(gradOut, l.W.Value)
	}
	return gradIn, nil
}

// Params reports B, plus W when the layer owns it.
func (l *Linear) Params() []*nn.Param {
	if l.transposed {
		return []*nn.Param{l.B}
	}
	return []*nn.Param{l.W, l.B}
}

// CopyFrom copies weight and bias values from src. Shapes must match.
func (l *Linear) CopyFrom(src *Linear) error {
	if src.InDim() != l.InDim() || src.OutDim() != l.OutDim() {
		return fmt.Errorf("copy %s into %s: shape mismatch", src.Tag(), l.Tag())
	}
	if src.transposed == l.transposed {
		l.W.Value.Copy(src.W.Value)
	} else {
		l.W.Value.Copy(src.W.Value.T())
	}
	l.B.Value.Copy(src.B.Value)
	return nil
}

func (l *Linear) Tag() string {
	return fmt.Sprintf("Linear_%d_%d", l.InDim(), l.OutDim())
}
