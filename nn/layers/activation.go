package layers

import (
	"fmt"
	"math"

	"sdae_lib/nn"

	"gonum.org/v1/gonum/mat"
)

// Activator is an element-wise nonlinearity.
type Activator interface {
	Activate(x float64) float64
	// Derivative is d(Activate)/dx given the input x and output y.
	Derivative(x, y float64) float64
	// Gain is the recommended Xavier gain for layers feeding this function.
	Gain() float64
	fmt.Stringer
}

// ActivatorLookup maps configuration names to activators. "none" and the
// empty string mean no activation layer at all.
var ActivatorLookup = map[string]Activator{
	"sigmoid":   Sigmoid{},
	"tanh":      Tanh{},
	"relu":      ReLU{},
	"leakyrelu": LeakyReLU{Slope: 0.01},
	"identity":  Identity{},
}

// IsNone reports whether name selects no activation.
func IsNone(name string) bool {
	return name == "" || name == "none"
}

// GainFor returns the Xavier gain for an activation name, 1 for none.
func GainFor(name string) float64 {
	if act, ok := ActivatorLookup[name]; ok {
		return act.Gain()
	}
	return 1
}

type Sigmoid struct{}

func (Sigmoid) Activate(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

func (Sigmoid) Derivative(_, y float64) float64 { return y * (1 - y) }

func (Sigmoid) Gain() float64 { return 1 }

func (Sigmoid) String() string { return "sigmoid" }

type Tanh struct{}

func (Tanh) Activate(x float64) float64 { return math.Tanh(x) }

func (Tanh) Derivative(_, y float64) float64 { return 1 - y*y }

func (Tanh) Gain() float64 { return 5.0 / 3.0 }

func (Tanh) String() string { return "tanh" }

type ReLU struct{}

func (ReLU) Activate(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

func (ReLU) Derivative(x, _ float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func (ReLU) Gain() float64 { return math.Sqrt2 }

func (ReLU) String() string { return "relu" }

type LeakyReLU struct {
	Slope float64
}

func (r LeakyReLU) Activate(x float64) float64 {
	if x < 0 {
		return r.Slope * x
	}
	return x
}

func (r LeakyReLU) Derivative(x, _ float64) float64 {
	if x < 0 {
		return r.Slope
	}
	return 1
}

func (r LeakyReLU) Gain() float64 { return math.Sqrt(2 / (1 + r.Slope*r.Slope)) }

func (LeakyReLU) String() string { return "leakyrelu" }

type Identity struct{}

func (Identity) Activate(x float64) float64 { return x }

func (Identity) Derivative(_, _ float64) float64 { return 1 }

func (Identity) Gain() float64 { return 1 }

func (Identity) String() string { return "identity" }

// Activation is a parameter-free layer applying an Activator.
type Activation struct {
	act        Activator
	lastInput  *mat.Dense
	lastOutput *mat.Dense
}

// NewActivation creates an activation layer by name.
func NewActivation(name string) (*Activation, error) {
	act, ok := ActivatorLookup[name]
	if !ok {
		return nil, fmt.Errorf("unsupported activation: %s", name)
	}
	return &Activation{act: act}, nil
}

func (a *Activation) Forward(x *mat.Dense) (*mat.Dense, error) {
	r, c := x.Dims()
	y := mat.NewDense(r, c, nil)
	y.Apply(func(_, _ int, v float64) float64 { return a.act.Activate(v) }, x)
	a.lastInput = x
	a.lastOutput = y
	return y, nil
}

func (a *Activation) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	if a.lastInput == nil {
		return nil, fmt.Errorf("%s: %w", a.act, nn.ErrNoCache)
	}
	r, c := gradOut.Dims()
	if xr, xc := a.lastInput.Dims(); xr != r || xc != c {
		return nil, fmt.Errorf("%s: gradient shape %dx%d, want %dx%d", a.act, r, c, xr, xc)
	}
	gradIn := mat.NewDense(r, c, nil)
	gradIn.Apply(func(i, j int, g float64) float64 {
		return g * a.act.Derivative(a.lastInput.At(i, j), a.lastOutput.At(i, j))
	}, gradOut)
	return gradIn, nil
}

func (a *Activation) Params() []*nn.Param { return nil }

func (a *Activation) Tag() string { return "Activation_" + a.act.String() }
