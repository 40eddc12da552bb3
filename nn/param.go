package nn

import "gonum.org/v1/gonum/mat"

// Param is a trainable matrix together with its accumulated gradient.
// Frozen parameters are skipped when an optimizer collects its parameters.
type Param struct {
	Name   string
	Value  *mat.Dense
	Grad   *mat.Dense
	Frozen bool
}

// NewParam allocates a zero r×c parameter.
func NewParam(name string, r, c int) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(r, c, nil),
		Grad:  mat.NewDense(r, c, nil),
	}
}

// ZeroGrad resets the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// AccumulateGrad adds g to the gradient.
func (p *Param) AccumulateGrad(g mat.Matrix) {
	p.Grad.Add(p.Grad, g)
}

// Trainable returns the parameters that are not frozen.
func Trainable(ps []*Param) []*Param {
	out := make([]*Param, 0, len(ps))
	for _, p := range ps {
		if !p.Frozen {
			out = append(out, p)
		}
	}
	return out
}

// SetFrozen sets the frozen flag on every parameter.
func SetFrozen(ps []*Param, frozen bool) {
	for _, p := range ps {
		p.Frozen = frozen
	}
}
