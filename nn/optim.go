package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	Step() error
	ZeroGrad()
	LearningRate() float64
	SetLearningRate(lr float64)
}

// NewOptimizer builds an optimizer over the non-frozen subset of ps.
// momentum is the SGD momentum; Adam uses its usual defaults.
func NewOptimizer(name string, ps []*Param, lr, momentum float64) (Optimizer, error) {
	if lr <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %g", lr)
	}
	switch name {
	case "sgd":
		return NewSGD(ps, lr, momentum), nil
	case "adam":
		return NewAdam(ps, lr), nil
	default:
		return nil, fmt.Errorf("unsupported optimizer: %s", name)
	}
}

// SGD is stochastic gradient descent with classical momentum.
type SGD struct {
	params   []*Param
	lr       float64
	momentum float64
	velocity []*mat.Dense
}

// NewSGD collects the trainable parameters of ps.
func NewSGD(ps []*Param, lr, momentum float64) *SGD {
	params := Trainable(ps)
	s := &SGD{params: params, lr: lr, momentum: momentum, velocity: make([]*mat.Dense, len(params))}
	for i, p := range params {
		r, c := p.Value.Dims()
		s.velocity[i] = mat.NewDense(r, c, nil)
	}
	return s
}

// Step applies v <- momentum*v + g; w <- w - lr*v.
func (s *SGD) Step() error {
	for i, p := range s.params {
		v := s.velocity[i]
		v.Scale(s.momentum, v)
		v.Add(v, p.Grad)
		p.Value.Sub(p.Value, scaled(s.lr, v))
	}
	return nil
}

func (s *SGD) ZeroGrad() {
	for _, p := range s.params {
		p.ZeroGrad()
	}
}

func (s *SGD) LearningRate() float64      { return s.lr }
func (s *SGD) SetLearningRate(lr float64) { s.lr = lr }

// Adam implements Kingma & Ba with bias correction.
type Adam struct {
	params       []*Param
	lr           float64
	beta1, beta2 float64
	eps          float64
	t            int
	m, v         []*mat.Dense
}

// NewAdam collects the trainable parameters of ps.
func NewAdam(ps []*Param, lr float64) *Adam {
	params := Trainable(ps)
	a := &Adam{
		params: params,
		lr:     lr,
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-8,
		m:      make([]*mat.Dense, len(params)),
		v:      make([]*mat.Dense, len(params)),
	}
	for i, p := range params {
		r, c := p.Value.Dims()
		a.m[i] = mat.NewDense(r, c, nil)
		a.v[i] = mat.NewDense(r, c, nil)
	}
	return a
}

func (a *Adam) Step() error {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	for i, p := range a.params {
		m, v := a.m[i], a.v[i]
		r, c := p.Value.Dims()
		for y := 0; y < r; y++ {
			for x := 0; x < c; x++ {
				g := p.Grad.At(y, x)
				mv := a.beta1*m.At(y, x) + (1-a.beta1)*g
				vv := a.beta2*v.At(y, x) + (1-a.beta2)*g*g
				m.Set(y, x, mv)
				v.Set(y, x, vv)
				step := a.lr * (mv / c1) / (math.Sqrt(vv/c2) + a.eps)
				p.Value.Set(y, x, p.Value.At(y, x)-step)
			}
		}
	}
	return nil
}

func (a *Adam) ZeroGrad() {
	for _, p := range a.params {
		p.ZeroGrad()
	}
}

func (a *Adam) LearningRate() float64      { return a.lr }
func (a *Adam) SetLearningRate(lr float64) { a.lr = lr }

// StepLR decays the learning rate by Gamma every StepSize epochs.
// A zero StepSize disables it.
type StepLR struct {
	Opt      Optimizer
	StepSize int
	Gamma    float64
	epoch    int
}

// Step records the end of an epoch.
func (s *StepLR) Step() {
	if s == nil || s.StepSize <= 0 {
		return
	}
	s.epoch++
	if s.epoch%s.StepSize == 0 {
		s.Opt.SetLearningRate(s.Opt.LearningRate() * s.Gamma)
	}
}

func scaled(f float64, m mat.Matrix) *mat.Dense {
	var o mat.Dense
	o.Scale(f, m)
	return &o
}
