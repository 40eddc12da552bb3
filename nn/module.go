package nn

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrNoCache is returned by Backward when no Forward preceded it.
var ErrNoCache = errors.New("no cached input for backward pass")

// Module defines a single layer/unit in the network.
// Batches are row-major: one sample per row.
type Module interface {
	Forward(x *mat.Dense) (*mat.Dense, error)
	// Backward computes gradients and propagates them.
	// It takes the gradient of the loss with respect to the module's output,
	// accumulates parameter gradients, and returns the gradient of the loss
	// with respect to the module's input.
	Backward(gradOut *mat.Dense) (*mat.Dense, error)
	Params() []*Param
}

// ModeSetter is implemented by modules that behave differently while
// training (noise injection).
type ModeSetter interface {
	SetTraining(training bool)
}

// Sequential chains multiple Modules in order.
type Sequential struct {
	Layers []Module
}

// Forward applies each layer in sequence.
func (s *Sequential) Forward(x *mat.Dense) (*mat.Dense, error) {
	var err error
	out := x
	for _, layer := range s.Layers {
		out, err = layer.Forward(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Backward applies Backward in reverse order.
func (s *Sequential) Backward(grad *mat.Dense) (*mat.Dense, error) {
	var err error
	out := grad
	for i := len(s.Layers) - 1; i >= 0; i-- {
		out, err = s.Layers[i].Backward(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Params concatenates Params() of all layers.
func (s *Sequential) Params() []*Param {
	var ps []*Param
	for _, layer := range s.Layers {
		ps = append(ps, layer.Params()...)
	}
	return ps
}

// SetTraining propagates the mode to every layer that cares.
func (s *Sequential) SetTraining(training bool) {
	for _, layer := range s.Layers {
		if m, ok := layer.(ModeSetter); ok {
			m.SetTraining(training)
		}
	}
}
