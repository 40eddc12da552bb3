package layers

import (
	"errors"
	"fmt"

	"sdae_lib/nn"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// NoiseKind selects a corruption policy.
type NoiseKind string

const (
	NoiseNone NoiseKind = "none"
	// NoiseDropout zeroes entries with probability Rate and rescales the
	// survivors by 1/(1-Rate).
	NoiseDropout NoiseKind = "dropout"
	// NoiseMask zeroes entries with probability Rate without rescaling.
	NoiseMask NoiseKind = "mask"
	// NoiseGaussian adds N(0, Rate²) noise.
	NoiseGaussian NoiseKind = "gaussian"
	// NoiseSaltPepper forces a fraction Rate of entries to 0 or 1.
	NoiseSaltPepper NoiseKind = "saltpepper"
)

// ErrNoise reports an invalid noise specification.
var ErrNoise = errors.New("invalid noise specification")

// NoiseSpec is a corruption policy applied in training mode only.
type NoiseSpec struct {
	Kind NoiseKind
	Rate float64
}

// Validate checks the rate range for the kind.
func (s NoiseSpec) Validate() error {
	switch s.Kind {
	case "", NoiseNone:
		return nil
	case NoiseDropout, NoiseMask, NoiseSaltPepper:
		if s.Rate < 0 || s.Rate >= 1 {
			return fmt.Errorf("%w: %s rate %g not in [0,1)", ErrNoise, s.Kind, s.Rate)
		}
	case NoiseGaussian:
		if s.Rate < 0 {
			return fmt.Errorf("%w: gaussian sigma %g is negative", ErrNoise, s.Rate)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrNoise, s.Kind)
	}
	return nil
}

// Disabled reports whether the spec can never change its input.
func (s NoiseSpec) Disabled() bool {
	return s.Kind == "" || s.Kind == NoiseNone || s.Rate == 0
}

func (s NoiseSpec) String() string {
	if s.Disabled() {
		return "none"
	}
	return fmt.Sprintf("%s(%g)", s.Kind, s.Rate)
}

// Corruption injects noise while training and is the identity otherwise.
type Corruption struct {
	spec     NoiseSpec
	src      rand.Source
	training bool
	gradMask *mat.Dense
}

// NewCorruption validates spec and binds it to a random source.
// Corruption starts in training mode.
func NewCorruption(spec NoiseSpec, src rand.Source) (*Corruption, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Corruption{spec: spec, src: src, training: true}, nil
}

// Spec returns the configured policy.
func (c *Corruption) Spec() NoiseSpec { return c.spec }

func (c *Corruption) SetTraining(training bool) { c.training = training }

// Forward corrupts x. A zero rate returns x untouched without drawing from
// the random source.
func (c *Corruption) Forward(x *mat.Dense) (*mat.Dense, error) {
	c.gradMask = nil
	if !c.training || c.spec.Disabled() {
		return x, nil
	}
	r, cols := x.Dims()
	out := mat.NewDense(r, cols, nil)
	switch c.spec.Kind {
	case NoiseDropout, NoiseMask:
		keep := distuv.Bernoulli{P: 1 - c.spec.Rate, Src: c.src}
		scale := 1.0
		if c.spec.Kind == NoiseDropout {
			scale = 1 / (1 - c.spec.Rate)
		}
		c.gradMask = mat.NewDense(r, cols, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < cols; j++ {
				m := keep.Rand() * scale
				c.gradMask.Set(i, j, m)
				out.Set(i, j, x.At(i, j)*m)
			}
		}
	case NoiseGaussian:
		noise := distuv.Normal{Mu: 0, Sigma: c.spec.Rate, Src: c.src}
		out.Apply(func(_, _ int, v float64) float64 { return v + noise.Rand() }, x)
	case NoiseSaltPepper:
		hit := distuv.Bernoulli{P: c.spec.Rate, Src: c.src}
		salt := distuv.Bernoulli{P: 0.5, Src: c.src}
		c.gradMask = mat.NewDense(r, cols, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < cols; j++ {
				if hit.Rand() == 1 {
					out.Set(i, j, salt.Rand())
					continue
				}
				c.gradMask.Set(i, j, 1)
				out.Set(i, j, x.At(i, j))
			}
		}
	}
	return out, nil
}

// Backward passes gradients through the entries that survived corruption.
func (c *Corruption) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	if c.gradMask == nil {
		return gradOut, nil
	}
	r, cols := gradOut.Dims()
	gradIn := mat.NewDense(r, cols, nil)
	gradIn.MulElem(gradOut, c.gradMask)
	return gradIn, nil
}

func (c *Corruption) Params() []*nn.Param { return nil }

func (c *Corruption) Tag() string { return "Corruption_" + c.spec.String() }
