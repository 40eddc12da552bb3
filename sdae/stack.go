package sdae

import (
	"fmt"

	"sdae_lib/nn"
	"sdae_lib/nn/layers"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// StackOptions configures a StackedDenoisingAutoencoder.
type StackOptions struct {
	// Activation is used by every hidden encoder and decoder unit.
	Activation string
	// FinalActivation is used by the bottleneck encoder unit and by the
	// decoder unit that reconstructs the input.
	FinalActivation string
	// Gain scales Xavier initialisation; zero selects the ReLU gain.
	Gain float64
	Tied bool
	Seed uint64
}

// DefaultStackOptions are ReLU hidden units with linear bottleneck and output.
func DefaultStackOptions() StackOptions {
	return StackOptions{Activation: "relu", FinalActivation: "none", Seed: 42}
}

// StackedDenoisingAutoencoder composes layers d0→d1→…→dn into an encoder and
// the mirrored decoder dn→…→d0.
type StackedDenoisingAutoencoder struct {
	Layers []*DenoisingAutoencoder

	dims    []int
	opts    StackOptions
	encoder *nn.Sequential
	decoder *nn.Sequential
}

// NewStackedDenoisingAutoencoder builds a stack for dims (at least two).
func NewStackedDenoisingAutoencoder(dims []int, opts StackOptions) (*StackedDenoisingAutoencoder, error) {
	if len(dims) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 dimensions, got %v", ErrDimension, dims)
	}
	if opts.Activation == "" {
		opts.Activation = "relu"
	}
	if opts.FinalActivation == "" {
		opts.FinalActivation = "none"
	}
	src := rand.NewSource(opts.Seed)
	s := &StackedDenoisingAutoencoder{dims: append([]int(nil), dims...), opts: opts}
	n := len(dims) - 1
	for i := 0; i < n; i++ {
		layer, err := NewDenoisingAutoencoder(dims[i], dims[i+1], LayerOptions{
			Activation: s.encoderActivation(i),
			Gain:       opts.Gain,
			Tied:       opts.Tied,
			Src:        src,
		})
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		s.Layers = append(s.Layers, layer)
	}
	if err := s.compose(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StackedDenoisingAutoencoder) encoderActivation(i int) string {
	if i == len(s.dims)-2 {
		return s.opts.FinalActivation
	}
	return s.opts.Activation
}

func (s *StackedDenoisingAutoencoder) decoderActivation(i int) string {
	if i == 0 {
		return s.opts.FinalActivation
	}
	return s.opts.Activation
}

func appendActivation(ms []nn.Module, name string) ([]nn.Module, error) {
	if layers.IsNone(name) {
		return ms, nil
	}
	act, err := layers.NewActivation(name)
	if err != nil {
		return nil, err
	}
	return append(ms, act), nil
}

func (s *StackedDenoisingAutoencoder) compose() error {
	if err := s.Validate(); err != nil {
		return err
	}
	var enc, dec []nn.Module
	var err error
	for i, layer := range s.Layers {
		enc = append(enc, layer.Encoder)
		if enc, err = appendActivation(enc, s.encoderActivation(i)); err != nil {
			return err
		}
	}
	for i := len(s.Layers) - 1; i >= 0; i-- {
		dec = append(dec, s.Layers[i].Decoder)
		if dec, err = appendActivation(dec, s.decoderActivation(i)); err != nil {
			return err
		}
	}
	s.encoder = &nn.Sequential{Layers: enc}
	s.decoder = &nn.Sequential{Layers: dec}
	return nil
}

// Validate checks that consecutive layers agree on their widths.
func (s *StackedDenoisingAutoencoder) Validate() error {
	if len(s.Layers) != len(s.dims)-1 {
		return fmt.Errorf("%w: %d layers for dims %v", ErrDimension, len(s.Layers), s.dims)
	}
	for i, layer := range s.Layers {
		if layer.Embedding() != s.dims[i] || layer.Hidden() != s.dims[i+1] {
			return fmt.Errorf("%w: layer %d is %d→%d, want %d→%d",
				ErrDimension, i, layer.Embedding(), layer.Hidden(), s.dims[i], s.dims[i+1])
		}
	}
	return nil
}

// Dims returns a copy of the layer widths.
func (s *StackedDenoisingAutoencoder) Dims() []int { return append([]int(nil), s.dims...) }

// Options returns the construction options.
func (s *StackedDenoisingAutoencoder) Options() StackOptions { return s.opts }

// InputDim is d0.
func (s *StackedDenoisingAutoencoder) InputDim() int { return s.dims[0] }

// Bottleneck is dn, the width of the encoded representation.
func (s *StackedDenoisingAutoencoder) Bottleneck() int { return s.dims[len(s.dims)-1] }

// Encode maps inputs to the bottleneck representation.
func (s *StackedDenoisingAutoencoder) Encode(x *mat.Dense) (*mat.Dense, error) {
	return s.encoder.Forward(x)
}

// EncodeTail finishes encoding from the first layer's pre-activation, for
// callers that computed the first projection elsewhere.
func (s *StackedDenoisingAutoencoder) EncodeTail(preact *mat.Dense) (*mat.Dense, error) {
	if _, c := preact.Dims(); c != s.dims[1] {
		return nil, fmt.Errorf("%w: pre-activation width %d, want %d", ErrDimension, c, s.dims[1])
	}
	tail := &nn.Sequential{Layers: s.encoder.Layers[1:]}
	return tail.Forward(preact)
}

// Decode maps bottleneck codes back to the input space.
func (s *StackedDenoisingAutoencoder) Decode(h *mat.Dense) (*mat.Dense, error) {
	return s.decoder.Forward(h)
}

// Forward reconstructs x through the full encoder-decoder.
func (s *StackedDenoisingAutoencoder) Forward(x *mat.Dense) (*mat.Dense, error) {
	h, err := s.Encode(x)
	if err != nil {
		return nil, err
	}
	return s.Decode(h)
}

func (s *StackedDenoisingAutoencoder) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	g, err := s.decoder.Backward(gradOut)
	if err != nil {
		return nil, err
	}
	return s.encoder.Backward(g)
}

// Params lists every layer's parameters in layer order.
func (s *StackedDenoisingAutoencoder) Params() []*nn.Param {
	var ps []*nn.Param
	for _, layer := range s.Layers {
		ps = append(ps, layer.Params()...)
	}
	return ps
}

func (s *StackedDenoisingAutoencoder) SetTraining(training bool) {
	s.encoder.SetTraining(training)
	s.decoder.SetTraining(training)
}

// SetFrozen freezes or unfreezes every layer.
func (s *StackedDenoisingAutoencoder) SetFrozen(frozen bool) {
	for _, layer := range s.Layers {
		layer.SetFrozen(frozen)
	}
}

// Clone returns an independent deep copy with the same weights and flags.
func (s *StackedDenoisingAutoencoder) Clone() *StackedDenoisingAutoencoder {
	c, err := NewStackedDenoisingAutoencoder(s.dims, s.opts)
	if err != nil {
		// s was built from the same dims and options.
		panic(err)
	}
	src, dst := s.Params(), c.Params()
	for i := range src {
		dst[i].Value.Copy(src[i].Value)
	}
	for i, layer := range s.Layers {
		c.Layers[i].SetFrozen(layer.Frozen())
	}
	return c
}
