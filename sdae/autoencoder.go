// Package sdae implements stacked denoising autoencoders trained by greedy
// layer-wise pretraining followed by end-to-end fine-tuning.
package sdae

import (
	"errors"
	"fmt"
	"math"

	"sdae_lib/nn"
	"sdae_lib/nn/layers"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDimension reports inconsistent layer or data widths.
	ErrDimension = errors.New("dimension mismatch")
	// ErrNonFinite reports a NaN or infinite loss during training.
	ErrNonFinite = errors.New("non-finite loss")
	// ErrNoise reports an invalid noise specification.
	ErrNoise = layers.ErrNoise
)

// NoiseSpec is the per-layer corruption policy.
type NoiseSpec = layers.NoiseSpec

// NoNoise disables corruption.
var NoNoise = NoiseSpec{Kind: layers.NoiseNone}

// defaultGain is the Xavier gain used when none is given (the ReLU gain).
var defaultGain = math.Sqrt2

// Reconstructor is a model trained to reproduce its input.
type Reconstructor interface {
	nn.Module
	nn.ModeSetter
}

// LayerOptions configures a DenoisingAutoencoder.
type LayerOptions struct {
	// Activation follows the encoder; "none" keeps it linear.
	Activation string
	// Gain scales Xavier initialisation; zero selects the ReLU gain.
	Gain float64
	// Tied makes the decoder weight the transpose of the encoder weight.
	Tied bool
	// Corruption is applied to the hidden code while training.
	Corruption NoiseSpec
	// Src drives initialisation and corruption. Nil uses a fixed seed.
	Src rand.Source
}

// DenoisingAutoencoder is one encoder/decoder pair. It is both a stack layer
// and, during pretraining, a standalone model.
type DenoisingAutoencoder struct {
	Encoder *layers.Linear
	Decoder *layers.Linear

	activation string
	corruption *layers.Corruption
	encode     *nn.Sequential
	decode     *nn.Sequential
	src        rand.Source
	frozen     bool
}

// NewDenoisingAutoencoder builds and initialises an embedding→hidden pair.
func NewDenoisingAutoencoder(embedding, hidden int, opts LayerOptions) (*DenoisingAutoencoder, error) {
	if embedding <= 0 || hidden <= 0 {
		return nil, fmt.Errorf("%w: autoencoder %d→%d", ErrDimension, embedding, hidden)
	}
	if opts.Activation == "" {
		opts.Activation = "none"
	}
	if !layers.IsNone(opts.Activation) {
		if _, ok := layers.ActivatorLookup[opts.Activation]; !ok {
			return nil, fmt.Errorf("unsupported activation: %s", opts.Activation)
		}
	}
	if opts.Gain == 0 {
		opts.Gain = defaultGain
	}
	if opts.Src == nil {
		opts.Src = rand.NewSource(1)
	}

	a := &DenoisingAutoencoder{
		Encoder:    layers.NewLinear(embedding, hidden),
		activation: opts.Activation,
		src:        opts.Src,
	}
	if opts.Tied {
		a.Decoder = layers.NewTiedLinear(a.Encoder)
	} else {
		a.Decoder = layers.NewLinear(hidden, embedding)
	}
	a.Encoder.Init(opts.Gain, opts.Src)
	a.Decoder.Init(opts.Gain, opts.Src)

	if err := a.SetCorruption(opts.Corruption); err != nil {
		return nil, err
	}
	return a, nil
}

// SetCorruption replaces the hidden-code corruption policy.
func (a *DenoisingAutoencoder) SetCorruption(spec NoiseSpec) error {
	a.corruption = nil
	if !spec.Disabled() {
		c, err := layers.NewCorruption(spec, a.src)
		if err != nil {
			return err
		}
		a.corruption = c
	} else if err := spec.Validate(); err != nil {
		return err
	}

	enc := []nn.Module{a.Encoder}
	if !layers.IsNone(a.activation) {
		act, err := layers.NewActivation(a.activation)
		if err != nil {
			return err
		}
		enc = append(enc, act)
	}
	if a.corruption != nil {
		enc = append(enc, a.corruption)
	}
	a.encode = &nn.Sequential{Layers: enc}
	a.decode = &nn.Sequential{Layers: []nn.Module{a.Decoder}}
	return nil
}

// Embedding is the input width.
func (a *DenoisingAutoencoder) Embedding() int { return a.Encoder.InDim() }

// Hidden is the code width.
func (a *DenoisingAutoencoder) Hidden() int { return a.Encoder.OutDim() }

// Activation names the encoder nonlinearity.
func (a *DenoisingAutoencoder) Activation() string { return a.activation }

// Tied reports whether the decoder borrows the encoder weight.
func (a *DenoisingAutoencoder) Tied() bool { return a.Decoder.Tied() }

// Encode maps a batch to its hidden code.
func (a *DenoisingAutoencoder) Encode(x *mat.Dense) (*mat.Dense, error) {
	return a.encode.Forward(x)
}

// Decode maps hidden codes back to the input space.
func (a *DenoisingAutoencoder) Decode(h *mat.Dense) (*mat.Dense, error) {
	return a.decode.Forward(h)
}

// Forward reconstructs x.
func (a *DenoisingAutoencoder) Forward(x *mat.Dense) (*mat.Dense, error) {
	h, err := a.Encode(x)
	if err != nil {
		return nil, err
	}
	return a.Decode(h)
}

func (a *DenoisingAutoencoder) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	g, err := a.decode.Backward(gradOut)
	if err != nil {
		return nil, err
	}
	return a.encode.Backward(g)
}

func (a *DenoisingAutoencoder) Params() []*nn.Param {
	return append(a.Encoder.Params(), a.Decoder.Params()...)
}

func (a *DenoisingAutoencoder) SetTraining(training bool) {
	a.encode.SetTraining(training)
}

// SetFrozen toggles whether optimizers may update this layer.
func (a *DenoisingAutoencoder) SetFrozen(frozen bool) {
	a.frozen = frozen
	nn.SetFrozen(a.Params(), frozen)
}

// Frozen reports the trainable flag.
func (a *DenoisingAutoencoder) Frozen() bool { return a.frozen }

// CopyWeights copies this autoencoder's parameters into an encoder and a
// decoder unit.
func (a *DenoisingAutoencoder) CopyWeights(encoder, decoder *layers.Linear) error {
	if err := encoder.CopyFrom(a.Encoder); err != nil {
		return err
	}
	return decoder.CopyFrom(a.Decoder)
}
