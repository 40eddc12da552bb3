package sdae

import (
	"fmt"

	"sdae_lib/nn"
	"sdae_lib/tensor"
	"sdae_lib/utils"
)

// Weights snapshots the stack into a checkpoint document.
func (s *StackedDenoisingAutoencoder) Weights() *utils.ModelWeights {
	w := &utils.ModelWeights{
		Version:         utils.WeightsVersion,
		Dims:            s.Dims(),
		Activation:      s.opts.Activation,
		FinalActivation: s.opts.FinalActivation,
		Tied:            s.opts.Tied,
	}
	for _, layer := range s.Layers {
		lw := utils.LayerWeight{
			EncoderWeight: utils.TensorToWeightData("encoder_weight", tensor.FromDense(layer.Encoder.W.Value)),
			EncoderBias:   utils.TensorToWeightData("encoder_bias", tensor.FromDense(layer.Encoder.B.Value)),
			DecoderBias:   utils.TensorToWeightData("decoder_bias", tensor.FromDense(layer.Decoder.B.Value)),
		}
		if !layer.Tied() {
			lw.DecoderWeight = utils.TensorToWeightData("decoder_weight", tensor.FromDense(layer.Decoder.W.Value))
		}
		w.Layers = append(w.Layers, lw)
	}
	return w
}

// FromWeights rebuilds a stack from a checkpoint.
func FromWeights(w *utils.ModelWeights) (*StackedDenoisingAutoencoder, error) {
	s, err := NewStackedDenoisingAutoencoder(w.Dims, StackOptions{
		Activation:      w.Activation,
		FinalActivation: w.FinalActivation,
		Tied:            w.Tied,
	})
	if err != nil {
		return nil, err
	}
	if len(w.Layers) != len(s.Layers) {
		return nil, fmt.Errorf("%w: checkpoint has %d layers, dims %v need %d", ErrDimension, len(w.Layers), w.Dims, len(s.Layers))
	}
	for i, lw := range w.Layers {
		layer := s.Layers[i]
		if err := load(layer.Encoder.W, lw.EncoderWeight); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if err := load(layer.Encoder.B, lw.EncoderBias); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if err := load(layer.Decoder.B, lw.DecoderBias); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if !layer.Tied() {
			if err := load(layer.Decoder.W, lw.DecoderWeight); err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
		}
	}
	return s, nil
}

func load(p *nn.Param, wd *utils.WeightData) error {
	if wd == nil {
		return fmt.Errorf("missing %s", p.Name)
	}
	t, want := utils.WeightDataToTensor(wd), tensor.FromDense(p.Value)
	if !tensor.SameShape(t, want) {
		return fmt.Errorf("%w: %s is %v, checkpoint %v", ErrDimension, wd.Name, want.Shape, t.Shape)
	}
	m, err := t.Dense()
	if err != nil {
		return err
	}
	p.Value.Copy(m)
	return nil
}
