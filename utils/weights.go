package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"sdae_lib/tensor"

	"github.com/google/uuid"
)

// WeightsVersion is written into every checkpoint.
const WeightsVersion = "1.0"

// WeightData represents serializable weight data for a layer
type WeightData struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ModelWeights is a stacked autoencoder checkpoint.
type ModelWeights struct {
	Version         string        `json:"version"`
	RunID           string        `json:"run_id"`
	Dims            []int         `json:"dims"`
	Activation      string        `json:"activation"`
	FinalActivation string        `json:"final_activation"`
	Tied            bool          `json:"tied"`
	Layers          []LayerWeight `json:"layers"`
}

// LayerWeight contains encoder and decoder parameters of one stack layer.
// DecoderWeight is omitted for tied layers.
type LayerWeight struct {
	EncoderWeight *WeightData `json:"encoder_weight"`
	EncoderBias   *WeightData `json:"encoder_bias"`
	DecoderWeight *WeightData `json:"decoder_weight,omitempty"`
	DecoderBias   *WeightData `json:"decoder_bias"`
}

// NewRunID returns a fresh identifier for a training run.
func NewRunID() string {
	return uuid.New().String()
}

// SaveWeights saves model weights to a JSON file
func SaveWeights(filepath string, weights *ModelWeights) error {
	if weights.Version == "" {
		weights.Version = WeightsVersion
	}
	if weights.RunID == "" {
		weights.RunID = NewRunID()
	}
	data, err := json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal weights: %w", err)
	}
	return os.WriteFile(filepath, data, 0644)
}

// LoadWeights loads model weights from a JSON file
func LoadWeights(filepath string) (*ModelWeights, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}
	var weights ModelWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, fmt.Errorf("failed to unmarshal weights: %w", err)
	}
	if weights.Version != WeightsVersion {
		return nil, fmt.Errorf("unsupported weights version %q", weights.Version)
	}
	if _, err := uuid.Parse(weights.RunID); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", weights.RunID, err)
	}
	return &weights, nil
}

// TensorToWeightData converts a tensor to serializable weight data
func TensorToWeightData(name string, t *tensor.Tensor) *WeightData {
	return &WeightData{
		Name:  name,
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float64{}, t.Data...), // copy
	}
}

// WeightDataToTensor converts weight data back to a tensor
func WeightDataToTensor(wd *WeightData) *tensor.Tensor {
	t := tensor.New(wd.Shape...)
	copy(t.Data, wd.Data)
	return t
}
