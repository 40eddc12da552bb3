package utils

import (
	"os"
	"path/filepath"
	"testing"

	"sdae_lib/tensor"
)

func TestTensorToWeightData(t *testing.T) {
	// Create a test tensor
	ten := tensor.New(2, 3)
	for i := range ten.Data {
		ten.Data[i] = float64(i) * 0.5
	}

	// Convert to weight data
	wd := TensorToWeightData("test_weight", ten)

	// Verify
	if wd.Name != "test_weight" {
		t.Errorf("Name = %s, want test_weight", wd.Name)
	}
	if len(wd.Shape) != 2 || wd.Shape[0] != 2 || wd.Shape[1] != 3 {
		t.Errorf("Shape = %v, want [2, 3]", wd.Shape)
	}
	if len(wd.Data) != 6 {
		t.Errorf("Data length = %d, want 6", len(wd.Data))
	}
	for i, v := range wd.Data {
		expected := float64(i) * 0.5
		if v != expected {
			t.Errorf("Data[%d] = %f, want %f", i, v, expected)
		}
	}
}

func TestWeightDataToTensor(t *testing.T) {
	wd := &WeightData{
		Name:  "test",
		Shape: []int{3, 4},
		Data:  make([]float64, 12),
	}
	for i := range wd.Data {
		wd.Data[i] = float64(i)
	}

	ten := WeightDataToTensor(wd)

	if len(ten.Shape) != 2 || ten.Shape[0] != 3 || ten.Shape[1] != 4 {
		t.Errorf("Shape = %v, want [3, 4]", ten.Shape)
	}
	for i, v := range ten.Data {
		if v != float64(i) {
			t.Errorf("Data[%d] = %f, want %f", i, v, float64(i))
		}
	}
}

func TestSaveLoadWeights(t *testing.T) {
	tmpDir := t.TempDir()
	weightsPath := filepath.Join(tmpDir, "test_weights.json")

	w := tensor.New(2, 3)
	for i := range w.Data {
		w.Data[i] = float64(i) * 0.1
	}
	b := tensor.New(1, 2)
	b.Data[0], b.Data[1] = 0.5, -0.5

	weights := &ModelWeights{
		Dims:       []int{3, 2},
		Activation: "relu",
		Tied:       true,
		Layers: []LayerWeight{{
			EncoderWeight: TensorToWeightData("encoder_weight", w),
			EncoderBias:   TensorToWeightData("encoder_bias", b),
			DecoderBias:   TensorToWeightData("decoder_bias", tensor.New(1, 3)),
		}},
	}

	if err := SaveWeights(weightsPath, weights); err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}
	if _, err := os.Stat(weightsPath); os.IsNotExist(err) {
		t.Fatal("Weights file was not created")
	}
	if weights.RunID == "" || weights.Version != WeightsVersion {
		t.Fatalf("SaveWeights should stamp version and run id, got %q %q", weights.Version, weights.RunID)
	}

	loaded, err := LoadWeights(weightsPath)
	if err != nil {
		t.Fatalf("LoadWeights failed: %v", err)
	}
	if loaded.RunID != weights.RunID {
		t.Errorf("RunID = %s, want %s", loaded.RunID, weights.RunID)
	}
	if !loaded.Tied || loaded.Activation != "relu" {
		t.Errorf("metadata lost: %+v", loaded)
	}
	if len(loaded.Layers) != 1 {
		t.Fatalf("Layers = %d, want 1", len(loaded.Layers))
	}
	if loaded.Layers[0].DecoderWeight != nil {
		t.Errorf("tied layer should not carry a decoder weight")
	}
	got := WeightDataToTensor(loaded.Layers[0].EncoderWeight)
	for i, v := range got.Data {
		if v != w.Data[i] {
			t.Errorf("weight[%d] = %f, want %f", i, v, w.Data[i])
		}
	}
}

func TestLoadWeightsRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.json")
	if err := os.WriteFile(path, []byte(`{"version":"0.1","run_id":"x"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWeights(path); err == nil {
		t.Fatal("expected version error")
	}
}

func TestLoadWeightsMissingFile(t *testing.T) {
	if _, err := LoadWeights(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
