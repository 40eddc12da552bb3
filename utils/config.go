package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Config holds training configuration
type Config struct {
	Architecture    []int
	DataRoot        string
	BatchSize       int
	PretrainEpochs  int
	FinetuneEpochs  int
	LearningRate    float64
	Momentum        float64
	Optimizer       string
	Loss            string
	Activation      string
	FinalActivation string
	NoiseKind       string
	NoiseRate       float64
	FinetuneNoise   float64
	SchedulerStep   int
	SchedulerGamma  float64
	Tied            bool
	Seed            uint64
}

// DefaultConfig mirrors the MNIST setup: [784 500 500 2000 10], SGD with
// momentum, dropout corruption of 0.2.
func DefaultConfig() Config {
	return Config{
		Architecture:    []int{784, 500, 500, 2000, 10},
		DataRoot:        "mnist_data",
		BatchSize:       256,
		PretrainEpochs:  300,
		FinetuneEpochs:  500,
		LearningRate:    0.1,
		Momentum:        0.9,
		Optimizer:       "sgd",
		Loss:            "mse",
		Activation:      "relu",
		FinalActivation: "none",
		NoiseKind:       "dropout",
		NoiseRate:       0.2,
		FinetuneNoise:   0.2,
		SchedulerStep:   100,
		SchedulerGamma:  0.1,
		Seed:            42,
	}
}

// ParseArchitecture parses architecture string into slice of integers
func ParseArchitecture(archStr string) ([]int, error) {
	archParts := strings.Fields(strings.ReplaceAll(archStr, ",", " "))
	arch := make([]int, len(archParts))
	for i, s := range archParts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		arch[i] = n
	}
	return arch, nil
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	if len(config.Architecture) < 2 {
		return fmt.Errorf("architecture must have at least 2 layers (input and bottleneck)")
	}
	for i, d := range config.Architecture {
		if d <= 0 {
			return fmt.Errorf("architecture dimension %d must be positive, got %d", i, d)
		}
	}

	if config.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	if config.PretrainEpochs < 0 || config.FinetuneEpochs < 0 {
		return fmt.Errorf("epochs must not be negative")
	}

	if config.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}

	if config.Momentum < 0 || config.Momentum >= 1 {
		return fmt.Errorf("momentum must be in [0,1)")
	}

	if config.Loss == "bce" && config.FinalActivation != "sigmoid" {
		return fmt.Errorf("bce loss needs a sigmoid final activation, got %q", config.FinalActivation)
	}

	if config.SchedulerStep > 0 && (config.SchedulerGamma <= 0 || config.SchedulerGamma > 1) {
		return fmt.Errorf("scheduler gamma must be in (0,1]")
	}

	return nil
}
