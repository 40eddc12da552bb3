package sdae

import (
	"fmt"
	"math"

	"sdae_lib/data"
	"sdae_lib/nn"
	"sdae_lib/nn/layers"
	"sdae_lib/utils"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// TrainConfig holds the hyperparameters of one training phase.
type TrainConfig struct {
	Epochs    int
	BatchSize int
	// Optimizer is "sgd" or "adam".
	Optimizer    string
	LearningRate float64
	Momentum     float64
	// Loss is "mse" or "bce".
	Loss string
	// Noise corrupts the input of every training batch; the loss target is
	// always the clean batch. During pretraining it also corrupts each
	// layer's hidden code.
	Noise NoiseSpec
	// SchedulerStep multiplies the learning rate by SchedulerGamma every
	// SchedulerStep epochs; zero disables it.
	SchedulerStep  int
	SchedulerGamma float64
	Seed           uint64
	// Validation, when set, is evaluated after every epoch.
	Validation *data.Dataset
	// Callback receives per-epoch statistics.
	Callback func(EpochStats)
}

// DefaultTrainConfig is SGD(lr=0.1, momentum=0.9) on MSE with 20% dropout
// corruption, batch 256.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:         10,
		BatchSize:      256,
		Optimizer:      "sgd",
		LearningRate:   0.1,
		Momentum:       0.9,
		Loss:           "mse",
		Noise:          NoiseSpec{Kind: layers.NoiseDropout, Rate: 0.2},
		SchedulerGamma: 0.1,
		Seed:           42,
	}
}

// Validate checks the configuration before any work starts.
func (c TrainConfig) Validate() error {
	if c.Epochs < 0 {
		return fmt.Errorf("epochs must not be negative, got %d", c.Epochs)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %g", c.LearningRate)
	}
	if _, err := nn.NewLoss(c.Loss); err != nil {
		return err
	}
	if c.SchedulerStep > 0 && c.SchedulerGamma <= 0 {
		return fmt.Errorf("scheduler gamma must be positive, got %g", c.SchedulerGamma)
	}
	return c.Noise.Validate()
}

// EpochStats summarises one epoch.
type EpochStats struct {
	// Phase is "train", "pretrain" or "finetune".
	Phase string
	// Layer is the pretrained layer index, or -1.
	Layer          int
	Epoch          int
	Loss           float64
	ValidationLoss float64
	LearningRate   float64
}

// Train fits model to reconstruct ds and returns the mean training loss of
// every epoch. Only non-frozen parameters are updated.
func Train(ds *data.Dataset, model Reconstructor, cfg TrainConfig) ([]EpochStats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loss, _ := nn.NewLoss(cfg.Loss)
	src := rand.NewSource(cfg.Seed)
	rng := rand.New(src)
	noise, err := layers.NewCorruption(cfg.Noise, src)
	if err != nil {
		return nil, err
	}
	opt, err := nn.NewOptimizer(cfg.Optimizer, model.Params(), cfg.LearningRate, cfg.Momentum)
	if err != nil {
		return nil, err
	}
	sched := &nn.StepLR{Opt: opt, StepSize: cfg.SchedulerStep, Gamma: cfg.SchedulerGamma}
	utils.Logf("Training %d epochs: %s loss, %s input noise, %s lr %g", cfg.Epochs, loss, noise.Spec(), cfg.Optimizer, cfg.LearningRate)

	history := make([]EpochStats, 0, cfg.Epochs)
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		model.SetTraining(true)
		lr := opt.LearningRate()
		var losses, weights []float64
		it := data.NewBatchIterator(ds, cfg.BatchSize, rng)
		for b := 0; it.Next(); b++ {
			batch := it.Batch()
			in, err := noise.Forward(batch)
			if err != nil {
				return history, err
			}
			opt.ZeroGrad()
			out, err := model.Forward(in)
			if err != nil {
				return history, fmt.Errorf("epoch %d batch %d: forward: %w", epoch, b, err)
			}
			l, err := loss.Forward(out, batch)
			if err != nil {
				return history, fmt.Errorf("epoch %d batch %d: %w", epoch, b, err)
			}
			if math.IsNaN(l) || math.IsInf(l, 0) {
				return history, fmt.Errorf("epoch %d batch %d: %w", epoch, b, ErrNonFinite)
			}
			grad, err := loss.Backward(out, batch)
			if err != nil {
				return history, err
			}
			if _, err := model.Backward(grad); err != nil {
				return history, fmt.Errorf("epoch %d batch %d: backward: %w", epoch, b, err)
			}
			if err := opt.Step(); err != nil {
				return history, err
			}
			n, _ := batch.Dims()
			losses = append(losses, l)
			weights = append(weights, float64(n))
		}
		sched.Step()

		st := EpochStats{Phase: "train", Layer: -1, Epoch: epoch, LearningRate: lr, ValidationLoss: math.NaN()}
		if len(losses) > 0 {
			st.Loss = stat.Mean(losses, weights)
		}
		if cfg.Validation != nil {
			if st.ValidationLoss, err = ReconstructionLoss(cfg.Validation, model, loss, cfg.BatchSize); err != nil {
				return history, fmt.Errorf("epoch %d validation: %w", epoch, err)
			}
		}
		history = append(history, st)
		if cfg.Callback != nil {
			cfg.Callback(st)
		}
	}
	model.SetTraining(false)
	return history, nil
}

// ReconstructionLoss evaluates model on ds in evaluation mode.
func ReconstructionLoss(ds *data.Dataset, model Reconstructor, loss nn.Loss, batchSize int) (float64, error) {
	model.SetTraining(false)
	var losses, weights []float64
	it := data.NewBatchIterator(ds, batchSize, nil)
	for it.Next() {
		batch := it.Batch()
		out, err := model.Forward(batch)
		if err != nil {
			return 0, err
		}
		l, err := loss.Forward(out, batch)
		if err != nil {
			return 0, err
		}
		n, _ := batch.Dims()
		losses = append(losses, l)
		weights = append(weights, float64(n))
	}
	if len(losses) == 0 {
		return 0, fmt.Errorf("empty dataset")
	}
	return stat.Mean(losses, weights), nil
}

func checkInput(s *StackedDenoisingAutoencoder, ds *data.Dataset) error {
	if ds.Dim() != s.InputDim() {
		return fmt.Errorf("%w: data width %d, stack input %d", ErrDimension, ds.Dim(), s.InputDim())
	}
	if ds.Len() == 0 {
		return fmt.Errorf("empty dataset")
	}
	return nil
}

// Pretrain trains a copy of stack greedily, one layer at a time. Layer i is
// trained in isolation as a denoising autoencoder on the output of the
// already-trained, frozen layers 0..i-1, then frozen itself. The input stack
// is left untouched; the returned stack has every layer frozen.
func Pretrain(stack *StackedDenoisingAutoencoder, ds *data.Dataset, cfg TrainConfig) (*StackedDenoisingAutoencoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkInput(stack, ds); err != nil {
		return nil, err
	}
	out := stack.Clone()
	out.SetFrozen(true)

	current, validation := ds, cfg.Validation
	for i, layer := range out.Layers {
		utils.Logf("Pretraining layer %d/%d (%d→%d)", i+1, len(out.Layers), layer.Embedding(), layer.Hidden())
		layerCfg := cfg
		layerCfg.Seed = cfg.Seed + uint64(i)
		layerCfg.Validation = validation
		idx := i
		layerCfg.Callback = func(st EpochStats) {
			st.Phase, st.Layer = "pretrain", idx
			if cfg.Callback != nil {
				cfg.Callback(st)
			}
		}

		// the sub-autoencoder starts from the stack's weights and carries
		// the hidden-code corruption; the stack layer never does
		sub, err := NewDenoisingAutoencoder(layer.Embedding(), layer.Hidden(), LayerOptions{
			Activation: layer.Activation(),
			Tied:       layer.Tied(),
			Corruption: cfg.Noise,
			Src:        rand.NewSource(layerCfg.Seed),
		})
		if err != nil {
			return nil, fmt.Errorf("pretrain layer %d: %w", i, err)
		}
		if err := layer.CopyWeights(sub.Encoder, sub.Decoder); err != nil {
			return nil, fmt.Errorf("pretrain layer %d: %w", i, err)
		}
		if _, err := Train(current, sub, layerCfg); err != nil {
			return nil, fmt.Errorf("pretrain layer %d: %w", i, err)
		}
		if err := sub.CopyWeights(layer.Encoder, layer.Decoder); err != nil {
			return nil, fmt.Errorf("pretrain layer %d: %w", i, err)
		}
		layer.SetTraining(false)

		if i == len(out.Layers)-1 {
			break
		}
		if current, err = current.Map(cfg.BatchSize, layer.Encode); err != nil {
			return nil, fmt.Errorf("pretrain layer %d: encode: %w", i, err)
		}
		if validation != nil {
			if validation, err = validation.Map(cfg.BatchSize, layer.Encode); err != nil {
				return nil, fmt.Errorf("pretrain layer %d: encode validation: %w", i, err)
			}
		}
	}
	return out, nil
}

// FineTune trains a copy of stack end-to-end on reconstruction with every
// layer unfrozen. The input stack is left untouched.
func FineTune(stack *StackedDenoisingAutoencoder, ds *data.Dataset, cfg TrainConfig) (*StackedDenoisingAutoencoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkInput(stack, ds); err != nil {
		return nil, err
	}
	out := stack.Clone()
	out.SetFrozen(false)

	ftCfg := cfg
	ftCfg.Callback = func(st EpochStats) {
		st.Phase = "finetune"
		if cfg.Callback != nil {
			cfg.Callback(st)
		}
	}
	if _, err := Train(ds, out, ftCfg); err != nil {
		return nil, fmt.Errorf("finetune: %w", err)
	}
	return out, nil
}

// EncodeDataset returns the bottleneck representation of every sample,
// keeping labels.
func (s *StackedDenoisingAutoencoder) EncodeDataset(ds *data.Dataset, batchSize int) (*data.Dataset, error) {
	if ds.Dim() != s.InputDim() {
		return nil, fmt.Errorf("%w: data width %d, stack input %d", ErrDimension, ds.Dim(), s.InputDim())
	}
	s.SetTraining(false)
	return ds.Map(batchSize, s.Encode)
}

// Predict runs a batch-wise transform over ds and returns the stacked output.
func Predict(ds *data.Dataset, batchSize int, fn func(*mat.Dense) (*mat.Dense, error)) (*mat.Dense, error) {
	out, err := ds.Map(batchSize, fn)
	if err != nil {
		return nil, err
	}
	return out.X, nil
}
