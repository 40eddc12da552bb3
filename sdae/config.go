package sdae

import (
	"sdae_lib/nn/layers"
	"sdae_lib/utils"
)

// StackOptionsFrom extracts the architecture options of cfg.
func StackOptionsFrom(cfg utils.Config) StackOptions {
	return StackOptions{
		Activation:      cfg.Activation,
		FinalActivation: cfg.FinalActivation,
		Tied:            cfg.Tied,
		Seed:            cfg.Seed,
	}
}

// PhaseConfigs derives the pretraining and fine-tuning phases of cfg. The
// two phases share everything but epochs and corruption rate.
func PhaseConfigs(cfg utils.Config) (pretrain, finetune TrainConfig, err error) {
	if err := utils.ValidateConfig(&cfg); err != nil {
		return pretrain, finetune, err
	}
	base := TrainConfig{
		BatchSize:      cfg.BatchSize,
		Optimizer:      cfg.Optimizer,
		LearningRate:   cfg.LearningRate,
		Momentum:       cfg.Momentum,
		Loss:           cfg.Loss,
		SchedulerStep:  cfg.SchedulerStep,
		SchedulerGamma: cfg.SchedulerGamma,
		Seed:           cfg.Seed,
	}
	kind := layers.NoiseKind(cfg.NoiseKind)

	pretrain = base
	pretrain.Epochs = cfg.PretrainEpochs
	pretrain.Noise = NoiseSpec{Kind: kind, Rate: cfg.NoiseRate}

	finetune = base
	finetune.Epochs = cfg.FinetuneEpochs
	finetune.Noise = NoiseSpec{Kind: kind, Rate: cfg.FinetuneNoise}

	if err := pretrain.Validate(); err != nil {
		return pretrain, finetune, err
	}
	return pretrain, finetune, finetune.Validate()
}
