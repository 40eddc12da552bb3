// sdae-train: greedy layer-wise pretraining and fine-tuning of a stacked
// denoising autoencoder on MNIST
//
// Usage:
//
//	sdae-train -data=mnist_data -dims="784 500 500 2000 10" -output=sdae.json
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"sdae_lib/cluster"
	"sdae_lib/data"
	"sdae_lib/sdae"
	"sdae_lib/utils"
)

var (
	dataRoot       = flag.String("data", "mnist_data", "MNIST directory (downloaded when missing)")
	dims           = flag.String("dims", "784 500 500 2000 10", "Layer widths, input first")
	batchSize      = flag.Int("batch", 256, "Batch size")
	pretrainEpochs = flag.Int("pretrain-epochs", 300, "Pretraining epochs per layer")
	finetuneEpochs = flag.Int("finetune-epochs", 500, "Fine-tuning epochs")
	learningRate   = flag.Float64("lr", 0.1, "Learning rate")
	momentum       = flag.Float64("momentum", 0.9, "SGD momentum")
	optimizer      = flag.String("optimizer", "sgd", "Optimizer: sgd, adam")
	lossName       = flag.String("loss", "mse", "Reconstruction loss: mse, bce")
	activation     = flag.String("activation", "relu", "Hidden activation")
	finalAct       = flag.String("final-activation", "none", "Bottleneck and output activation")
	noiseKind      = flag.String("noise", "dropout", "Corruption: none, dropout, mask, gaussian, saltpepper")
	noiseRate      = flag.Float64("noise-rate", 0.2, "Corruption rate during pretraining")
	finetuneNoise  = flag.Float64("finetune-noise-rate", 0.2, "Corruption rate during fine-tuning")
	schedStep      = flag.Int("scheduler-step", 100, "Epochs between learning rate decays (0 disables)")
	schedGamma     = flag.Float64("scheduler-gamma", 0.1, "Learning rate decay factor")
	tied           = flag.Bool("tied", false, "Tie decoder weights to the encoder")
	seed           = flag.Uint64("seed", 42, "Random seed")
	limit          = flag.Int("limit", 0, "Use only the first N training samples (0 = all)")
	evalK          = flag.Int("eval-k", 10, "Clusters for the post-training evaluation (0 skips it)")
	outputFile     = flag.String("output", "", "Output weights file (JSON)")
	verbose        = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	cfg, err := buildConfig()
	if err != nil {
		fatal("Invalid configuration: %v", err)
	}
	pretrainCfg, finetuneCfg, err := sdae.PhaseConfigs(cfg)
	if err != nil {
		fatal("Invalid configuration: %v", err)
	}

	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                  Stacked Denoising Autoencoder               ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Architecture:  %v\n", cfg.Architecture)
	fmt.Printf("  Batch size:    %d\n", cfg.BatchSize)
	fmt.Printf("  Epochs:        %d pretrain / %d finetune\n", cfg.PretrainEpochs, cfg.FinetuneEpochs)
	fmt.Printf("  Optimizer:     %s (lr %.4f, momentum %.2f)\n", cfg.Optimizer, cfg.LearningRate, cfg.Momentum)
	fmt.Printf("  Loss:          %s\n", cfg.Loss)
	fmt.Printf("  Noise:         %v / %v\n", pretrainCfg.Noise, finetuneCfg.Noise)
	fmt.Printf("  Seed:          %d\n", cfg.Seed)
	fmt.Printf("  Host:          %s\n", utils.HostSummary())
	fmt.Println()

	stats := &utils.TimingStats{}
	totalStart := time.Now()

	start := time.Now()
	if err := data.EnsureMNIST(cfg.DataRoot); err != nil {
		fatal("Error fetching MNIST: %v", err)
	}
	train, test, err := data.LoadMNIST(cfg.DataRoot)
	if err != nil {
		fatal("Error loading MNIST: %v", err)
	}
	if *limit > 0 {
		train = train.Head(*limit)
		test = test.Head(*limit)
	}
	stats.DataLoadingTime = time.Since(start)
	fmt.Printf("Loaded %d training / %d test samples (%.2fs)\n", train.Len(), test.Len(), stats.DataLoadingTime.Seconds())

	start = time.Now()
	stack, err := sdae.NewStackedDenoisingAutoencoder(cfg.Architecture, sdae.StackOptionsFrom(cfg))
	if err != nil {
		fatal("Error building model: %v", err)
	}
	stats.ModelInitTime = time.Since(start)
	opts := stack.Options()
	fmt.Printf("Model: %d layers, %d parameters, %s hidden / %s output (tied=%v)\n",
		len(stack.Layers), countParams(stack), opts.Activation, opts.FinalActivation, opts.Tied)

	// per-layer pretraining time, measured between epoch callbacks
	layerStart, current := time.Now(), 0
	pretrainCfg.Validation = test
	pretrainCfg.Callback = func(st sdae.EpochStats) {
		if st.Layer != current {
			stats.PretrainLayerTime = append(stats.PretrainLayerTime, time.Since(layerStart))
			layerStart, current = time.Now(), st.Layer
		}
		report(st)
	}

	fmt.Println("\nPretraining...")
	start = time.Now()
	pretrained, err := sdae.Pretrain(stack, train, pretrainCfg)
	if err != nil {
		fatal("Pretraining failed: %v", err)
	}
	stats.PretrainTime = time.Since(start)
	stats.PretrainLayerTime = append(stats.PretrainLayerTime, time.Since(layerStart))

	fmt.Println("\nFine-tuning...")
	finetuneCfg.Validation = test
	finetuneCfg.Callback = report
	start = time.Now()
	final, err := sdae.FineTune(pretrained, train, finetuneCfg)
	if err != nil {
		fatal("Fine-tuning failed: %v", err)
	}
	stats.FinetuneTime = time.Since(start)

	if *evalK > 0 {
		if err := evaluate(final, train, test, *evalK, cfg.Seed, stats); err != nil {
			fatal("Evaluation failed: %v", err)
		}
	}

	stats.TotalTime = time.Since(totalStart)
	fmt.Printf("\nTraining complete! Total time: %.2fs\n", stats.TotalTime.Seconds())
	utils.PrintTimingStats(stats)

	if *outputFile != "" {
		fmt.Printf("\nSaving weights to %s...\n", *outputFile)
		w := final.Weights()
		if err := utils.SaveWeights(*outputFile, w); err != nil {
			fatal("Error saving: %v", err)
		}
		fmt.Printf("Done! (run %s)\n", w.RunID)
	}
}

func buildConfig() (utils.Config, error) {
	cfg := utils.DefaultConfig()
	arch, err := utils.ParseArchitecture(*dims)
	if err != nil {
		return cfg, err
	}
	cfg.Architecture = arch
	cfg.DataRoot = *dataRoot
	cfg.BatchSize = *batchSize
	cfg.PretrainEpochs = *pretrainEpochs
	cfg.FinetuneEpochs = *finetuneEpochs
	cfg.LearningRate = *learningRate
	cfg.Momentum = *momentum
	cfg.Optimizer = *optimizer
	cfg.Loss = *lossName
	cfg.Activation = *activation
	cfg.FinalActivation = *finalAct
	cfg.NoiseKind = *noiseKind
	cfg.NoiseRate = *noiseRate
	cfg.FinetuneNoise = *finetuneNoise
	cfg.SchedulerStep = *schedStep
	cfg.SchedulerGamma = *schedGamma
	cfg.Tied = *tied
	cfg.Seed = *seed
	return cfg, utils.ValidateConfig(&cfg)
}

func report(st sdae.EpochStats) {
	prefix := st.Phase
	if st.Layer >= 0 {
		prefix = fmt.Sprintf("%s layer %d", st.Phase, st.Layer)
	}
	utils.Logf("%s | Epoch %d | lr %.5f | Loss: %.6f | Validation: %.6f",
		prefix, st.Epoch+1, st.LearningRate, st.Loss, st.ValidationLoss)
}

func countParams(s *sdae.StackedDenoisingAutoencoder) int {
	n := 0
	for _, p := range s.Params() {
		r, c := p.Value.Dims()
		n += r * c
	}
	return n
}

// evaluate fits k-Means on the training codes and scores the test codes.
func evaluate(s *sdae.StackedDenoisingAutoencoder, train, test *data.Dataset, k int, seed uint64, stats *utils.TimingStats) error {
	start := time.Now()
	trainCodes, err := s.EncodeDataset(train, *batchSize)
	if err != nil {
		return err
	}
	testCodes, err := s.EncodeDataset(test, *batchSize)
	if err != nil {
		return err
	}
	stats.EncodeTime = time.Since(start)

	start = time.Now()
	kcfg := cluster.DefaultKMeansConfig()
	kcfg.K, kcfg.Seed = k, seed
	res, err := cluster.KMeans(trainCodes.X, kcfg)
	if err != nil {
		return err
	}
	pred, err := res.Predict(testCodes.X)
	if err != nil {
		return err
	}
	stats.ClusterTime = time.Since(start)

	trainAcc, _, err := cluster.Accuracy(trainCodes.Labels, res.Labels)
	if err != nil {
		return err
	}
	testAcc, _, err := cluster.Accuracy(testCodes.Labels, pred)
	if err != nil {
		return err
	}
	fmt.Printf("\nCluster accuracy: train %.4f | test %.4f\n", trainAcc, testAcc)
	return nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
