// sdae-infer: cluster MNIST encodings of a trained stacked denoising
// autoencoder and report the best-mapping accuracy
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

	"gonum.org/v1/gonum/mat"
)

var (
	weightsFile  = flag.String("weights", "", "Weights JSON file written by sdae-train")
	dataRoot     = flag.String("data", "mnist_data", "MNIST directory (downloaded when missing)")
	k            = flag.Int("k", 10, "Number of clusters")
	nInit        = flag.Int("n-init", 20, "k-Means restarts")
	batchSize    = flag.Int("batch", 1024, "Encoding batch size")
	limit        = flag.Int("limit", 0, "Use only the first N samples of each split (0 = all)")
	pngFile      = flag.String("png", "", "Write the aligned confusion matrix to this PNG")
	embeddingPNG = flag.String("embedding-png", "", "Write a 2-D PCA scatter of the test codes to this PNG")
	seed         = flag.Uint64("seed", 42, "k-Means seed")
	verbose      = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	if *weightsFile == "" {
		fmt.Fprintln(os.Stderr, "Missing -weights")
		flag.Usage()
		os.Exit(1)
	}

	stats := &utils.TimingStats{}
	totalStart := time.Now()

	weights, err := utils.LoadWeights(*weightsFile)
	if err != nil {
		fatal("Error loading weights: %v", err)
	}
	stack, err := sdae.FromWeights(weights)
	if err != nil {
		fatal("Error restoring model: %v", err)
	}
	fmt.Printf("Loaded run %s: %v\n", weights.RunID, stack.Dims())

	start := time.Now()
	if err := data.EnsureMNIST(*dataRoot); err != nil {
		fatal("Error fetching MNIST: %v", err)
	}
	train, test, err := data.LoadMNIST(*dataRoot)
	if err != nil {
		fatal("Error loading MNIST: %v", err)
	}
	train, test = train.Head(*limit), test.Head(*limit)
	stats.DataLoadingTime = time.Since(start)

	start = time.Now()
	trainCodes, err := stack.EncodeDataset(train, *batchSize)
	if err != nil {
		fatal("Error encoding: %v", err)
	}
	testCodes, err := stack.EncodeDataset(test, *batchSize)
	if err != nil {
		fatal("Error encoding: %v", err)
	}
	stats.EncodeTime = time.Since(start)
	utils.Logf("Encoded %d + %d samples to width %d", trainCodes.Len(), testCodes.Len(), testCodes.Dim())

	start = time.Now()
	cfg := cluster.DefaultKMeansConfig()
	cfg.K, cfg.NInit, cfg.Seed = *k, *nInit, *seed
	res, err := cluster.KMeans(trainCodes.X, cfg)
	if err != nil {
		fatal("k-Means failed: %v", err)
	}
	pred, err := res.Predict(testCodes.X)
	if err != nil {
		fatal("k-Means failed: %v", err)
	}
	stats.ClusterTime = time.Since(start)
	utils.Logf("k-Means: inertia %.2f after %d iterations", res.Inertia, res.Iterations)

	trainAcc, _, err := cluster.Accuracy(trainCodes.Labels, res.Labels)
	if err != nil {
		fatal("%v", err)
	}
	testAcc, mapping, err := cluster.Accuracy(testCodes.Labels, pred)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("\nCluster accuracy: train %.4f | test %.4f\n", trainAcc, testAcc)

	n := *k
	if len(mapping) > n {
		n = len(mapping)
	}
	cm, err := cluster.ConfusionMatrix(testCodes.Labels, pred, n, n)
	if err != nil {
		fatal("%v", err)
	}
	aligned := cluster.AlignedConfusion(cm, mapping)
	fmt.Printf("Purity: %.4f\n\nConfusion (rows: label, columns: mapped cluster)\n%v\n",
		cluster.Purity(cm), mat.Formatted(aligned, mat.Squeeze()))

	if *pngFile != "" {
		title := fmt.Sprintf("Confusion matrix (accuracy %.4f)", testAcc)
		if err := cluster.SaveConfusionPNG(aligned, *pngFile, title); err != nil {
			fatal("Error writing %s: %v", *pngFile, err)
		}
		fmt.Printf("Wrote %s\n", *pngFile)
	}
	if *embeddingPNG != "" {
		if err := cluster.SaveEmbeddingPNG(testCodes.X, pred, *embeddingPNG, "Test encodings"); err != nil {
			fatal("Error writing %s: %v", *embeddingPNG, err)
		}
		fmt.Printf("Wrote %s\n", *embeddingPNG)
	}

	stats.TotalTime = time.Since(totalStart)
	utils.PrintTimingStats(stats)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
