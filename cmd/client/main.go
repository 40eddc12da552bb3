// sdae-client: encodes MNIST privately. The first encoder layer runs on the
// server over CKKS ciphertexts; the remaining layers run locally.
package main

import (
	"flag"
	"fmt"
	"math"
	"net"
	"os"
	"time"

	"sdae_lib/cluster"
	"sdae_lib/data"
	"sdae_lib/he"
	"sdae_lib/sdae"
	"sdae_lib/split"
	"sdae_lib/utils"

	"gonum.org/v1/gonum/mat"
)

var (
	weightsFile = flag.String("weights", "", "Weights JSON file (used for the local layers)")
	dataRoot    = flag.String("data", "mnist_data", "MNIST directory (downloaded when missing)")
	addr        = flag.String("addr", "", "Server TCP address (stdin/stdout when empty)")
	logN        = flag.Int("logN", 13, "Ring dimension log2")
	batchSize   = flag.Int("batch", 16, "Rows per request")
	limit       = flag.Int("limit", 100, "Test samples to encode (0 = all)")
	k           = flag.Int("k", 10, "Clusters for the accuracy report (0 skips it)")
	check       = flag.Bool("check", true, "Compare against local plaintext encoding")
	verbose     = flag.Bool("verbose", false, "Verbose output")
)

// conn is closed by fatal, since os.Exit skips deferred calls.
var conn net.Conn

func main() {
	flag.Parse()
	utils.Verbose = *verbose
	utils.Output = os.Stderr

	if *weightsFile == "" {
		fatal("Missing -weights")
	}
	weights, err := utils.LoadWeights(*weightsFile)
	if err != nil {
		fatal("Error loading weights: %v", err)
	}
	stack, err := sdae.FromWeights(weights)
	if err != nil {
		fatal("Error restoring model: %v", err)
	}

	stats := &utils.TimingStats{}
	totalStart := time.Now()
	start := time.Now()
	if err := data.EnsureMNIST(*dataRoot); err != nil {
		fatal("Error fetching MNIST: %v", err)
	}
	_, test, err := data.LoadMNIST(*dataRoot)
	if err != nil {
		fatal("Error loading MNIST: %v", err)
	}
	test = test.Head(*limit)
	stats.DataLoadingTime = time.Since(start)

	params, err := he.NewParameters(*logN)
	if err != nil {
		fatal("Error building parameters: %v", err)
	}

	var proto *split.Protocol
	if *addr == "" {
		proto = split.NewProtocol(os.Stdin, os.Stdout)
	} else {
		var err error
		if conn, err = net.Dial("tcp", *addr); err != nil {
			fatal("Dial %s: %v", *addr, err)
		}
		proto = split.NewProtocol(conn, conn)
	}

	log("Connecting (logN=%d)", *logN)
	client, err := split.NewClient(proto, params)
	if err != nil {
		fatal("Handshake failed: %v", err)
	}
	if client.Info.RunID != "" && client.Info.RunID != weights.RunID {
		log("Warning: server run %s differs from local run %s", client.Info.RunID, weights.RunID)
	}
	log("Server layer %d→%d, %d ciphertexts per row", client.Info.InDim, client.Info.OutDim, client.Layout.Groups)

	start = time.Now()
	codes, err := sdae.Predict(test, *batchSize, func(x *mat.Dense) (*mat.Dense, error) {
		pre, err := client.Encode(x)
		if err != nil {
			return nil, err
		}
		return stack.EncodeTail(pre)
	})
	if err != nil {
		if sendErr := proto.SendError(err); sendErr != nil {
			log("Could not report failure to server: %v", sendErr)
		}
		fatal("Encoding failed: %v", err)
	}
	stats.EncodeTime = time.Since(start)
	if err := client.Close(); err != nil {
		fatal("Close: %v", err)
	}
	stats.EncryptionTime = client.Timing.EncryptionTime
	stats.DecryptionTime = client.Timing.DecryptionTime
	stats.RemoteEncodeTime = client.Timing.RemoteEncodeTime
	stats.ModelInitTime = client.Timing.ModelInitTime
	fmt.Fprintf(os.Stderr, "Encoded %d samples privately in %.2fs\n", test.Len(), stats.EncodeTime.Seconds())

	if *check {
		plain, err := stack.EncodeDataset(test, *batchSize)
		if err != nil {
			fatal("Local encoding failed: %v", err)
		}
		var diff mat.Dense
		diff.Sub(codes, plain.X)
		fmt.Fprintf(os.Stderr, "Max deviation from plaintext encoding: %.3g\n", maxAbs(&diff))
	}

	if *k > 0 {
		start = time.Now()
		cfg := cluster.DefaultKMeansConfig()
		cfg.K = *k
		res, err := cluster.KMeans(codes, cfg)
		if err != nil {
			fatal("k-Means failed: %v", err)
		}
		stats.ClusterTime = time.Since(start)
		acc, _, err := cluster.Accuracy(test.Labels, res.Labels)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Fprintf(os.Stderr, "Cluster accuracy: %.4f\n", acc)
	}

	stats.TotalTime = time.Since(totalStart)
	utils.PrintTimingStats(stats)
	if conn != nil {
		conn.Close()
	}
}

func maxAbs(m *mat.Dense) float64 {
	r, c := m.Dims()
	out := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = math.Max(out, math.Abs(m.At(i, j)))
		}
	}
	return out
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	if conn != nil {
		conn.Close()
	}
	os.Exit(1)
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[CLIENT] "+format+"\n", args...)
	}
}
