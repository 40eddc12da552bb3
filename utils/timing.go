package utils

import (
	"fmt"
	"time"
)

// TimingStats holds timing information for the phases of a run.
type TimingStats struct {
	TotalTime        time.Duration
	DataLoadingTime  time.Duration
	ModelInitTime    time.Duration
	PretrainTime     time.Duration
	FinetuneTime     time.Duration
	EncodeTime       time.Duration
	ClusterTime      time.Duration
	EncryptionTime   time.Duration
	DecryptionTime   time.Duration
	RemoteEncodeTime time.Duration
	// PretrainLayerTime is indexed by stack layer.
	PretrainLayerTime []time.Duration
}

func percent(part, whole time.Duration) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// PrintTimingStats prints detailed timing statistics.
// Respects the Verbose flag - does nothing if Verbose is false.
func PrintTimingStats(stats *TimingStats) {
	if !Verbose {
		return
	}
	fmt.Fprintln(Output, "\n=== TIMING STATISTICS ===")
	fmt.Fprintf(Output, "Total time: %v\n", stats.TotalTime)
	fmt.Fprintln(Output, "\nBreakdown by phase:")
	fmt.Fprintf(Output, "  Data loading: %v (%.1f%%)\n", stats.DataLoadingTime, percent(stats.DataLoadingTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Model initialization: %v (%.1f%%)\n", stats.ModelInitTime, percent(stats.ModelInitTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Pretraining: %v (%.1f%%)\n", stats.PretrainTime, percent(stats.PretrainTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Fine-tuning: %v (%.1f%%)\n", stats.FinetuneTime, percent(stats.FinetuneTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Encoding: %v (%.1f%%)\n", stats.EncodeTime, percent(stats.EncodeTime, stats.TotalTime))
	fmt.Fprintf(Output, "  Clustering: %v (%.1f%%)\n", stats.ClusterTime, percent(stats.ClusterTime, stats.TotalTime))
	if stats.EncryptionTime > 0 || stats.RemoteEncodeTime > 0 {
		fmt.Fprintf(Output, "  Encryption: %v (%.1f%%)\n", stats.EncryptionTime, percent(stats.EncryptionTime, stats.TotalTime))
		fmt.Fprintf(Output, "  Remote encoding: %v (%.1f%%)\n", stats.RemoteEncodeTime, percent(stats.RemoteEncodeTime, stats.TotalTime))
		fmt.Fprintf(Output, "  Decryption: %v (%.1f%%)\n", stats.DecryptionTime, percent(stats.DecryptionTime, stats.TotalTime))
	}
	if len(stats.PretrainLayerTime) > 0 {
		fmt.Fprintln(Output, "\nPretraining breakdown:")
		for i, d := range stats.PretrainLayerTime {
			fmt.Fprintf(Output, "  Layer %d: %v (%.1f%% of pretraining)\n", i, d, percent(d, stats.PretrainTime))
		}
	}
}

// DurationUS converts any time.Duration to micro-seconds as float64
func DurationUS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000.0
}
