package utils

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"
)

func TestDurationUS(t *testing.T) {
	d := 1234*time.Microsecond + 567*time.Nanosecond
	got := DurationUS(d)
	if math.Abs(got-1234.567) > 0.001 {
		t.Fatalf("want 1234.567µs, got %.3f", got)
	}
}

func TestPrintTimingStatsRespectsVerbose(t *testing.T) {
	var buf bytes.Buffer
	oldOut, oldVerbose := Output, Verbose
	defer func() { Output, Verbose = oldOut, oldVerbose }()
	Output = &buf

	stats := &TimingStats{
		TotalTime:         10 * time.Second,
		PretrainTime:      4 * time.Second,
		PretrainLayerTime: []time.Duration{time.Second, 3 * time.Second},
	}
	Verbose = false
	PrintTimingStats(stats)
	if buf.Len() != 0 {
		t.Fatalf("expected no output when not verbose, got %q", buf.String())
	}

	Verbose = true
	PrintTimingStats(stats)
	out := buf.String()
	if !strings.Contains(out, "Pretraining: 4s (40.0%)") {
		t.Errorf("missing pretraining line in:\n%s", out)
	}
	if !strings.Contains(out, "Layer 1: 3s (75.0% of pretraining)") {
		t.Errorf("missing layer breakdown in:\n%s", out)
	}
}

func TestLogf(t *testing.T) {
	var buf bytes.Buffer
	oldOut, oldVerbose := Output, Verbose
	defer func() { Output, Verbose = oldOut, oldVerbose }()
	Output = &buf
	Verbose = true
	Logf("epoch %d", 3)
	if buf.String() != "epoch 3\n" {
		t.Fatalf("Logf wrote %q", buf.String())
	}
}
