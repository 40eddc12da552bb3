package utils

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// HostSummary describes the CPU the dense kernels run on.
func HostSummary() string {
	simd := "generic"
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ):
		simd = "avx512"
	case cpuid.CPU.Supports(cpuid.AVX2, cpuid.FMA3):
		simd = "avx2+fma"
	case cpuid.CPU.Supports(cpuid.ASIMD):
		simd = "neon"
	}
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = runtime.GOARCH
	}
	return fmt.Sprintf("%s, %d cores / %d threads, %s, GOMAXPROCS=%d",
		brand, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, simd, runtime.GOMAXPROCS(0))
}
