// Package cpureport describes the SIMD capabilities of the running machine
// and the GOAMD64 level that matches them.
package cpureport

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

type Snapshot struct {
	Arch          string
	Brand         string
	Vendor        string
	X64Level      int // 0 when not amd64
	AVX2          bool
	FMA3          bool
	ASIMD         bool
	PhysicalCores int
	LogicalCores  int
	Features      []string
}

// Take reads the capabilities of the CPU the process is running on.
func Take() Snapshot {
	return fromCPU(runtime.GOARCH, cpuid.CPU)
}

func fromCPU(arch string, c cpuid.CPUInfo) Snapshot {
	s := Snapshot{
		Arch:          arch,
		Brand:         c.BrandName,
		Vendor:        c.VendorString,
		AVX2:          c.Supports(cpuid.AVX2),
		FMA3:          c.Supports(cpuid.FMA3),
		ASIMD:         c.Supports(cpuid.ASIMD),
		PhysicalCores: c.PhysicalCores,
		LogicalCores:  c.LogicalCores,
		Features:      c.FeatureSet(),
	}
	if arch == "amd64" {
		s.X64Level = c.X64Level()
	}
	return s
}

// RecommendedGOAMD64 returns the GOAMD64 value matching an x86-64
// micro-architecture level, the equivalent of building for the native CPU.
// It returns "" for level 0.
func RecommendedGOAMD64(level int) string {
	switch {
	case level <= 0:
		return ""
	case level >= 4:
		return "v4"
	}
	return fmt.Sprintf("v%d", level)
}

// Advice is a one-line recommendation for building on this machine.
func (s Snapshot) Advice() string {
	switch s.Arch {
	case "arm64":
		return "NEON is part of the arm64 baseline; no extra build flags needed"
	case "amd64":
		if s.X64Level >= 3 {
			return fmt.Sprintf("AVX2 available; build with GOAMD64=%s", RecommendedGOAMD64(s.X64Level))
		}
		return "AVX2 not available; build with -tags scalar to accept the scalar fallback"
	}
	return fmt.Sprintf("no AVX2 or NEON on %s; build with -tags scalar", s.Arch)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// WriteTo writes a human readable report to w.
func (s Snapshot) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "arch:           %s\n", s.Arch)
	fmt.Fprintf(&b, "cpu:            %s\n", s.Brand)
	fmt.Fprintf(&b, "vendor:         %s\n", s.Vendor)
	fmt.Fprintf(&b, "cores:          %d physical, %d logical\n", s.PhysicalCores, s.LogicalCores)
	if s.Arch == "amd64" {
		fmt.Fprintf(&b, "x86-64 level:   v%d\n", s.X64Level)
		fmt.Fprintf(&b, "avx2:           %s\n", yesNo(s.AVX2))
		fmt.Fprintf(&b, "fma3:           %s\n", yesNo(s.FMA3))
	}
	if s.Arch == "arm64" {
		fmt.Fprintf(&b, "neon (asimd):   %s\n", yesNo(s.ASIMD))
	}
	if len(s.Features) > 0 {
		fmt.Fprintf(&b, "features:       %s\n", strings.Join(s.Features, " "))
	}
	fmt.Fprintf(&b, "advice:         %s\n", s.Advice())

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
