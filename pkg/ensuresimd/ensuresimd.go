// Package ensuresimd makes sure a binary is built, and running, with the wide
// SIMD instruction set its authors intended: 256-bit AVX2 on amd64 or 128-bit
// NEON on arm64.
//
// Importing the package adds a build-time check. A release build for amd64
// without GOAMD64=v3 (or v4), or for any architecture other than amd64 and
// arm64, fails to compile with a message explaining the fix. The check is
// skipped when building with -tags debug, and can be silenced for good with
// -tags scalar, in which case libraries fall back to their non-AVX2 paths.
//
// EnsureSIMD performs the matching run-time check and should be the first
// call in main:
//
//	func main() {
//		ensuresimd.EnsureSIMD()
//		...
//	}
//
// The gate applies to this module's own tests too. On amd64 without
// GOAMD64=v3, run them with
//
//	go test -tags debug ./...
package ensuresimd

import "github.com/BLAZED-sh/ensure-simd/pkg/probe"

// EnsureSIMD checks that the CPU running the binary supports AVX2 when the
// binary was compiled with AVX2 enabled. If it does not, a diagnostic is
// written to stderr and the process exits with status 1.
//
// Builds without AVX2, including every arm64 build where NEON is always
// present, return immediately without querying the CPU.
func EnsureSIMD() {
	probe.Default().Ensure()
}
