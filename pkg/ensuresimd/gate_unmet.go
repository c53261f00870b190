//go:build !amd64.v3 && !arm64 && !scalar && !debug

package ensuresimd

// Builds that reach this file have neither AVX2 nor NEON enabled and did not
// opt into the scalar fallback. Assigning the explanation to a uint8 makes the
// compiler print it in full.
const _ uint8 = "\nThe tool you are trying to build uses AVX2 (on amd64) or NEON (on arm64) SIMD instructions for performance.\nUnfortunately, AVX2 is not enabled by the default amd64 code generation (GOAMD64=v1).\nTo get the expected performance, build/install using e.g.:\n    GOAMD64=v3 go build ...\n    GOAMD64=v3 go install ...\nRun \"ensuresimd cpu\" to see the GOAMD64 level supported by this machine.\nAlternatively, silence this error by accepting the scalar fallback (e.g. \"go install -tags scalar ...\").\nSee https://pkg.go.dev/github.com/BLAZED-sh/ensure-simd for details.\n"
