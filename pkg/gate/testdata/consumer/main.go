package main

import "github.com/BLAZED-sh/ensure-simd/pkg/ensuresimd"

func main() {
	ensuresimd.EnsureSIMD()
}
