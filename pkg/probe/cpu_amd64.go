//go:build amd64

package probe

import "golang.org/x/sys/cpu"

// cpu.X86.HasAVX2 also requires the OS to save the YMM registers.
var hasAVX2 = func() bool {
	return cpu.X86.HasAVX2
}
