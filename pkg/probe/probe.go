// Package probe checks at run time that the CPU executing the binary supports
// the instruction set the binary was compiled for.
package probe

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const Message = `
This binary was compiled with AVX2 instructions enabled (GOAMD64=v3), but your CPU does not support them.
Please run on a CPU that supports AVX2, or build from source with the scalar fallback (e.g. "GOAMD64=v1 go install -tags scalar ...").
See https://pkg.go.dev/github.com/BLAZED-sh/ensure-simd for details.
`

// CompiledWithAVX2 reports whether this binary was built with AVX2 code
// generation (GOAMD64=v3 or later).
const CompiledWithAVX2 = compiledWithAVX2

type Result int

const (
	// ResultSkipped means the binary was not compiled with AVX2, so no CPU
	// query was made.
	ResultSkipped Result = iota
	ResultSupported
	ResultUnsupported
)

func (r Result) String() string {
	switch r {
	case ResultSkipped:
		return "skipped"
	case ResultSupported:
		return "supported"
	case ResultUnsupported:
		return "unsupported"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

type Prober struct {
	CompiledWithAVX2 bool
	// HasAVX2 queries the executing CPU. Nil on architectures without AVX2.
	HasAVX2 func() bool
	Stderr  io.Writer
	Exit    func(code int)
	Logger  zerolog.Logger
}

// Default returns a Prober bound to this binary's build configuration, the
// real CPU, os.Stderr and os.Exit.
func Default() Prober {
	return Prober{
		CompiledWithAVX2: compiledWithAVX2,
		HasAVX2:          hasAVX2,
		Stderr:           os.Stderr,
		Exit:             os.Exit,
		Logger:           zerolog.Nop(),
	}
}

// Check reports the probe outcome without terminating the process.
func (p Prober) Check() Result {
	if !p.CompiledWithAVX2 {
		return ResultSkipped
	}
	if p.HasAVX2 == nil || !p.HasAVX2() {
		return ResultUnsupported
	}
	return ResultSupported
}

// Ensure returns normally unless the binary was compiled with AVX2 and the
// CPU lacks it. In that case Message is written to Stderr and the process
// exits with status 1.
func (p Prober) Ensure() {
	result := p.Check()
	if result != ResultUnsupported {
		p.Logger.Debug().Stringer("result", result).Msg("SIMD capability check passed")
		return
	}

	p.Logger.Error().Msg("Binary compiled with AVX2 but CPU does not support it")

	stderr := p.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	fmt.Fprint(stderr, Message)

	exit := p.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(1)
}
