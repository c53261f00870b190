package probe

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exitCalled is panicked by the stub exit so a test can verify that nothing
// after a failed Ensure runs, as with os.Exit.
type exitCalled struct {
	code int
}

type fakeCPU struct {
	avx2    bool
	queries int
}

func (f *fakeCPU) HasAVX2() bool {
	f.queries++
	return f.avx2
}

func newProber(compiled bool, cpu *fakeCPU, stderr *bytes.Buffer) Prober {
	return Prober{
		CompiledWithAVX2: compiled,
		HasAVX2:          cpu.HasAVX2,
		Stderr:           stderr,
		Exit: func(code int) {
			panic(exitCalled{code: code})
		},
		Logger: zerolog.Nop(),
	}
}

// ensure runs p.Ensure and returns the exit code, or -1 if Ensure returned.
func ensure(p Prober) (code int) {
	defer func() {
		if r := recover(); r != nil {
			code = r.(exitCalled).code
		}
	}()
	p.Ensure()
	return -1
}

func TestEnsureCPUWithoutAVX2(t *testing.T) {
	cpu := &fakeCPU{avx2: false}
	var stderr bytes.Buffer
	p := newProber(true, cpu, &stderr)

	reached := false
	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r)
			assert.Equal(t, exitCalled{code: 1}, r)
		}()
		p.Ensure()
		reached = true
	}()

	assert.False(t, reached, "execution must not continue past a failed probe")
	assert.Equal(t, Message, stderr.String())
	assert.Equal(t, 1, cpu.queries)
}

func TestEnsureCPUWithAVX2(t *testing.T) {
	cpu := &fakeCPU{avx2: true}
	var stderr bytes.Buffer
	p := newProber(true, cpu, &stderr)

	assert.Equal(t, -1, ensure(p))
	assert.Empty(t, stderr.String())
	assert.Equal(t, 1, cpu.queries)
}

func TestEnsureNotCompiledWithAVX2(t *testing.T) {
	for _, avx2 := range []bool{true, false} {
		cpu := &fakeCPU{avx2: avx2}
		var stderr bytes.Buffer
		p := newProber(false, cpu, &stderr)

		assert.Equal(t, -1, ensure(p))
		assert.Empty(t, stderr.String())
		assert.Zero(t, cpu.queries, "CPU must not be queried for non-AVX2 builds")
	}
}

func TestEnsureIdempotent(t *testing.T) {
	cpu := &fakeCPU{avx2: true}
	var stderr bytes.Buffer
	p := newProber(true, cpu, &stderr)

	assert.Equal(t, -1, ensure(p))
	assert.Equal(t, -1, ensure(p))
	assert.Empty(t, stderr.String())
	assert.Equal(t, 2, cpu.queries)

	cpu = &fakeCPU{avx2: false}
	stderr.Reset()
	p = newProber(true, cpu, &stderr)

	assert.Equal(t, 1, ensure(p))
	assert.Equal(t, 1, ensure(p))
	assert.Equal(t, Message+Message, stderr.String())
}

func TestEnsureNilQueryIsUnsupported(t *testing.T) {
	var stderr bytes.Buffer
	p := Prober{
		CompiledWithAVX2: true,
		Stderr:           &stderr,
		Exit:             func(code int) { panic(exitCalled{code: code}) },
	}

	assert.Equal(t, ResultUnsupported, p.Check())
	assert.Equal(t, 1, ensure(p))
	assert.Equal(t, Message, stderr.String())
}

func TestEnsureLogsFailure(t *testing.T) {
	var logs, stderr bytes.Buffer
	p := newProber(true, &fakeCPU{avx2: false}, &stderr)
	p.Logger = zerolog.New(&logs)

	assert.Equal(t, 1, ensure(p))
	assert.Contains(t, logs.String(), `"level":"error"`)
	assert.Contains(t, logs.String(), "AVX2")
}

func TestCheck(t *testing.T) {
	testCases := []struct {
		name     string
		compiled bool
		avx2     bool
		expect   Result
	}{
		{name: "baseline build", compiled: false, avx2: false, expect: ResultSkipped},
		{name: "baseline build on avx2 cpu", compiled: false, avx2: true, expect: ResultSkipped},
		{name: "avx2 build on avx2 cpu", compiled: true, avx2: true, expect: ResultSupported},
		{name: "avx2 build on old cpu", compiled: true, avx2: false, expect: ResultUnsupported},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var stderr bytes.Buffer
			p := newProber(tc.compiled, &fakeCPU{avx2: tc.avx2}, &stderr)
			assert.Equal(t, tc.expect, p.Check())
			assert.Empty(t, stderr.String(), "Check must never print")
		})
	}
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "skipped", ResultSkipped.String())
	assert.Equal(t, "supported", ResultSupported.String())
	assert.Equal(t, "unsupported", ResultUnsupported.String())
	assert.Equal(t, "Result(7)", Result(7).String())
}

func TestDefault(t *testing.T) {
	p := Default()
	assert.Equal(t, CompiledWithAVX2, p.CompiledWithAVX2)
	assert.NotNil(t, p.Stderr)
	assert.NotNil(t, p.Exit)

	if runtime.GOARCH == "amd64" {
		assert.NotNil(t, p.HasAVX2)
	} else {
		assert.Nil(t, p.HasAVX2)
		assert.False(t, p.CompiledWithAVX2)
	}

	// A binary that got this far on an AVX2 build runs on an AVX2 CPU.
	if p.CompiledWithAVX2 {
		assert.Equal(t, ResultSupported, p.Check())
	} else {
		assert.Equal(t, ResultSkipped, p.Check())
	}
}

func TestMessage(t *testing.T) {
	assert.Contains(t, Message, "AVX2")
	assert.Contains(t, Message, "-tags scalar")
}
