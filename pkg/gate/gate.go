// Package gate evaluates the build-time SIMD gate for an arbitrary build
// configuration. The gate itself is enforced by the compiler through the build
// constraint on pkg/ensuresimd/gate_unmet.go; this package mirrors that
// constraint so tools can explain why a build would pass or fail.
package gate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"strings"
)

// Constraint is the build constraint carried by the gate file. The file, and
// with it the compile error, is only part of a build when it matches.
const Constraint = "//go:build !amd64.v3 && !arm64 && !scalar && !debug"

// Build tags recognised by the gate.
const (
	TagScalar = "scalar"
	TagDebug  = "debug"
)

const FailureMessage = `
The tool you are trying to build uses AVX2 (on amd64) or NEON (on arm64) SIMD instructions for performance.
Unfortunately, AVX2 is not enabled by the default amd64 code generation (GOAMD64=v1).
To get the expected performance, build/install using e.g.:
    GOAMD64=v3 go build ...
    GOAMD64=v3 go install ...
Run "ensuresimd cpu" to see the GOAMD64 level supported by this machine.
Alternatively, silence this error by accepting the scalar fallback (e.g. "go install -tags scalar ...").
See https://pkg.go.dev/github.com/BLAZED-sh/ensure-simd for details.
`

type Reason string

const (
	ReasonDoc    Reason = "doc"
	ReasonDebug  Reason = "debug"
	ReasonAVX2   Reason = "avx2"
	ReasonNEON   Reason = "neon"
	ReasonScalar Reason = "scalar"
	ReasonUnmet  Reason = "unmet"
)

// Config is the subset of a Go build configuration the gate depends on.
type Config struct {
	GOARCH  string
	GOAMD64 string // v1..v4, empty means v1
	Tags    []string
	// Doc marks a documentation build (go doc, pkgsite). Those parse the
	// package without type-checking it, so the gate never fires.
	Doc bool
}

type Decision struct {
	Pass   bool
	Reason Reason
}

func (d Decision) String() string {
	if d.Pass {
		return fmt.Sprintf("pass (%s)", d.Reason)
	}
	return "fail: neither AVX2 nor NEON enabled and scalar fallback not accepted"
}

// ConfigFromEnv builds a Config from GOARCH/GOAMD64 in the process
// environment only, falling back to the architecture this binary was built
// for. Settings stored with "go env -w" are not seen; see ConfigFromToolchain.
func ConfigFromEnv(tags []string) Config {
	goarch := os.Getenv("GOARCH")
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return Config{
		GOARCH:  goarch,
		GOAMD64: os.Getenv("GOAMD64"),
		Tags:    tags,
	}
}

// ConfigFromToolchain asks the go command for GOARCH and GOAMD64, so values
// stored with "go env -w" are honoured the same way go build honours them.
func ConfigFromToolchain(ctx context.Context, tags []string) (Config, error) {
	cmd := exec.CommandContext(ctx, "go", "env", "GOARCH", "GOAMD64")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Config{}, fmt.Errorf("go env: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	c, err := parseGoEnv(out)
	if err != nil {
		return Config{}, err
	}
	c.Tags = tags
	return c, nil
}

// parseGoEnv reads the output of "go env GOARCH GOAMD64": one value per line.
func parseGoEnv(out []byte) (Config, error) {
	lines := strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
	if len(lines) != 2 {
		return Config{}, fmt.Errorf("unexpected go env output %q", out)
	}
	c := Config{
		GOARCH:  strings.TrimSpace(lines[0]),
		GOAMD64: strings.TrimSpace(lines[1]),
	}
	if c.GOARCH == "" {
		return Config{}, fmt.Errorf("go env reported an empty GOARCH")
	}
	return c, nil
}

// ParseTags splits a -tags value. Like the go command it accepts both comma
// and space separated lists.
func ParseTags(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// AMD64Level parses a GOAMD64 value into its micro-architecture level.
func AMD64Level(goamd64 string) (int, error) {
	switch goamd64 {
	case "", "v1":
		return 1, nil
	case "v2":
		return 2, nil
	case "v3":
		return 3, nil
	case "v4":
		return 4, nil
	}
	return 0, fmt.Errorf("invalid GOAMD64 %q: must be v1, v2, v3 or v4", goamd64)
}

func (c Config) hasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// AVX2Enabled reports whether the configuration compiles with AVX2 code
// generation.
func (c Config) AVX2Enabled() (bool, error) {
	if c.GOARCH != "amd64" {
		return false, nil
	}
	level, err := AMD64Level(c.GOAMD64)
	if err != nil {
		return false, err
	}
	return level >= 3, nil
}

// NEONEnabled reports whether the configuration targets arm64, where NEON is
// part of the baseline.
func (c Config) NEONEnabled() bool {
	return c.GOARCH == "arm64"
}

// Evaluate decides whether the gate lets a build through. The first matching
// bypass is reported as the reason.
func Evaluate(c Config) (Decision, error) {
	avx2, err := c.AVX2Enabled()
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate gate: %w", err)
	}

	switch {
	case c.Doc:
		return Decision{Pass: true, Reason: ReasonDoc}, nil
	case c.hasTag(TagDebug):
		return Decision{Pass: true, Reason: ReasonDebug}, nil
	case avx2:
		return Decision{Pass: true, Reason: ReasonAVX2}, nil
	case c.NEONEnabled():
		return Decision{Pass: true, Reason: ReasonNEON}, nil
	case c.hasTag(TagScalar):
		return Decision{Pass: true, Reason: ReasonScalar}, nil
	}
	return Decision{Pass: false, Reason: ReasonUnmet}, nil
}
