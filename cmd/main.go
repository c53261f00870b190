package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/BLAZED-sh/ensure-simd/pkg/cpureport"
	"github.com/BLAZED-sh/ensure-simd/pkg/gate"
	"github.com/BLAZED-sh/ensure-simd/pkg/probe"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

func main() {
	// Logging options
	defaultLevel := strings.TrimSpace(strings.ToLower(os.Getenv("ENSURESIMD_LOG")))
	if defaultLevel == "" {
		defaultLevel = "info"
	}
	logLevel := flag.String("log-level", defaultLevel, "Log level (trace, debug, info, warn, error, fatal, off)")
	prettyLogs := flag.Bool("pretty", false, "Enable pretty logging output")

	// Other options
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("ensuresimd version %s\n", version)
		os.Exit(0)
	}

	setupLogging(*logLevel, *prettyLogs)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	switch args[0] {
	case "gate":
		os.Exit(runGate(args[1:]))
	case "probe":
		os.Exit(runProbe(args[1:]))
	case "cpu":
		os.Exit(runCPU(args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: ensuresimd [options] <command> [command options]\n\n")
	fmt.Fprintf(out, "Commands:\n")
	fmt.Fprintf(out, "  gate    evaluate the build-time SIMD gate for a build configuration\n")
	fmt.Fprintf(out, "  probe   check that this CPU can run AVX2-compiled binaries\n")
	fmt.Fprintf(out, "  cpu     report SIMD capabilities and the matching GOAMD64 level\n\n")
	fmt.Fprintf(out, "Options:\n")
	flag.PrintDefaults()
}

func runGate(args []string) int {
	env, err := gate.ConfigFromToolchain(context.Background(), nil)
	if err != nil {
		log.Warn().Err(err).Msg("Could not query the go command, using the process environment")
		env = gate.ConfigFromEnv(nil)
	}

	fs := flag.NewFlagSet("gate", flag.ExitOnError)
	goarch := fs.String("goarch", env.GOARCH, "Target architecture (default from go env)")
	goamd64 := fs.String("goamd64", env.GOAMD64, "amd64 micro-architecture level (v1, v2, v3, v4) (default from go env)")
	tags := fs.String("tags", "", "Comma separated build tags (scalar, debug, ...)")
	doc := fs.Bool("doc", false, "Evaluate for a documentation build")
	fs.Parse(args)

	config := gate.Config{
		GOARCH:  *goarch,
		GOAMD64: *goamd64,
		Tags:    gate.ParseTags(*tags),
		Doc:     *doc,
	}

	decision, err := gate.Evaluate(config)
	if err != nil {
		log.Error().Err(err).Str("goamd64", config.GOAMD64).Msg("Invalid build configuration")
		return 2
	}

	log.Debug().
		Str("goarch", config.GOARCH).
		Str("goamd64", config.GOAMD64).
		Strs("tags", config.Tags).
		Bool("doc", config.Doc).
		Bool("pass", decision.Pass).
		Str("reason", string(decision.Reason)).
		Msg("Gate evaluated")

	fmt.Println(decision)
	if !decision.Pass {
		fmt.Fprint(os.Stderr, gate.FailureMessage)
		return 1
	}
	return 0
}

func runProbe(args []string) int {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	assumeAVX2 := fs.Bool("assume-avx2", true, "Probe as if this binary was compiled with GOAMD64=v3")
	fs.Parse(args)

	p := probe.Default()
	p.Logger = log.Logger
	if *assumeAVX2 {
		if p.HasAVX2 == nil {
			log.Info().Msg("No AVX2 on this architecture, nothing to probe")
			fmt.Println(probe.ResultSkipped)
			return 0
		}
		p.CompiledWithAVX2 = true
	}

	log.Debug().
		Bool("compiled_with_avx2", probe.CompiledWithAVX2).
		Bool("assume_avx2", *assumeAVX2).
		Msg("Running SIMD capability probe")

	// Exits with status 1 on an unsupported CPU.
	p.Ensure()
	fmt.Println(p.Check())
	return 0
}

func runCPU(args []string) int {
	fs := flag.NewFlagSet("cpu", flag.ExitOnError)
	fs.Parse(args)

	snapshot := cpureport.Take()
	if _, err := snapshot.WriteTo(os.Stdout); err != nil {
		log.Error().Err(err).Msg("Failed to write CPU report")
		return 1
	}
	return 0
}

func setupLogging(level string, pretty bool) {
	// Set log level
	var logLevel zerolog.Level
	switch level {
	case "trace":
		logLevel = zerolog.TraceLevel
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	case "fatal":
		logLevel = zerolog.FatalLevel
	case "off", "0":
		logLevel = zerolog.Disabled
	default:
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Reports go to stdout, logs to stderr.
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
