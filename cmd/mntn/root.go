package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/attenuate/mntn/capability"
)

var rootCmd = &cobra.Command{
	Use:   "mntn",
	Short: "Capability-attenuated sandbox for untrusted WebAssembly modules",
	Long: `mntn runs untrusted compiled WebAssembly modules under a fuel-bounded,
capability-gated sandbox. A call either returns its results with accounting
metadata, or a structured forensic dump of the instance's final memory and
failure reason.`,
}

// Execute runs the root command, exiting with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// parseCapabilities turns repeatable --cap flag values into a capability.Set,
// recognizing "host_function:<name>" as the parameterized token family.
func parseCapabilities(raw []string) (capability.Set, error) {
	set := capability.NewSet()
	for _, tok := range raw {
		t := capability.Token(strings.TrimSpace(tok))
		if !capability.Valid(t) {
			return nil, fmt.Errorf("unknown capability %q", tok)
		}
		set[t] = struct{}{}
	}
	return set, nil
}

// parseArgs parses positional argument strings into WASM i64 values,
// accepting decimal or 0x-prefixed hex.
func parseArgs(raw []string) ([]uint64, error) {
	out := make([]uint64, len(raw))
	for i, a := range raw {
		v, err := strconv.ParseUint(a, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not a valid integer: %w", a, err)
		}
		out[i] = v
	}
	return out, nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
