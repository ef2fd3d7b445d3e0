package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/attenuate/mntn/config"
	"github.com/attenuate/mntn/forensics"
	"github.com/attenuate/mntn/meter"
	"github.com/attenuate/mntn/runtime/wazeroengine"
	"github.com/attenuate/mntn/sandbox"
)

var fireCmd = &cobra.Command{
	Use:   "fire <module.wasm> <function> [args...]",
	Short: "Compile, instantiate, and call a function in a sandboxed module",
	Args:  cobra.MinimumNArgs(2),
	Run:   runFire,
}

func init() {
	fireCmd.Flags().Uint64("fuel", 0, "Fuel budget for this call (omit for the process default; 0 is rejected)")
	fireCmd.Flags().Uint64("timeout-ms", 0, "Wall-clock timeout in milliseconds (0 = process default)")
	fireCmd.Flags().StringSlice("cap", nil, "Capability to grant (repeatable): time, random, log, filesystem_read, filesystem_write, network, host_function:<name>")
	fireCmd.Flags().String("dump", "", "Path to write a forensic dump to on crash (default: printed summary only)")
	fireCmd.Flags().Bool("verbose", false, "Enable structured logging of the call")
	fireCmd.Flags().Bool("meter", false, "Record fuel consumption into the accounting sidecar and print it after the call")
	rootCmd.AddCommand(fireCmd)
}

func runFire(cmd *cobra.Command, args []string) {
	wasmPath := args[0]
	function := args[1]
	callArgs, err := parseArgs(args[2:])
	if err != nil {
		fail("%v", err)
	}

	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		fail("reading module: %v", err)
	}

	fuel, _ := cmd.Flags().GetUint64("fuel")
	timeoutMS, _ := cmd.Flags().GetUint64("timeout-ms")
	capRaw, _ := cmd.Flags().GetStringSlice("cap")
	dumpPath, _ := cmd.Flags().GetString("dump")
	verbose, _ := cmd.Flags().GetBool("verbose")
	useMeter, _ := cmd.Flags().GetBool("meter")

	caps, err := parseCapabilities(capRaw)
	if err != nil {
		fail("%v", err)
	}

	ctx := context.Background()
	logger := newLogger(verbose)

	eng := wazeroengine.New(ctx)
	defer eng.Close(ctx)

	cfg := config.Default()
	var opts []sandbox.Option
	var fuelMeter *meter.Meter
	if useMeter {
		fuelMeter = meter.New()
		defer fuelMeter.Close()
		opts = append(opts, sandbox.WithMeter(fuelMeter))
	}
	mgr := sandbox.New(eng, cfg.Policy(), logger, opts...)

	outcome := mgr.Fire(ctx, wasmBytes, function, callArgs, sandbox.Config{
		Fuel:         fuel,
		FuelSet:      cmd.Flags().Changed("fuel"),
		TimeoutMS:    timeoutMS,
		Capabilities: caps,
	})

	if outcome.Ok {
		fmt.Printf("ok: results=%v fuel_remaining=%d execution_time_us=%d memory_high_water_bytes=%d\n",
			outcome.Results, outcome.Metadata.FuelRemaining, outcome.Metadata.ExecutionTimeUS, outcome.Metadata.MemoryHighWaterBytes)
		if useMeter {
			printMeterSnapshot(fuelMeter, function)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "crash: reason=%s\n", outcome.Reason.String())
	if outcome.Dump != nil {
		fmt.Fprintln(os.Stderr, forensics.Summary(outcome.Dump))
		if dumpPath != "" {
			encoded, encErr := forensics.Encode(outcome.Dump)
			if encErr != nil {
				fail("encoding dump: %v", encErr)
			}
			if werr := os.WriteFile(dumpPath, encoded, 0o644); werr != nil {
				fail("writing dump: %v", werr)
			}
			fmt.Fprintf(os.Stderr, "dump written to %s\n", dumpPath)
		}
	}
	if useMeter {
		printMeterSnapshot(fuelMeter, function)
	}
	os.Exit(1)
}

// printMeterSnapshot reports the accounting sidecar's row for function after
// a single call. The writer goroutine's update for this call may still be in
// flight when Fire returns (Record is non-blocking), so this is a
// best-effort read, not a guarantee the row reflects the call just made.
func printMeterSnapshot(m *meter.Meter, function string) {
	if s, ok := m.Snapshot()[function]; ok {
		fmt.Fprintf(os.Stderr, "meter: function=%s count=%d total_consumed=%d last=%d\n",
			function, s.Count, s.TotalConsumed, s.Last)
	}
}
