// Command benchmark runs the RIPSim microbenchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv           Output results in CSV format (default: human-readable)
//	-json          Output results as a JSON report
//	-b             Branch predictor: no, none, onebit, twobit or gshare
//	-single-cycle  Run the single-cycle reference engine
//	-config        Machine configuration file (JSON or YAML)
//
// Example:
//
//	# Compare predictors on the same workloads
//	go run ./cmd/benchmark -b twobit
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/ripsim/benchmarks"
	"github.com/sarchlab/ripsim/config"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as JSON")
	predictor := flag.String("b", "", "Branch predictor: no, none, onebit, twobit or gshare")
	singleCycle := flag.Bool("single-cycle", false, "Run the single-cycle reference engine")
	configPath := flag.String("config", "", "Machine configuration file")
	flag.Parse()

	cfg := benchmarks.DefaultConfig()
	if *configPath != "" {
		machine, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if machine.StackPointer == nil {
			machine.StackPointer = cfg.Machine.StackPointer
		}
		cfg.Machine = machine
	}
	if *predictor != "" {
		cfg.Machine.Predictor = *predictor
	}
	if *singleCycle {
		cfg.Machine.SingleCycle = true
	}
	if err := cfg.Machine.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Output = os.Stdout

	harness := benchmarks.NewHarness(cfg)
	harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())

	if !*csvOutput && !*jsonOutput {
		fmt.Println("RIPSim Timing Benchmark Harness")
		fmt.Println("===============================")
		fmt.Printf("Predictor:    %q\n", cfg.Machine.Predictor)
		fmt.Printf("Single-cycle: %v\n", cfg.Machine.SingleCycle)
		fmt.Println("")
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		fmt.Println("=== Summary ===")
		fmt.Println("")
		fmt.Println("Expected characteristics:")
		fmt.Println("- arithmetic_sequential: CPI close to 1")
		fmt.Println("- dependency_chain: forwarding hides every RAW hazard")
		fmt.Println("- memory_sequential: one load-use stall per dependent load")
		fmt.Println("- function_calls, branch_taken: two-cycle flush per taken transfer")
		fmt.Println("- countdown_loop: fewer flushes with a predictor")
	}

	for _, r := range results {
		if !r.Passed {
			os.Exit(1)
		}
	}
}
