// Package main provides the entry point for RIPSim.
// RIPSim is a cycle-accurate RV32IM 5-stage pipeline simulator.
//
// For the full CLI, use: go run ./cmd/ripsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("RIPSim - RV32IM 5-Stage Pipeline Simulator")
	fmt.Println("")
	fmt.Println("Usage: ripsim [options] <program>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -b             Branch predictor (no, none, onebit, twobit, gshare)")
	fmt.Println("  -i             Interactive stepping")
	fmt.Println("  -stats         Print statistics")
	fmt.Println("  -single-cycle  Run the single-cycle reference engine")
	fmt.Println("  -config        Path to a JSON or YAML configuration file")
	fmt.Println("  -v             Dump the pipeline every cycle")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/ripsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/ripsim' instead.")
	}
}
