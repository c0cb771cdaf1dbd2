// Package main provides the entry point for MiloSim.
// MiloSim is a cycle-level Milo832 GPU streaming-multiprocessor simulator
// built on Akita.
//
// For the full CLI, use: go run ./cmd/milosim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("MiloSim - Milo832 SM Core Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: milosim [options] <kernel.milo>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -warps     Number of warps to launch")
	fmt.Println("  -cycles    Cycle budget before giving up")
	fmt.Println("  -config    Path to timing configuration JSON file")
	fmt.Println("  -l1        Enable the L1 data-cache timing model")
	fmt.Println("  -disasm    Print the assembled program and exit")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/milosim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/milosim' instead.")
	}
}
