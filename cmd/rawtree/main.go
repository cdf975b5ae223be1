// Package main provides the rawtree CLI: it converts model checkpoints
// into trees of raw tensor files.
package main

import (
	"fmt"
	"os"
)

const version = "v0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "convert":
		cmdConvert()
	case "inspect":
		cmdInspect()
	case "verify":
		cmdVerify()
	case "pull":
		cmdPull()
	case "version":
		fmt.Printf("rawtree %s\n", version)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("rawtree - checkpoint to raw tensor tree converter")
	fmt.Println("usage: rawtree <command> [args]")
	fmt.Println("  convert [--target_dir DIR] [--dequant] <source_dir>")
	fmt.Println("          export every tensor as <keys...>.raw + <keys...>.shape")
	fmt.Println("          (target defaults to <source_dir>/raw)")
	fmt.Println("  inspect [--stats] <path>    list tensors of a checkpoint or exported tree")
	fmt.Println("  verify  [--src DIR] <dir>   check an exported tree (--src rereads the checkpoint)")
	fmt.Println("  pull    [--token TOK] [--glob PAT] <author>/<repo>")
	fmt.Println("          download checkpoint files from Hugging Face")
	fmt.Println("  version                     show version")
}
