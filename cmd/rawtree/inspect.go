package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/rawtree-ml/rawtree/internal/export"
	"github.com/rawtree-ml/rawtree/internal/loader"
	"github.com/rawtree-ml/rawtree/internal/paths"
	"github.com/rawtree-ml/rawtree/internal/stats"
	"github.com/rawtree-ml/rawtree/internal/tensor"
	"github.com/rawtree-ml/rawtree/internal/tree"
)

func cmdInspect() {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	withStats := fs.Bool("stats", false, "print min/max/mean/std per float tensor")
	dequant := fs.Bool("dequant", false, "expand quantized GGUF tensors to float32")
	fs.Parse(os.Args[2:])
	if fs.NArg() != 1 {
		fmt.Println("usage: rawtree inspect [--stats] [--dequant] <path>")
		os.Exit(1)
	}
	if err := runInspect(fs.Arg(0), *withStats, loader.Options{Dequantize: *dequant}, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// runInspect lists every tensor of the given path, which may be a
// checkpoint (any supported format) or a directory of exported
// .raw/.shape pairs.
func runInspect(pathArg string, withStats bool, opts loader.Options, out io.Writer) error {
	path, err := paths.Resolve(pathArg)
	if err != nil {
		return err
	}

	tr, err := openTree(path, opts, out)
	if err != nil {
		return err
	}

	total := int64(0)
	for leafPath, array := range tr.Leaves() {
		total += int64(array.ByteSize())
		fmt.Fprintf(out, "%-60s %-16s %10s", leafPath.String(), array.String(),
			humanize.IBytes(uint64(array.ByteSize())))
		if withStats && array.DType().IsFloat() && array.NumElements() > 0 {
			s, err := stats.Summarize(array)
			if err != nil {
				return fmt.Errorf("stats for %q: %w", leafPath.String(), err)
			}
			fmt.Fprintf(out, "  %s", s)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%d tensors, %s total\n", tr.NumLeaves(), humanize.IBytes(uint64(total)))
	return nil
}

// openTree loads path as a checkpoint, falling back to an exported
// .raw/.shape directory when format detection fails.
func openTree(path string, opts loader.Options, out io.Writer) (*tree.Tree[*tensor.Raw], error) {
	ckpt, err := loader.Open(path, opts)
	if err == nil {
		defer ckpt.Close()
		fmt.Fprintf(out, "Format: %s\n", ckpt.Format())
		for k, v := range ckpt.Metadata() {
			fmt.Fprintf(out, "  %s: %s\n", k, v)
		}
		return ckpt.Tree()
	}

	tr, readErr := export.Read(path)
	if readErr != nil || tr.NumLeaves() == 0 {
		return nil, err
	}
	fmt.Fprintln(out, "Format: raw tensor tree")
	return tr, nil
}
