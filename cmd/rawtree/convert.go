package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/rawtree-ml/rawtree/internal/export"
	"github.com/rawtree-ml/rawtree/internal/loader"
	"github.com/rawtree-ml/rawtree/internal/paths"
)

func cmdConvert() {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	targetDir := fs.String("target_dir", "", "output root (default <source_dir>/raw)")
	dequant := fs.Bool("dequant", false, "expand quantized GGUF tensors to float32")
	fs.Parse(os.Args[2:])
	if fs.NArg() != 1 {
		fmt.Println("usage: rawtree convert [--target_dir DIR] [--dequant] <source_dir>")
		os.Exit(1)
	}
	opts := loader.Options{Dequantize: *dequant}
	if err := runConvert(fs.Arg(0), *targetDir, opts, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// runConvert is the whole conversion pipeline: resolve both paths, load
// the checkpoint into a parameter tree, and export every leaf as a
// .raw/.shape pair under the target root. Nothing is written until the
// checkpoint has loaded successfully.
func runConvert(sourceArg, targetArg string, opts loader.Options, out io.Writer) error {
	source, err := paths.Resolve(sourceArg)
	if err != nil {
		return err
	}
	if targetArg == "" {
		targetArg = filepath.Join(source, "raw")
	}
	target, err := paths.Resolve(targetArg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Source directory: %s\n", source)
	fmt.Fprintf(out, "Target directory: %s\n", target)

	ckpt, err := loader.Open(source, opts)
	if err != nil {
		return err
	}
	defer ckpt.Close()

	tr, err := ckpt.Tree()
	if err != nil {
		return err
	}

	pairs, err := export.Write(tr, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %d tensor pairs to %s\n", pairs, target)
	return nil
}
