package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/rawtree-ml/rawtree/internal/export"
	"github.com/rawtree-ml/rawtree/internal/loader"
	"github.com/rawtree-ml/rawtree/internal/paths"
)

func cmdVerify() {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	src := fs.String("src", "", "source checkpoint to verify content hashes against")
	dequant := fs.Bool("dequant", false, "expand quantized GGUF tensors to float32")
	fs.Parse(os.Args[2:])
	if fs.NArg() != 1 {
		fmt.Println("usage: rawtree verify [--src DIR] <dir>")
		os.Exit(1)
	}
	if err := runVerify(fs.Arg(0), *src, loader.Options{Dequantize: *dequant}, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// runVerify checks an exported directory. Without --src every .raw file
// is checked against its .shape sibling; with --src the source
// checkpoint is reloaded and each leaf's bytes are hashed against the
// exported file.
func runVerify(dirArg, srcArg string, opts loader.Options, out io.Writer) error {
	dir, err := paths.Resolve(dirArg)
	if err != nil {
		return err
	}

	if srcArg == "" {
		pairs, err := export.Verify(dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "OK: %d pairs consistent in %s\n", pairs, dir)
		return nil
	}

	src, err := paths.Resolve(srcArg)
	if err != nil {
		return err
	}
	ckpt, err := loader.Open(src, opts)
	if err != nil {
		return err
	}
	defer ckpt.Close()
	tr, err := ckpt.Tree()
	if err != nil {
		return err
	}
	leaves, err := export.VerifyAgainst(tr, dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "OK: %d leaves match %s\n", leaves, src)
	return nil
}
