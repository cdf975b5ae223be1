package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/maruel/huggingface"
)

func cmdPull() {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	token := fs.String("token", os.Getenv("HF_TOKEN"), "Hugging Face API token")
	glob := fs.String("glob", "*.safetensors", "file pattern to download")
	fs.Parse(os.Args[2:])
	if fs.NArg() != 1 {
		fmt.Println("usage: rawtree pull [--token TOK] [--glob PAT] <author>/<repo>")
		os.Exit(1)
	}
	if err := runPull(context.Background(), fs.Arg(0), *token, *glob); err != nil {
		log.Fatal(err)
	}
}

// runPull downloads matching files of a Hugging Face model into the
// local cache and prints their paths, ready for rawtree convert.
func runPull(ctx context.Context, model, token, glob string) error {
	author, repo, ok := strings.Cut(model, "/")
	if !ok || author == "" || repo == "" {
		return fmt.Errorf("model must be <author>/<repo>, got %q", model)
	}
	hf, err := huggingface.New(token)
	if err != nil {
		return err
	}
	ref := huggingface.ModelRef{Author: author, Repo: repo}
	files, err := hf.EnsureSnapshot(ctx, ref, "main", []string{glob})
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", model, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no files of %s match %q", model, glob)
	}
	for _, f := range files {
		fmt.Println(f)
	}
	return nil
}
